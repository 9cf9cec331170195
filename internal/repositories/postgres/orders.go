package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/lib/pq"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/platform/pagination"
	"github.com/hanko-field/commerce/internal/platform/postgres"
	"github.com/hanko-field/commerce/internal/repositories"
)

const orderColumns = `id, user_id, status, total_price,
	shipping_address, shipping_city, shipping_country, shipping_post_code, shipping_phone,
	created_at, updated_at`

type orderRepository struct{ uow *postgres.UnitOfWork }

var _ repositories.OrderRepository = (*orderRepository)(nil)

// Insert writes the order row and its lines in one unit, joining the caller's when present.
func (r *orderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return postgres.Conflict("orders.insert", "order id is required")
	}
	return r.uow.RunInTx(ctx, func(ctx context.Context) error {
		const query = `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
		args := append([]any{order.ID, order.UserID, string(order.Status), order.TotalPrice}, shippingArgs(order.ShippingInfo)...)
		args = append(args, order.CreatedAt, order.UpdatedAt)
		if _, err := r.uow.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
			return postgres.WrapError("orders.insert", err)
		}
		return r.insertLines(ctx, order)
	})
}

// Update rewrites the order header and replaces its lines.
func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.uow.RunInTx(ctx, func(ctx context.Context) error {
		const query = `
UPDATE orders SET status = $2, total_price = $3,
	shipping_address = $4, shipping_city = $5, shipping_country = $6, shipping_post_code = $7, shipping_phone = $8,
	updated_at = $9
WHERE id = $1`
		args := append([]any{order.ID, string(order.Status), order.TotalPrice}, shippingArgs(order.ShippingInfo)...)
		args = append(args, order.UpdatedAt)
		res, err := r.uow.Conn(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			return postgres.WrapError("orders.update", err)
		}
		if err := expectOneRow(res, "orders.update", "order %s not found", order.ID); err != nil {
			return err
		}
		if _, err := r.uow.Conn(ctx).ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = $1`, order.ID); err != nil {
			return postgres.WrapError("orders.update", err)
		}
		return r.insertLines(ctx, order)
	})
}

// Delete removes the order; lines go with it through the cascading foreign key.
func (r *orderRepository) Delete(ctx context.Context, orderID string) error {
	res, err := r.uow.Conn(ctx).ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return postgres.WrapError("orders.delete", err)
	}
	return expectOneRow(res, "orders.delete", "order %s not found", orderID)
}

// FindByID loads the order. Inside a unit of work the row is locked FOR UPDATE so concurrent
// deletions or edits of the same order queue behind each other.
func (r *orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if postgres.InTx(ctx) {
		query += ` FOR UPDATE`
	}
	conn := r.uow.Conn(ctx)
	order, err := scanOrder(conn.QueryRowContext(ctx, query, orderID))
	if err != nil {
		return domain.Order{}, postgres.WrapError("orders.find", err)
	}
	lines, err := r.loadLines(ctx, []string{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines[order.ID]
	return order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	keyset, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	pageSize := pagination.Clamp(pager.PageSize)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1`
	args := []any{userID}
	if !keyset.IsZero() {
		query += ` AND (created_at, id) > ($2, $3)`
		args = append(args, keyset.CreatedAt, keyset.ID)
	}
	query += ` ORDER BY created_at, id LIMIT ` + strconv.Itoa(pageSize+1)

	rows, err := r.uow.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, postgres.WrapError("orders.list", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, postgres.WrapError("orders.list", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Order]{}, postgres.WrapError("orders.list", err)
	}

	page := domain.CursorPage[domain.Order]{Items: orders}
	if len(orders) > pageSize {
		page.Items = orders[:pageSize]
		last := page.Items[pageSize-1]
		token, err := pagination.EncodeToken(pagination.Keyset{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	if len(page.Items) == 0 {
		return page, nil
	}

	ids := make([]string, len(page.Items))
	for i, order := range page.Items {
		ids[i] = order.ID
	}
	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	for i := range page.Items {
		page.Items[i].Lines = lines[page.Items[i].ID]
	}
	return page, nil
}

func (r *orderRepository) insertLines(ctx context.Context, order domain.Order) error {
	const query = `
INSERT INTO order_lines (order_id, product_id, position, quantity, unit_price, reserved_quantity)
VALUES ($1, $2, $3, $4, $5, $6)`
	conn := r.uow.Conn(ctx)
	for i, line := range order.Lines {
		if _, err := conn.ExecContext(ctx, query,
			order.ID, line.ProductID, i, line.Quantity, line.UnitPrice, line.ReservedQuantity); err != nil {
			return postgres.WrapError("orders.insert_lines", err)
		}
	}
	return nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderIDs []string) (map[string][]domain.OrderLine, error) {
	const query = `
SELECT order_id, product_id, quantity, unit_price, reserved_quantity
FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, position`
	rows, err := r.uow.Conn(ctx).QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, postgres.WrapError("orders.lines", err)
	}
	defer rows.Close()

	lines := make(map[string][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			line    domain.OrderLine
		)
		if err := rows.Scan(&orderID, &line.ProductID, &line.Quantity, &line.UnitPrice, &line.ReservedQuantity); err != nil {
			return nil, postgres.WrapError("orders.lines", err)
		}
		lines[orderID] = append(lines[orderID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.WrapError("orders.lines", err)
	}
	return lines, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	var status string
	var address, city, country, postCode, phone sql.NullString
	err := row.Scan(&order.ID, &order.UserID, &status, &order.TotalPrice,
		&address, &city, &country, &postCode, &phone,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	if address.Valid {
		order.ShippingInfo = &domain.ShippingInfo{
			Address:     address.String,
			City:        city.String,
			Country:     country.String,
			PostCode:    postCode.String,
			PhoneNumber: phone.String,
		}
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func shippingArgs(info *domain.ShippingInfo) []any {
	if info == nil {
		return []any{nil, nil, nil, nil, nil}
	}
	return []any{info.Address, info.City, info.Country, info.PostCode, info.PhoneNumber}
}

func expectOneRow(res sql.Result, op, format string, args ...any) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return postgres.WrapError(op, err)
	}
	if affected == 0 {
		return postgres.NotFound(op, format, args...)
	}
	return nil
}
