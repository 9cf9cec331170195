package postgres

import (
	"context"
	"strings"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/platform/postgres"
	"github.com/hanko-field/commerce/internal/repositories"
)

// cartOwnerConstraint enforces one cart per user.
const cartOwnerConstraint = "carts_user_id_key"

type cartRepository struct{ uow *postgres.UnitOfWork }

var _ repositories.CartRepository = (*cartRepository)(nil)

func (r *cartRepository) Insert(ctx context.Context, cart domain.Cart) error {
	if strings.TrimSpace(cart.ID) == "" || strings.TrimSpace(cart.UserID) == "" {
		return postgres.Conflict("carts.insert", "cart id and user id are required")
	}
	return r.uow.RunInTx(ctx, func(ctx context.Context) error {
		const query = `INSERT INTO carts (id, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4)`
		_, err := r.uow.Conn(ctx).ExecContext(ctx, query, cart.ID, cart.UserID, cart.CreatedAt, cart.UpdatedAt)
		if postgres.IsUniqueViolation(err, cartOwnerConstraint) {
			return postgres.Conflict("carts.insert", "user %s already owns a cart", cart.UserID)
		}
		if err != nil {
			return postgres.WrapError("carts.insert", err)
		}
		return r.insertLines(ctx, cart)
	})
}

func (r *cartRepository) Update(ctx context.Context, cart domain.Cart) error {
	return r.uow.RunInTx(ctx, func(ctx context.Context) error {
		const query = `UPDATE carts SET updated_at = $3 WHERE id = $1 AND user_id = $2`
		res, err := r.uow.Conn(ctx).ExecContext(ctx, query, cart.ID, cart.UserID, cart.UpdatedAt)
		if err != nil {
			return postgres.WrapError("carts.update", err)
		}
		if err := expectOneRow(res, "carts.update", "cart %s not found for user %s", cart.ID, cart.UserID); err != nil {
			return err
		}
		if _, err := r.uow.Conn(ctx).ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cart.ID); err != nil {
			return postgres.WrapError("carts.update", err)
		}
		return r.insertLines(ctx, cart)
	})
}

func (r *cartRepository) Delete(ctx context.Context, cartID string) error {
	res, err := r.uow.Conn(ctx).ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return postgres.WrapError("carts.delete", err)
	}
	return expectOneRow(res, "carts.delete", "cart %s not found", cartID)
}

func (r *cartRepository) FindByID(ctx context.Context, cartID string) (domain.Cart, error) {
	return r.find(ctx, "carts.find", `id = $1`, cartID)
}

func (r *cartRepository) FindByUser(ctx context.Context, userID string) (domain.Cart, error) {
	return r.find(ctx, "carts.find_by_user", `user_id = $1`, userID)
}

// find locks the cart row when called inside a unit of work.
func (r *cartRepository) find(ctx context.Context, op, predicate string, arg string) (domain.Cart, error) {
	query := `SELECT id, user_id, created_at, updated_at FROM carts WHERE ` + predicate
	if postgres.InTx(ctx) {
		query += ` FOR UPDATE`
	}
	conn := r.uow.Conn(ctx)

	var cart domain.Cart
	if err := conn.QueryRowContext(ctx, query, arg).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
		return domain.Cart{}, postgres.WrapError(op, err)
	}
	cart.CreatedAt = cart.CreatedAt.UTC()
	cart.UpdatedAt = cart.UpdatedAt.UTC()

	rows, err := conn.QueryContext(ctx, `SELECT product_id, quantity FROM cart_lines WHERE cart_id = $1 ORDER BY position`, cart.ID)
	if err != nil {
		return domain.Cart{}, postgres.WrapError(op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return domain.Cart{}, postgres.WrapError(op, err)
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, postgres.WrapError(op, err)
	}
	return cart, nil
}

func (r *cartRepository) insertLines(ctx context.Context, cart domain.Cart) error {
	const query = `INSERT INTO cart_lines (cart_id, product_id, position, quantity) VALUES ($1, $2, $3, $4)`
	conn := r.uow.Conn(ctx)
	for i, line := range cart.Lines {
		if _, err := conn.ExecContext(ctx, query, cart.ID, line.ProductID, i, line.Quantity); err != nil {
			return postgres.WrapError("carts.insert_lines", err)
		}
	}
	return nil
}
