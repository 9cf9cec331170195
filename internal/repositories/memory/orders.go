package memory

import (
	"context"
	"slices"
	"strings"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/platform/pagination"
	"github.com/hanko-field/commerce/internal/repositories"
)

type orderRepository struct{ store *Store }

var _ repositories.OrderRepository = (*orderRepository)(nil)

func (r *orderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return conflict("orders.insert", "order id is required")
	}
	return r.store.write(ctx, func(journal func(func())) error {
		if _, exists := r.store.orders[order.ID]; exists {
			return conflict("orders.insert", "order %s already exists", order.ID)
		}
		journal(restore(r.store.orders, order.ID))
		r.store.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.store.write(ctx, func(journal func(func())) error {
		if _, exists := r.store.orders[order.ID]; !exists {
			return notFound("orders.update", "order %s not found", order.ID)
		}
		journal(restore(r.store.orders, order.ID))
		r.store.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r *orderRepository) Delete(ctx context.Context, orderID string) error {
	return r.store.write(ctx, func(journal func(func())) error {
		if _, exists := r.store.orders[orderID]; !exists {
			return notFound("orders.delete", "order %s not found", orderID)
		}
		journal(restore(r.store.orders, orderID))
		delete(r.store.orders, orderID)
		return nil
	})
}

func (r *orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := r.store.read(ctx, func() error {
		found, ok := r.store.orders[orderID]
		if !ok {
			return notFound("orders.find", "order %s not found", orderID)
		}
		order = cloneOrder(found)
		return nil
	})
	return order, err
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	keyset, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	pageSize := pagination.Clamp(pager.PageSize)

	var matches []domain.Order
	err = r.store.read(ctx, func() error {
		for _, order := range r.store.orders {
			if order.UserID == userID && keyset.After(order.CreatedAt, order.ID) {
				matches = append(matches, cloneOrder(order))
			}
		}
		return nil
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	slices.SortFunc(matches, func(a, b domain.Order) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	page := domain.CursorPage[domain.Order]{Items: matches}
	if len(matches) > pageSize {
		page.Items = matches[:pageSize]
		last := page.Items[pageSize-1]
		token, err := pagination.EncodeToken(pagination.Keyset{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}
