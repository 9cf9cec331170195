package firestore

import (
	"context"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/platform/pagination"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

type orderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
}

var _ repositories.OrderRepository = (*orderRepository)(nil)

func (r *orderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return pfirestore.Conflict("orders.insert", "order id is required")
	}
	return r.provider.RunInSession(ctx, func(ctx context.Context) error {
		ref, err := r.orders.Doc(ctx, order.ID)
		if err != nil {
			return err
		}
		pfirestore.SessionFrom(ctx).Create(ref, newOrderDocument(order))
		return nil
	})
}

func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.provider.RunInSession(ctx, func(ctx context.Context) error {
		ref, err := r.orders.Doc(ctx, order.ID)
		if err != nil {
			return err
		}
		if _, found, err := pfirestore.GetDoc[orderDocument](ctx, ref); err != nil {
			return err
		} else if !found {
			return pfirestore.NotFound("orders.update", "order %s not found", order.ID)
		}
		pfirestore.SessionFrom(ctx).Set(ref, newOrderDocument(order))
		return nil
	})
}

func (r *orderRepository) Delete(ctx context.Context, orderID string) error {
	return r.provider.RunInSession(ctx, func(ctx context.Context) error {
		ref, err := r.orders.Doc(ctx, orderID)
		if err != nil {
			return err
		}
		if _, found, err := pfirestore.GetDoc[orderDocument](ctx, ref); err != nil {
			return err
		} else if !found {
			return pfirestore.NotFound("orders.delete", "order %s not found", orderID)
		}
		pfirestore.SessionFrom(ctx).Delete(ref)
		return nil
	})
}

// FindByID reads through the caller's session when present, so a concurrent writer of the
// same order aborts one of the two transactions.
func (r *orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, found, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !found {
		return domain.Order{}, pfirestore.NotFound("orders.find", "order %s not found", orderID)
	}
	return doc.toDomain(orderID), nil
}

// ListByUser pages by (createdAt, document id). The query needs a composite index on
// userId ascending, createdAt ascending.
func (r *orderRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	keyset, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	pageSize := pagination.Clamp(pager.PageSize)

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("userId", "==", userID).
			OrderBy("createdAt", firestore.Asc).
			OrderBy(firestore.DocumentID, firestore.Asc)
		if !keyset.IsZero() {
			q = q.StartAfter(keyset.CreatedAt, keyset.ID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, len(docs))}
	for _, doc := range docs {
		page.Items = append(page.Items, doc.Data.toDomain(doc.ID))
	}
	if len(page.Items) > pageSize {
		page.Items = page.Items[:pageSize]
		last := page.Items[pageSize-1]
		token, err := pagination.EncodeToken(pagination.Keyset{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}
