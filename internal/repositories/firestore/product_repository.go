package firestore

import (
	"context"
	"strings"

	domain "github.com/hanko-field/commerce/internal/domain"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

type productRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[productDocument]
}

var _ repositories.ProductRepository = (*productRepository)(nil)

func (r *productRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, found, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if !found {
		return domain.Product{}, pfirestore.NotFound("products.find", "product %s not found", productID)
	}
	return doc.toDomain(productID), nil
}

// Upsert refreshes catalog fields; the inventory and creation time of an existing product stay.
func (r *productRepository) Upsert(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return pfirestore.Conflict("products.upsert", "product id is required")
	}
	return r.provider.RunInSession(ctx, func(ctx context.Context) error {
		ref, err := r.products.Doc(ctx, product.ID)
		if err != nil {
			return err
		}
		existing, found, err := pfirestore.GetDoc[productDocument](ctx, ref)
		if err != nil {
			return err
		}
		doc := productDocument{
			Title:     product.Title,
			Price:     product.Price,
			Inventory: product.Inventory,
			CreatedAt: product.CreatedAt.UTC(),
			UpdatedAt: product.UpdatedAt.UTC(),
		}
		if found {
			doc.Inventory = existing.Inventory
			doc.CreatedAt = existing.CreatedAt
		}
		pfirestore.SessionFrom(ctx).Set(ref, doc)
		return nil
	})
}
