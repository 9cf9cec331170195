package memory

import (
	"context"
	"strings"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/repositories"
)

type productRepository struct{ store *Store }

var _ repositories.ProductRepository = (*productRepository)(nil)

func (r *productRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	var product domain.Product
	err := r.store.read(ctx, func() error {
		found, ok := r.store.products[productID]
		if !ok {
			return notFound("products.find", "product %s not found", productID)
		}
		product = found
		return nil
	})
	return product, err
}

// Upsert keeps the stored inventory of an existing product; stock only moves through the ledger.
func (r *productRepository) Upsert(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return conflict("products.upsert", "product id is required")
	}
	return r.store.write(ctx, func(journal func(func())) error {
		if existing, ok := r.store.products[product.ID]; ok {
			product.Inventory = existing.Inventory
			product.CreatedAt = existing.CreatedAt
		}
		journal(restore(r.store.products, product.ID))
		r.store.products[product.ID] = product
		return nil
	})
}

type userRepository struct{ store *Store }

var _ repositories.UserRepository = (*userRepository)(nil)

func (r *userRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	var user domain.User
	err := r.store.read(ctx, func() error {
		found, ok := r.store.users[userID]
		if !ok {
			return notFound("users.find", "user %s not found", userID)
		}
		user = found
		return nil
	})
	return user, err
}

func (r *userRepository) Upsert(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.ID) == "" {
		return conflict("users.upsert", "user id is required")
	}
	return r.store.write(ctx, func(journal func(func())) error {
		journal(restore(r.store.users, user.ID))
		r.store.users[user.ID] = user
		return nil
	})
}

type inventoryLedger struct{ store *Store }

var _ repositories.InventoryLedger = (*inventoryLedger)(nil)

func (l *inventoryLedger) TryReserve(ctx context.Context, productID string, quantity int) error {
	const op = "inventory.reserve"
	if quantity <= 0 {
		return repositories.InvalidQuantity(op, productID, quantity)
	}
	return l.store.write(ctx, func(journal func(func())) error {
		product, ok := l.store.products[productID]
		if !ok {
			return repositories.StockNotFound(op, productID)
		}
		if product.Inventory < quantity {
			return repositories.InsufficientStock(op, productID, quantity, product.Inventory)
		}
		journal(restore(l.store.products, productID))
		product.Inventory -= quantity
		l.store.products[productID] = product
		return nil
	})
}

func (l *inventoryLedger) Release(ctx context.Context, productID string, quantity int) error {
	const op = "inventory.release"
	if quantity <= 0 {
		return repositories.InvalidQuantity(op, productID, quantity)
	}
	return l.store.write(ctx, func(journal func(func())) error {
		product, ok := l.store.products[productID]
		if !ok {
			return repositories.StockNotFound(op, productID)
		}
		journal(restore(l.store.products, productID))
		product.Inventory += quantity
		l.store.products[productID] = product
		return nil
	})
}

func (l *inventoryLedger) Available(ctx context.Context, productID string) (int, error) {
	var available int
	err := l.store.read(ctx, func() error {
		product, ok := l.store.products[productID]
		if !ok {
			return repositories.StockNotFound("inventory.available", productID)
		}
		available = product.Inventory
		return nil
	})
	return available, err
}
