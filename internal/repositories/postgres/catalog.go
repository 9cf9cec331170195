package postgres

import (
	"context"
	"strings"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/platform/postgres"
	"github.com/hanko-field/commerce/internal/repositories"
)

type productRepository struct{ uow *postgres.UnitOfWork }

var _ repositories.ProductRepository = (*productRepository)(nil)

func (r *productRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	const query = `SELECT id, title, price, inventory, created_at, updated_at FROM products WHERE id = $1`
	var product domain.Product
	err := r.uow.Conn(ctx).QueryRowContext(ctx, query, productID).Scan(
		&product.ID, &product.Title, &product.Price, &product.Inventory, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, postgres.WrapError("products.find", err)
	}
	return product, nil
}

// Upsert inserts the product or refreshes its catalog fields. Inventory of an existing row is
// left to the ledger.
func (r *productRepository) Upsert(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return postgres.Conflict("products.upsert", "product id is required")
	}
	const query = `
INSERT INTO products (id, title, price, inventory, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, price = EXCLUDED.price, updated_at = EXCLUDED.updated_at`
	_, err := r.uow.Conn(ctx).ExecContext(ctx, query,
		product.ID, product.Title, product.Price, product.Inventory, product.CreatedAt, product.UpdatedAt)
	return postgres.WrapError("products.upsert", err)
}

type userRepository struct{ uow *postgres.UnitOfWork }

var _ repositories.UserRepository = (*userRepository)(nil)

func (r *userRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	const query = `SELECT id, email, display_name, created_at FROM users WHERE id = $1`
	var user domain.User
	err := r.uow.Conn(ctx).QueryRowContext(ctx, query, userID).Scan(&user.ID, &user.Email, &user.DisplayName, &user.CreatedAt)
	if err != nil {
		return domain.User{}, postgres.WrapError("users.find", err)
	}
	return user, nil
}

func (r *userRepository) Upsert(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.ID) == "" {
		return postgres.Conflict("users.upsert", "user id is required")
	}
	const query = `
INSERT INTO users (id, email, display_name, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, display_name = EXCLUDED.display_name`
	_, err := r.uow.Conn(ctx).ExecContext(ctx, query, user.ID, user.Email, user.DisplayName, user.CreatedAt)
	return postgres.WrapError("users.upsert", err)
}
