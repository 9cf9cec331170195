package repositories

import (
	"context"

	domain "github.com/hanko-field/commerce/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Users() UserRepository
	Inventory() InventoryLedger
	Orders() OrderRepository
	Carts() CartRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in a transactional boundary. Calls made with a
// context that already carries a transaction join it instead of opening a new one.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository resolves catalog entries. Upsert is used by seeding and admin tooling;
// it never mutates inventory of an existing product.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) error
}

// UserRepository resolves the account directory.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
	Upsert(ctx context.Context, user domain.User) error
}

// InventoryLedger is the only writer of product inventory. TryReserve is atomic with respect
// to concurrent callers on the same product and never leaves inventory negative.
type InventoryLedger interface {
	TryReserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
	Available(ctx context.Context, productID string) (int, error)
}

// OrderRepository persists orders with their lines. FindByID called inside a unit of work
// locks the order for the remainder of the transaction where the backend supports it.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
}

// CartRepository persists carts. Insert reports a conflict when the user already owns a cart.
type CartRepository interface {
	Insert(ctx context.Context, cart domain.Cart) error
	Update(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, cartID string) error
	FindByID(ctx context.Context, cartID string) (domain.Cart, error)
	FindByUser(ctx context.Context, userID string) (domain.Cart, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
