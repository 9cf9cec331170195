// Package postgres implements the repository registry on PostgreSQL. Inventory moves through
// conditional updates so concurrent reservations serialise on the product row.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"time"

	"github.com/hanko-field/commerce/internal/platform/postgres"
	"github.com/hanko-field/commerce/internal/repositories"
)

//go:embed schema.sql
var schema string

const healthCheckTimeout = 2 * time.Second

// Registry bundles the PostgreSQL repositories around one pool and unit of work.
type Registry struct {
	db     *sql.DB
	uow    *postgres.UnitOfWork
	health repositories.HealthRepository

	products *productRepository
	users    *userRepository
	ledger   *inventoryLedger
	orders   *orderRepository
	carts    *cartRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires repositories to db. The registry owns db and closes it on Close.
func NewRegistry(db *sql.DB, opts ...postgres.TxOption) (*Registry, error) {
	uow, err := postgres.NewUnitOfWork(db, opts...)
	if err != nil {
		return nil, err
	}
	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name:     "postgres",
			Critical: true,
			Timeout:  healthCheckTimeout,
			Check: func(ctx context.Context) error {
				return postgres.Ping(ctx, db)
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return &Registry{
		db:       db,
		uow:      uow,
		health:   health,
		products: &productRepository{uow: uow},
		users:    &userRepository{uow: uow},
		ledger:   &inventoryLedger{uow: uow},
		orders:   &orderRepository{uow: uow},
		carts:    &cartRepository{uow: uow},
	}, nil
}

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("postgres: database is nil")
	}
	_, err := db.ExecContext(ctx, schema)
	return postgres.WrapError("migrate", err)
}

func (r *Registry) Close(context.Context) error {
	return r.db.Close()
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) Users() repositories.UserRepository { return r.users }

func (r *Registry) Inventory() repositories.InventoryLedger { return r.ledger }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Carts() repositories.CartRepository { return r.carts }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx runs fn in one database transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.uow.RunInTx(ctx, fn)
}
