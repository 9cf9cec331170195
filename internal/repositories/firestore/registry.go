// Package firestore implements the repository registry on Cloud Firestore. Every unit of work
// is a Firestore transaction; repositories buffer their writes in the session bound to the
// context so all reads of the unit happen before the commit.
package firestore

import (
	"context"
	"errors"
	"time"

	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

const (
	healthCollection   = "_health"
	healthDocument     = "ping"
	healthCheckTimeout = 2 * time.Second
)

// Registry bundles the Firestore repositories around one provider.
type Registry struct {
	provider *pfirestore.Provider
	txOpts   []pfirestore.TxOption
	health   repositories.HealthRepository

	products *productRepository
	users    *userRepository
	ledger   *inventoryLedger
	orders   *orderRepository
	carts    *cartRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires repositories to provider. The registry closes the provider on Close.
func NewRegistry(provider *pfirestore.Provider, txOpts ...pfirestore.TxOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}
	products := pfirestore.NewCollection[productDocument](provider, productsCollection)
	probe := pfirestore.NewCollection[struct{}](provider, healthCollection)

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name:     "firestore",
			Critical: true,
			Timeout:  healthCheckTimeout,
			Check: func(ctx context.Context) error {
				_, _, err := probe.Get(ctx, healthDocument)
				return err
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		txOpts:   txOpts,
		health:   health,
		products: &productRepository{provider: provider, products: products},
		users:    &userRepository{provider: provider, users: pfirestore.NewCollection[userDocument](provider, usersCollection)},
		ledger:   &inventoryLedger{provider: provider, products: products},
		orders:   &orderRepository{provider: provider, orders: pfirestore.NewCollection[orderDocument](provider, ordersCollection)},
		carts: &cartRepository{
			provider: provider,
			carts:    pfirestore.NewCollection[cartDocument](provider, cartsCollection),
			owners:   pfirestore.NewCollection[cartOwnerDocument](provider, cartOwnersCollection),
		},
	}, nil
}

func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) Users() repositories.UserRepository { return r.users }

func (r *Registry) Inventory() repositories.InventoryLedger { return r.ledger }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Carts() repositories.CartRepository { return r.carts }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx runs fn in one Firestore transaction. fn may be replayed on contention, so it must
// not have side effects outside the session.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunInSession(ctx, fn, r.txOpts...)
}
