package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/repositories"
)

// Registry exposes the memory store through the repositories.Registry contract.
type Registry struct {
	store  *Store
	health repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds a registry over a fresh store.
func NewRegistry() (*Registry, error) {
	store := NewStore()
	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name:     "memory",
			Critical: true,
			Check: func(ctx context.Context) error {
				return store.read(ctx, func() error { return nil })
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return &Registry{store: store, health: health}, nil
}

func (r *Registry) Close(context.Context) error { return nil }

func (r *Registry) Products() repositories.ProductRepository { return &productRepository{store: r.store} }
func (r *Registry) Users() repositories.UserRepository { return &userRepository{store: r.store} }
func (r *Registry) Inventory() repositories.InventoryLedger { return &inventoryLedger{store: r.store} }
func (r *Registry) Orders() repositories.OrderRepository { return &orderRepository{store: r.store} }
func (r *Registry) Carts() repositories.CartRepository { return &cartRepository{store: r.store} }
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx delegates to the store unit of work.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.store.RunInTx(ctx, fn)
}

// SeedData is the JSON document accepted by Seed and LoadSeedFile.
type SeedData struct {
	Users    []SeedUser    `json:"users"`
	Products []SeedProduct `json:"products"`
}

// SeedUser describes a user record in a seed document.
type SeedUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// SeedProduct describes a product record in a seed document.
type SeedProduct struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Price     int64  `json:"price"`
	Inventory int    `json:"inventory"`
}

// LoadSeedFile reads a seed document from disk.
func LoadSeedFile(path string) (SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SeedData{}, fmt.Errorf("memory: read seed file: %w", err)
	}
	var data SeedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return SeedData{}, fmt.Errorf("memory: decode seed file: %w", err)
	}
	return data, nil
}

// Seed loads users and products in one unit of work. Products are inserted with the seeded
// inventory, replacing any previous stock level.
func (r *Registry) Seed(ctx context.Context, data SeedData, now time.Time) error {
	now = now.UTC()
	return r.RunInTx(ctx, func(ctx context.Context) error {
		for _, user := range data.Users {
			if strings.TrimSpace(user.ID) == "" {
				return errors.New("memory: seed user missing id")
			}
			if err := r.Users().Upsert(ctx, domain.User{
				ID:          user.ID,
				Email:       user.Email,
				DisplayName: user.DisplayName,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}
		for _, product := range data.Products {
			if strings.TrimSpace(product.ID) == "" {
				return errors.New("memory: seed product missing id")
			}
			if product.Price < 0 || product.Inventory < 0 {
				return fmt.Errorf("memory: seed product %s has negative price or inventory", product.ID)
			}
			err := r.store.write(ctx, func(journal func(func())) error {
				journal(restore(r.store.products, product.ID))
				r.store.products[product.ID] = domain.Product{
					ID:        product.ID,
					Title:     product.Title,
					Price:     product.Price,
					Inventory: product.Inventory,
					CreatedAt: now,
					UpdatedAt: now,
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
