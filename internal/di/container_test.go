package di

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/platform/config"
	"github.com/hanko-field/commerce/internal/repositories"
	"github.com/hanko-field/commerce/internal/services"
)

const seedDocument = `{
  "users": [{"id": "user_1", "email": "user@example.com", "displayName": "Hanako"}],
  "products": [{"id": "prod_a", "title": "Stamp", "price": 1200, "inventory": 3}]
}`

func writeSeedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(seedDocument), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestOpenRegistryMemorySeedsAndServesOrders(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{Store: config.StoreConfig{Backend: config.StoreBackendMemory, SeedFile: writeSeedFile(t)}}

	reg, err := OpenRegistry(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	container, err := NewContainer(ctx, cfg, reg, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	order, err := container.Services.Orders.CreateOrder(ctx, services.CreateOrderCommand{
		UserID: "user_1",
		Lines:  []services.LineItem{{ProductID: "prod_a", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.TotalPrice != 2400 {
		t.Fatalf("expected total 2400, got %d", order.TotalPrice)
	}

	level, err := container.Services.Inventory.StockLevel(ctx, "prod_a")
	if err != nil {
		t.Fatalf("StockLevel: %v", err)
	}
	if level.Available != 1 {
		t.Fatalf("expected 1 unit left, got %d", level.Available)
	}

	_, err = container.Services.Orders.CreateOrder(ctx, services.CreateOrderCommand{
		UserID: "user_1",
		Lines:  []services.LineItem{{ProductID: "prod_a", Quantity: 2}},
	})
	if !errors.Is(err, services.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestOpenRegistryRejectsUnknownBackend(t *testing.T) {
	_, err := OpenRegistry(context.Background(), config.Config{Store: config.StoreConfig{Backend: "cassandra"}}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestOpenRegistryMissingSeedFile(t *testing.T) {
	cfg := config.Config{Store: config.StoreConfig{Backend: config.StoreBackendMemory, SeedFile: filepath.Join(t.TempDir(), "missing.json")}}
	if _, err := OpenRegistry(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for missing seed file")
	}
}

func TestNewContainerRuntimeChecksDegradeReadiness(t *testing.T) {
	ctx := context.Background()
	reg, err := OpenRegistry(ctx, config.Config{}, nil)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}

	container, err := NewContainer(ctx, config.Config{}, reg,
		WithBuildInfo(services.BuildInfo{Version: "1.2.3"}),
		WithHealthChecks(repositories.DependencyCheck{
			Name:  "redis",
			Check: func(context.Context) error { return errors.New("connection refused") },
		}),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}

	report, ready, err := container.Services.System.Ready(ctx)
	if err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if !ready {
		t.Fatalf("expected a degraded optional dependency to keep the instance ready")
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded status, got %s", report.Status)
	}
	if _, ok := report.Checks["memory"]; !ok {
		t.Fatalf("expected registry check in report, got %v", report.Checks)
	}
	if report.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %s", report.Version)
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	if _, err := NewContainer(context.Background(), config.Config{}, nil); err == nil {
		t.Fatalf("expected error without registry")
	}
}

func TestServiceLoggerToleratesNilFields(t *testing.T) {
	log := ServiceLogger(nil)
	log(context.Background(), "order.created", nil)
	log(context.Background(), "order.created", map[string]any{"orderId": "ord_1", "lines": 2})
}
