package di

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/commerce/internal/platform/config"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/platform/observability"
	"github.com/hanko-field/commerce/internal/platform/postgres"
	"github.com/hanko-field/commerce/internal/platform/requestctx"
	"github.com/hanko-field/commerce/internal/repositories"
	firestoreRepo "github.com/hanko-field/commerce/internal/repositories/firestore"
	"github.com/hanko-field/commerce/internal/repositories/memory"
	postgresRepo "github.com/hanko-field/commerce/internal/repositories/postgres"
	"github.com/hanko-field/commerce/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders    services.OrderService
	Carts     services.CartService
	Inventory services.InventoryService
	System    services.SystemService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises container construction.
type Option func(*options)

type options struct {
	events services.EventPublisher
	logger *zap.Logger
	clock  func() time.Time
	build  services.BuildInfo
	checks []repositories.DependencyCheck
}

// WithEventPublisher sets the publisher that receives domain events after commit.
func WithEventPublisher(publisher services.EventPublisher) Option {
	return func(o *options) { o.events = publisher }
}

// WithLogger sets the logger backing the service event hooks.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source shared by every service.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithBuildInfo sets the metadata reported by the system service.
func WithBuildInfo(info services.BuildInfo) Option {
	return func(o *options) { o.build = info }
}

// WithHealthChecks adds runtime dependency probes next to the registry's own checks.
func WithHealthChecks(checks ...repositories.DependencyCheck) Option {
	return func(o *options) { o.checks = append(o.checks, checks...) }
}

// NewContainer constructs the services on top of reg.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	o := options{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	svc, err := buildServices(ctx, reg, cfg, o)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases the repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, o options) (Services, error) {
	var svc Services

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:                reg.Orders(),
		Products:              reg.Products(),
		Users:                 reg.Users(),
		Inventory:             reg.Inventory(),
		UnitOfWork:            reg,
		Clock:                 o.clock,
		Events:                o.events,
		Logger:                ServiceLogger(o.logger.Named("orders")),
		ReserveOnQuantityEdit: cfg.Orders.ReserveOnEdit,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:      reg.Carts(),
		Products:   reg.Products(),
		Users:      reg.Users(),
		UnitOfWork: reg,
		Clock:      o.clock,
		Events:     o.events,
		Logger:     ServiceLogger(o.logger.Named("carts")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Carts = cartSvc

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory:  reg.Inventory(),
		UnitOfWork: reg,
		Clock:      o.clock,
		Events:     o.events,
		Logger:     ServiceLogger(o.logger.Named("inventory")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventorySvc

	health := reg.Health()
	if len(o.checks) > 0 {
		runtimeHealth, err := repositories.NewDependencyHealthRepository(o.checks)
		if err != nil {
			return Services{}, fmt.Errorf("build runtime health checks: %w", err)
		}
		health = repositories.CombineHealth(health, runtimeHealth)
	}
	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: health,
		Clock:            o.clock,
		Build:            o.build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}

// OpenRegistry builds the repository registry for the configured store backend. The memory
// backend is seeded from cfg.Store.SeedFile when set.
func OpenRegistry(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Store.Backend {
	case "", config.StoreBackendMemory:
		reg, err := memory.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("build memory registry: %w", err)
		}
		if path := strings.TrimSpace(cfg.Store.SeedFile); path != "" {
			data, err := memory.LoadSeedFile(path)
			if err != nil {
				return nil, err
			}
			if err := reg.Seed(ctx, data, time.Now()); err != nil {
				return nil, fmt.Errorf("seed memory registry: %w", err)
			}
			logger.Info("memory store seeded",
				zap.String("file", path),
				zap.Int("users", len(data.Users)),
				zap.Int("products", len(data.Products)),
			)
		}
		return reg, nil

	case config.StoreBackendPostgres:
		level, err := postgres.ParseIsolation(cfg.Postgres.Isolation)
		if err != nil {
			return nil, err
		}
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.Migrate {
			if err := postgresRepo.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("migrate postgres schema: %w", err)
			}
		}
		reg, err := postgresRepo.NewRegistry(db,
			postgres.WithIsolation(level),
			postgres.WithTxAttempts(cfg.Postgres.TxAttempts),
		)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("build postgres registry: %w", err)
		}
		warnIgnoredSeed(logger, cfg)
		return reg, nil

	case config.StoreBackendFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		if _, err := provider.Client(ctx); err != nil {
			return nil, fmt.Errorf("initialise firestore client: %w", err)
		}
		reg, err := firestoreRepo.NewRegistry(provider, pfirestore.TxOptionsFromConfig(cfg.Firestore)...)
		if err != nil {
			_ = provider.Close(ctx)
			return nil, fmt.Errorf("build firestore registry: %w", err)
		}
		warnIgnoredSeed(logger, cfg)
		return reg, nil

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

func warnIgnoredSeed(logger *zap.Logger, cfg config.Config) {
	if strings.TrimSpace(cfg.Store.SeedFile) != "" {
		logger.Warn("seed file ignored for non-memory backend", zap.String("backend", cfg.Store.Backend))
	}
}

// ServiceLogger adapts zap to the event hook accepted by the services. The request-scoped
// logger on ctx wins over fallback so request ids and trace fields are kept.
func ServiceLogger(fallback *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := fallback
		if scoped := observability.FromContext(ctx); scoped != requestctx.NoopLogger() {
			logger = scoped.With(zap.String("component", fallback.Name()))
		}
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		zapFields := make([]zap.Field, 0, len(keys))
		for _, key := range keys {
			zapFields = append(zapFields, zap.Any(key, fields[key]))
		}
		logger.Info(event, zapFields...)
	}
}
