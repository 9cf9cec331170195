package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/hanko-field/commerce/internal/di"
	"github.com/hanko-field/commerce/internal/handlers"
	"github.com/hanko-field/commerce/internal/platform/config"
	"github.com/hanko-field/commerce/internal/platform/idempotency"
	"github.com/hanko-field/commerce/internal/platform/jobs"
	"github.com/hanko-field/commerce/internal/platform/observability"
	"github.com/hanko-field/commerce/internal/platform/pagination"
	"github.com/hanko-field/commerce/internal/platform/secrets"
	"github.com/hanko-field/commerce/internal/repositories"
	"github.com/hanko-field/commerce/internal/services"
)

const (
	idempotencyBackendRedis = "redis"
	closeTimeout            = 5 * time.Second
	pubsubCheckTimeout      = 2 * time.Second
	redisCheckTimeout       = time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "commerce api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger(os.Getenv("API_ENVIRONMENT"))
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		return fmt.Errorf("read environment values: %w", err)
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		return fmt.Errorf("initialise secret fetcher: %w", err)
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Error("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		return fmt.Errorf("load configuration: %w", err)
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	registry, err := di.OpenRegistry(ctx, cfg, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("store close error", zap.Error(err))
		}
	}()

	var (
		events       services.EventPublisher
		healthChecks []repositories.DependencyCheck
	)
	if topicName := strings.TrimSpace(cfg.Events.Topic); topicName != "" {
		client, topic, err := newEventTopic(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			topic.Stop()
			if err := client.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		publisher, err := jobs.NewPubSubEventPublisher(topic)
		if err != nil {
			return err
		}
		events = publisher
		healthChecks = append(healthChecks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: pubsubCheckTimeout,
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s not found", topicName)
				}
				return nil
			},
		})
	}

	idemStore, idemCheck, closeIdem, err := newIdempotencyStore(cfg)
	if err != nil {
		return err
	}
	defer closeIdem()
	if idemCheck != nil {
		healthChecks = append(healthChecks, *idemCheck)
	}

	containerOpts := []di.Option{
		di.WithLogger(logger),
		di.WithBuildInfo(buildInfo),
		di.WithHealthChecks(healthChecks...),
	}
	if events != nil {
		containerOpts = append(containerOpts, di.WithEventPublisher(events))
	}
	container, err := di.NewContainer(ctx, cfg, registry, containerOpts...)
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}

	orderHandlers := handlers.NewOrderHandlers(container.Services.Orders, pagination.Options{
		DefaultPageSize: cfg.Orders.DefaultPageSize,
		MaxPageSize:     cfg.Orders.MaxPageSize,
	})
	cartHandlers := handlers.NewCartHandlers(container.Services.Carts)
	productHandlers := handlers.NewProductHandlers(container.Services.Inventory)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)

	projectID := traceProjectID(cfg)
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.UserIDMiddleware(""),
			observability.RequestLoggerMiddleware(projectID),
		),
		handlers.WithAPIMiddlewares(idempotency.Middleware(
			idemStore,
			idempotency.WithHeader(cfg.Idempotency.Header),
			idempotency.WithTTL(cfg.Idempotency.TTL),
			idempotency.WithLogger(logger.Named("idempotency")),
		)),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithUserRoutes(handlers.UserRoutes(orderHandlers.UserRoutes, cartHandlers.UserRoutes)),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr), zap.String("store", cfg.Store.Backend))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		serverLogger.Info("commerce api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return idempotency.RunCleanup(gctx, idemStore, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize, logger.Named("idempotency"))
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received; draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newEventTopic(ctx context.Context, cfg config.Config) (*pubsub.Client, *pubsub.Topic, error) {
	projectID := strings.TrimSpace(cfg.Events.ProjectID)
	if projectID == "" {
		projectID = strings.TrimSpace(cfg.Firestore.ProjectID)
	}
	if projectID == "" {
		return nil, nil, errors.New("pubsub: project id is required when an events topic is configured")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub: new client: %w", err)
	}
	return client, client.Topic(strings.TrimSpace(cfg.Events.Topic)), nil
}

func newIdempotencyStore(cfg config.Config) (idempotency.Store, *repositories.DependencyCheck, func(), error) {
	if cfg.Idempotency.Backend != idempotencyBackendRedis {
		return idempotency.NewMemoryStore(), nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store, err := idempotency.NewRedisStore(client, cfg.Redis.KeyPrefix)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	check := &repositories.DependencyCheck{
		Name:    "redis",
		Timeout: redisCheckTimeout,
		Check:   store.Ping,
	}
	return store, check, func() { _ = client.Close() }, nil
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Server.Environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firestore.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Events.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := lookup("API_SECRET_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}
