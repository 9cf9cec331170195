package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.Environment != "local" {
		t.Errorf("expected local environment, got %s", cfg.Server.Environment)
	}
	if cfg.Store.Backend != StoreBackendMemory {
		t.Errorf("expected memory backend by default, got %s", cfg.Store.Backend)
	}
	if cfg.Postgres.Isolation != "serializable" {
		t.Errorf("expected serializable isolation by default, got %s", cfg.Postgres.Isolation)
	}
	if !cfg.Postgres.Migrate {
		t.Errorf("expected migrations enabled by default")
	}
	if cfg.Orders.ReserveOnEdit {
		t.Errorf("expected quantity edits not to reserve by default")
	}
	if cfg.Orders.DefaultPageSize != 50 || cfg.Orders.MaxPageSize != 100 {
		t.Errorf("unexpected page sizes %d/%d", cfg.Orders.DefaultPageSize, cfg.Orders.MaxPageSize)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.Backend != "memory" {
		t.Errorf("expected memory idempotency backend, got %s", cfg.Idempotency.Backend)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
	if cfg.Events.Topic != "" {
		t.Errorf("expected events disabled by default, got topic %s", cfg.Events.Topic)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":             "9090",
		"API_SERVER_IDLE_TIMEOUT":     "2m",
		"API_ENVIRONMENT":             "PROD",
		"API_STORE_BACKEND":           "Postgres",
		"API_STORE_SEED_FILE":         "/etc/commerce/seed.json",
		"API_POSTGRES_DSN":            "secret://postgres/dsn",
		"API_POSTGRES_ISOLATION":      "REPEATABLE_READ",
		"API_POSTGRES_TX_ATTEMPTS":    "3",
		"API_POSTGRES_MIGRATE":        "off",
		"API_FIRESTORE_PROJECT_ID":    "commerce-prod",
		"API_REDIS_ADDR":              "redis:6379",
		"API_REDIS_PASSWORD":          "sm://redis/password",
		"API_REDIS_DB":                "2",
		"API_EVENTS_TOPIC":            "commerce-events",
		"API_ORDERS_RESERVE_ON_EDIT":  "true",
		"API_ORDERS_MAX_PAGE_SIZE":    "200",
		"API_IDEMPOTENCY_HEADER":      "X-Idem-Key",
		"API_IDEMPOTENCY_BACKEND":     "redis",
		"API_IDEMPOTENCY_TTL":         "48h",
		"API_SERVER_SHUTDOWN_TIMEOUT": "5s",
	}

	secrets := map[string]string{
		"secret://postgres/dsn":   "postgres://commerce@db/commerce",
		"secret://redis/password": "hunter2",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Server.Environment != "prod" {
		t.Errorf("expected lower-cased environment, got %s", cfg.Server.Environment)
	}
	if cfg.Store.Backend != StoreBackendPostgres || cfg.Store.SeedFile != "/etc/commerce/seed.json" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Postgres.DSN != "postgres://commerce@db/commerce" {
		t.Errorf("expected resolved dsn, got %s", cfg.Postgres.DSN)
	}
	if cfg.Postgres.Isolation != "repeatable_read" || cfg.Postgres.TxAttempts != 3 || cfg.Postgres.Migrate {
		t.Errorf("unexpected postgres config %+v", cfg.Postgres)
	}
	if cfg.Redis.Password != "hunter2" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Events.ProjectID != "commerce-prod" {
		t.Errorf("expected events project to default to firestore project, got %s", cfg.Events.ProjectID)
	}
	if !cfg.Orders.ReserveOnEdit || cfg.Orders.MaxPageSize != 200 {
		t.Errorf("unexpected orders config %+v", cfg.Orders)
	}
	if cfg.Idempotency.Header != "X-Idem-Key" || cfg.Idempotency.TTL != 48*time.Hour {
		t.Errorf("unexpected idempotency config %+v", cfg.Idempotency)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nexport API_STORE_BACKEND=firestore\nAPI_FIRESTORE_PROJECT_ID='commerce-dot'\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "commerce-dot" {
		t.Errorf("expected firestore project from dotenv, got %s", cfg.Firestore.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	env := map[string]string{
		"API_STORE_BACKEND":        "postgres",
		"API_POSTGRES_ISOLATION":   "chaos",
		"API_IDEMPOTENCY_BACKEND":  "redis",
		"API_ORDERS_MAX_PAGE_SIZE": "10",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	for _, field := range []string{"Postgres.DSN", "Postgres.Isolation", "Redis.Addr", "Orders.PageSize"} {
		if !slices.Contains(validation.Fields(), field) {
			t.Errorf("expected %s in %v", field, validation.Fields())
		}
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{"API_STORE_BACKEND": "mongo"}), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) || !slices.Contains(validation.Fields(), "Store.Backend") {
		t.Fatalf("expected Store.Backend validation error, got %v", err)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_STORE_BACKEND": "postgres",
		"API_POSTGRES_DSN":  "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIRESTORE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIRESTORE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "override-project",
		"API_SECRET_VERSION_PINS":  "secret://postgres/dsn=5",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIRESTORE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
	if got := values["API_SECRET_VERSION_PINS"]; got != "secret://postgres/dsn=5" {
		t.Fatalf("expected override version pin, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(map[string]string{}),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Redis.Password"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("Redis.Password")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when required secrets missing")
		}
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "Postgres.DSN" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	Load(context.Background(),
		WithEnvMap(map[string]string{}),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Postgres.DSN"),
		WithPanicOnMissingSecrets(),
	)
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_STORE_BACKEND": "postgres",
		"API_POSTGRES_DSN":  "sm://postgres/dsn",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://postgres/dsn" {
			return "postgres://legacy", nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://legacy" {
		t.Fatalf("expected legacy secret, got %s", cfg.Postgres.DSN)
	}
}
