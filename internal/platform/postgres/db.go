// Package postgres opens the relational connection pool and runs units of work on it.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/hanko-field/commerce/internal/platform/config"
)

const (
	driverName         = "postgres"
	defaultPingTimeout = 5 * time.Second
)

// Open creates the connection pool described by cfg and verifies it with a ping.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres: dsn is required")
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, WrapError("ping", err)
	}
	return db, nil
}

// ParseIsolation maps the configured isolation name onto database/sql levels.
func ParseIsolation(name string) (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "serializable":
		return sql.LevelSerializable, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "read_committed":
		return sql.LevelReadCommitted, nil
	default:
		return sql.LevelDefault, fmt.Errorf("postgres: unsupported isolation level %q", name)
	}
}

// Ping reports whether the pool can reach the server. It backs the health check.
func Ping(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("postgres: database is nil")
	}
	return WrapError("ping", db.PingContext(ctx))
}
