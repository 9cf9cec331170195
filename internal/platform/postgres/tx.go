package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultTxAttempts = 5
	defaultRetryDelay = 20 * time.Millisecond
	tracerName        = "github.com/hanko-field/commerce/internal/platform/postgres"
)

// Queryer is the subset shared by *sql.DB and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// TxOption customises transaction behaviour.
type TxOption func(*UnitOfWork)

// WithTxAttempts overrides how often a unit is replayed after serialization failures or deadlocks.
func WithTxAttempts(attempts int) TxOption {
	return func(u *UnitOfWork) {
		if attempts > 0 {
			u.attempts = attempts
		}
	}
}

// WithIsolation sets the isolation level every unit starts with.
func WithIsolation(level sql.IsolationLevel) TxOption {
	return func(u *UnitOfWork) {
		u.isolation = level
	}
}

// WithRetryDelay sets the base back-off between attempts. Attempt n waits n times the delay.
func WithRetryDelay(delay time.Duration) TxOption {
	return func(u *UnitOfWork) {
		if delay >= 0 {
			u.retryDelay = delay
		}
	}
}

// UnitOfWork runs functions inside one database transaction carried on the context.
// Nested calls join the outer transaction.
type UnitOfWork struct {
	db         *sql.DB
	attempts   int
	isolation  sql.IsolationLevel
	retryDelay time.Duration
}

// NewUnitOfWork binds a unit of work to the pool.
func NewUnitOfWork(db *sql.DB, opts ...TxOption) (*UnitOfWork, error) {
	if db == nil {
		return nil, errors.New("postgres: database is nil")
	}
	u := &UnitOfWork{
		db:         db,
		attempts:   defaultTxAttempts,
		isolation:  sql.LevelSerializable,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u, nil
}

// Conn returns the transaction bound to ctx, or the pool when no unit is active.
func (u *UnitOfWork) Conn(ctx context.Context) Queryer {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return u.db
}

// InTx reports whether ctx carries an active transaction.
func InTx(ctx context.Context) bool {
	return txFromContext(ctx) != nil
}

// RunInTx executes fn in a transaction. Serialization failures and deadlocks roll back and
// replay fn, so fn must not have side effects outside the database.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("postgres: transaction function is nil")
	}
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "postgres.RunInTx")
	defer span.End()

	var err error
	for attempt := 1; attempt <= u.attempts; attempt++ {
		span.SetAttributes(attribute.Int("db.tx.attempt", attempt))
		err = u.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) || attempt == u.attempts {
			break
		}
		if waitErr := sleepCtx(ctx, time.Duration(attempt)*u.retryDelay); waitErr != nil {
			err = waitErr
			break
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (u *UnitOfWork) runOnce(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: u.isolation})
	if err != nil {
		return WrapError("begin", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return WrapError("commit", err)
	}
	return nil
}

func txFromContext(ctx context.Context) *sql.Tx {
	if ctx == nil {
		return nil
	}
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
