package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// SQLSTATE codes the unit of work and repositories react to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeAdminShutdown        = "57P01"
	codeCannotConnectNow     = "57P03"
)

// Error implements repositories.RepositoryError for PostgreSQL backed repositories.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
	retryable   bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the error represents a missing row.
func (e *Error) IsNotFound() bool {
	return e != nil && e.notFound
}

// IsConflict reports whether the error represents a constraint violation or a lost race.
func (e *Error) IsConflict() bool {
	return e != nil && e.conflict
}

// IsUnavailable reports whether the database could not be reached.
func (e *Error) IsUnavailable() bool {
	return e != nil && e.unavailable
}

// NotFound builds the error repositories return when a lookup matched no row.
func NotFound(op, format string, args ...any) error {
	return &Error{op: op, err: fmt.Errorf(format, args...), notFound: true}
}

// Conflict builds the error repositories return when a write lost against existing state.
func Conflict(op, format string, args ...any) error {
	return &Error{op: op, err: fmt.Errorf(format, args...), conflict: true}
}

func newError(op string, err error) *Error {
	e := &Error{op: op, err: err}
	if errors.Is(err, sql.ErrNoRows) {
		e.notFound = true
		return e
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, pq.ErrSSLNotSupported) {
		e.unavailable = true
		return e
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return e
	}
	switch code := string(pqErr.Code); {
	case code == codeUniqueViolation, code == codeForeignKeyViolation, code == codeCheckViolation:
		e.conflict = true
	case code == codeSerializationFailure, code == codeDeadlockDetected, code == codeLockNotAvailable:
		e.conflict = true
		e.retryable = true
	case strings.HasPrefix(code, "08"), code == codeAdminShutdown, code == codeCannotConnectNow:
		e.unavailable = true
	}
	return e
}

// WrapError annotates driver errors with repository semantics. Context cancellations are passed through.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var repoErr *Error
	if errors.As(err, &repoErr) {
		if op != "" && repoErr.op == "" {
			repoErr.op = op
		}
		return repoErr
	}
	return newError(op, err)
}

// IsUniqueViolation reports whether err stems from a unique constraint, optionally a specific one.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != codeUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func isRetryable(err error) bool {
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return repoErr.retryable
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return true
		}
	}
	return false
}
