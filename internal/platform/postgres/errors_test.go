package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestWrapErrorClassifiesDriverErrors(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		notFound    bool
		conflict    bool
		unavailable bool
		retryable   bool
	}{
		{name: "no rows", err: sql.ErrNoRows, notFound: true},
		{name: "unique", err: &pq.Error{Code: codeUniqueViolation, Constraint: "carts_user_id_key"}, conflict: true},
		{name: "check", err: &pq.Error{Code: codeCheckViolation}, conflict: true},
		{name: "serialization", err: &pq.Error{Code: codeSerializationFailure}, conflict: true, retryable: true},
		{name: "deadlock", err: &pq.Error{Code: codeDeadlockDetected}, conflict: true, retryable: true},
		{name: "connection", err: &pq.Error{Code: "08006"}, unavailable: true},
		{name: "shutdown", err: &pq.Error{Code: codeAdminShutdown}, unavailable: true},
		{name: "conn done", err: sql.ErrConnDone, unavailable: true},
		{name: "other", err: errors.New("boom")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := WrapError("op", tc.err)
			var repoErr *Error
			if !errors.As(wrapped, &repoErr) {
				t.Fatalf("expected *Error, got %T", wrapped)
			}
			if repoErr.IsNotFound() != tc.notFound || repoErr.IsConflict() != tc.conflict || repoErr.IsUnavailable() != tc.unavailable {
				t.Fatalf("unexpected classification %+v", repoErr)
			}
			if isRetryable(wrapped) != tc.retryable {
				t.Fatalf("expected retryable=%v", tc.retryable)
			}
			if !errors.Is(wrapped, tc.err) {
				t.Fatalf("expected original error to remain in chain")
			}
		})
	}
}

func TestWrapErrorPassesThroughContextErrors(t *testing.T) {
	err := WrapError("op", fmt.Errorf("query: %w", context.DeadlineExceeded))
	var repoErr *Error
	if errors.As(err, &repoErr) {
		t.Fatalf("expected context error to pass through, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if WrapError("op", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestWrapErrorKeepsExistingClassification(t *testing.T) {
	original := NotFound("", "order %s", "ord_1")
	wrapped := WrapError("orders.find", original)
	if wrapped != original {
		t.Fatalf("expected the same error instance")
	}
	if wrapped.Error() != "orders.find: order ord_1" {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: codeUniqueViolation, Constraint: "carts_user_id_key"})
	if !IsUniqueViolation(err, "") || !IsUniqueViolation(err, "carts_user_id_key") {
		t.Fatalf("expected unique violation to be detected")
	}
	if IsUniqueViolation(err, "orders_pkey") {
		t.Fatalf("expected constraint name to be respected")
	}
	if IsUniqueViolation(&pq.Error{Code: codeCheckViolation}, "") {
		t.Fatalf("expected check violation not to match")
	}
}

func TestParseIsolation(t *testing.T) {
	cases := map[string]sql.IsolationLevel{
		"":                sql.LevelSerializable,
		"Serializable":    sql.LevelSerializable,
		"repeatable_read": sql.LevelRepeatableRead,
		"read_committed":  sql.LevelReadCommitted,
	}
	for name, want := range cases {
		got, err := ParseIsolation(name)
		if err != nil || got != want {
			t.Fatalf("ParseIsolation(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseIsolation("snapshot"); err == nil {
		t.Fatalf("expected error for unsupported level")
	}
}
