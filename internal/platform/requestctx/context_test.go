package requestctx

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerFallsBackToNoop(t *testing.T) {
	if Logger(context.Background()) != NoopLogger() {
		t.Fatalf("expected noop logger")
	}
	logger := zap.NewExample()
	if Logger(WithLogger(context.Background(), logger)) != logger {
		t.Fatalf("expected stored logger")
	}
}

func TestUserIDIgnoresBlank(t *testing.T) {
	ctx := WithUserID(context.Background(), "  ")
	if got := UserID(ctx); got != "" {
		t.Fatalf("expected empty user id, got %q", got)
	}
	ctx = WithUserID(ctx, " user-1 ")
	if got := UserID(ctx); got != "user-1" {
		t.Fatalf("expected user-1, got %q", got)
	}
}

func TestTraceID(t *testing.T) {
	if TraceID(context.Background()) != "" {
		t.Fatalf("expected empty trace id")
	}
	ctx := WithTrace(context.Background(), TraceInfo{TraceID: "abc"})
	if TraceID(ctx) != "abc" {
		t.Fatalf("expected trace id abc")
	}
}
