//go:build integration

package idempotency

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("API_REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("API_REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	store, err := NewRedisStore(client, "test:"+time.Now().Format("150405.000000")+":")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	return store
}

func TestRedisStoreLifecycle(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	first, err := store.Reserve(ctx, "key-1", "fp-1", fixedTime, time.Minute)
	if err != nil || first.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %+v err=%v", first, err)
	}
	pending, err := store.Reserve(ctx, "key-1", "fp-1", fixedTime, time.Minute)
	if err != nil || pending.State != ReservationStatePending {
		t.Fatalf("expected pending reservation, got %+v err=%v", pending, err)
	}

	resp := Response{Status: http.StatusCreated, Headers: http.Header{"Content-Type": {"application/json"}}, Body: []byte(`{"id":"ord_1"}`)}
	if err := store.SaveResponse(ctx, "key-1", "fp-1", resp, fixedTime, time.Minute); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}
	done, err := store.Reserve(ctx, "key-1", "fp-1", fixedTime, time.Minute)
	if err != nil || done.State != ReservationStateCompleted {
		t.Fatalf("expected completed reservation, got %+v err=%v", done, err)
	}
	if done.Record.ResponseStatus != http.StatusCreated || string(done.Record.ResponseBody) != `{"id":"ord_1"}` {
		t.Fatalf("unexpected stored response %+v", done.Record)
	}

	if _, err := store.Reserve(ctx, "key-1", "fp-2", fixedTime, time.Minute); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}

	if err := store.Release(ctx, "key-1", "fp-1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := store.Reserve(ctx, "key-1", "fp-1", fixedTime, time.Minute)
	if err != nil || again.State != ReservationStateNew {
		t.Fatalf("expected new reservation after release, got %+v err=%v", again, err)
	}
}
