package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "idem:"

// RedisStore keeps idempotency records in Redis. Reservations use SET NX so concurrent
// requests with the same key race on a single command; expiry is delegated to key TTLs.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore constructs a Redis-backed store. Keys are namespaced with prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

type redisRecord struct {
	Key             string              `json:"key"`
	Fingerprint     string              `json:"fingerprint"`
	Status          Status              `json:"status"`
	ResponseStatus  int                 `json:"responseStatus,omitempty"`
	ResponseHeaders map[string][]string `json:"responseHeaders,omitempty"`
	ResponseBody    []byte              `json:"responseBody,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	ExpiresAt       time.Time           `json:"expiresAt"`
}

func (r redisRecord) toRecord() Record {
	return Record(r)
}

// Reserve implements the Store interface.
func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id := s.redisKey(key, fingerprint)

	pending := redisRecord{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	data, err := json.Marshal(pending)
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: encode record: %w", err)
	}

	created, err := s.client.SetNX(ctx, id, data, ttl).Result()
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: reserve %s: %w", key, err)
	}
	if created {
		return Reservation{State: ReservationStateNew, Record: pending.toRecord()}, nil
	}

	existing, found, err := s.load(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if !found {
		// Expired between SETNX and GET; the next attempt reserves it.
		return Reservation{State: ReservationStatePending, Record: pending.toRecord()}, nil
	}
	if existing.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if existing.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: existing.toRecord()}, nil
	}
	return Reservation{State: ReservationStatePending, Record: existing.toRecord()}, nil
}

// SaveResponse implements the Store interface.
func (s *RedisStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id := s.redisKey(key, fingerprint)

	record := redisRecord{Key: key, Fingerprint: fingerprint, CreatedAt: now}
	existing, found, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if found {
		if existing.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		record.CreatedAt = existing.CreatedAt
	}

	record.Status = StatusCompleted
	record.ResponseStatus = resp.Status
	record.ResponseHeaders = sanitizeHeaders(resp.Headers)
	if len(resp.Body) > 0 {
		record.ResponseBody = append([]byte(nil), resp.Body...)
	}
	record.UpdatedAt = now
	record.ExpiresAt = now.Add(ttl)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("idempotency: encode record: %w", err)
	}
	if err := s.client.Set(ctx, id, data, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: save %s: %w", key, err)
	}
	return nil
}

// Release implements the Store interface.
func (s *RedisStore) Release(ctx context.Context, key, fingerprint string) error {
	if err := s.client.Del(ctx, s.redisKey(key, fingerprint)).Err(); err != nil {
		return fmt.Errorf("idempotency: release %s: %w", key, err)
	}
	return nil
}

// CleanupExpired is a no-op; Redis evicts records through their TTL.
func (s *RedisStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) load(ctx context.Context, id string) (redisRecord, bool, error) {
	data, err := s.client.Get(ctx, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return redisRecord{}, false, nil
	}
	if err != nil {
		return redisRecord{}, false, fmt.Errorf("idempotency: load record: %w", err)
	}
	var record redisRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return redisRecord{}, false, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return record, true, nil
}

func (s *RedisStore) redisKey(key, fingerprint string) string {
	return s.prefix + compositeKey(key, fingerprint)
}
