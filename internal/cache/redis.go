package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/toption/optionscan/internal/domain"
)

const (
	snapshotKeyPrefix = "optionscan:snapshot:"
	scanningKeyPrefix = "optionscan:scanning:"

	// scanningFlagTTL bounds how long a crashed scan can leave a market
	// stuck in the scanning state.
	scanningFlagTTL = 10 * time.Minute
)

// RedisStore keeps snapshots in Redis so every instance reads the same
// cache, which the in-process singleton of the original design only
// pretended to do. Merges are read-modify-write and last-writer-wins; the
// scanner's per-market single-flight keeps same-market writers serialized
// within an instance.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

// DialRedis connects with the pool and timeout settings the service uses
// everywhere, and verifies the connection with a ping.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, mt domain.MarketType) (*Snapshot, State, error) {
	snap, err := s.loadSnapshot(ctx, mt)
	if err != nil {
		return nil, StateEmpty, err
	}

	scanning, err := s.client.Exists(ctx, scanningKeyPrefix+string(mt)).Result()
	if err != nil {
		return nil, StateEmpty, fmt.Errorf("redis scanning flag: %w", err)
	}

	return snap, deriveState(snap, scanning > 0, s.now()), nil
}

// MergeBatch implements Store.
func (s *RedisStore) MergeBatch(ctx context.Context, mt domain.MarketType, batchSymbols []string, fresh, trending []domain.Opportunity, meta Metadata) (*Snapshot, error) {
	prev, err := s.loadSnapshot(ctx, mt)
	if err != nil {
		return nil, err
	}

	next := merge(prev, batchSymbols, fresh, trending, meta, s.ttl)

	payload, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	// Snapshots outlive their freshness TTL on purpose: stale data stays
	// servable (and labeled) until the next successful scan replaces it.
	if err := s.client.Set(ctx, snapshotKeyPrefix+string(mt), payload, 0).Err(); err != nil {
		return nil, fmt.Errorf("redis store snapshot: %w", err)
	}
	return next, nil
}

// MarkScanning implements Store.
func (s *RedisStore) MarkScanning(ctx context.Context, mt domain.MarketType) error {
	return s.client.Set(ctx, scanningKeyPrefix+string(mt), "1", scanningFlagTTL).Err()
}

// ClearScanning implements Store.
func (s *RedisStore) ClearScanning(ctx context.Context, mt domain.MarketType) error {
	return s.client.Del(ctx, scanningKeyPrefix+string(mt)).Err()
}

func (s *RedisStore) loadSnapshot(ctx context.Context, mt domain.MarketType) (*Snapshot, error) {
	payload, err := s.client.Get(ctx, snapshotKeyPrefix+string(mt)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
