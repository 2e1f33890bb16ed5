/**
 * Redis Result Cache - Store implementation over Redis
 *
 * Entries live under a shared key prefix as JSON blobs with a TTL. Redis
 * expires entries on its own; Cleanup additionally sweeps entries written
 * without a TTL. All errors are logged and reported as misses - the cache
 * must never cause request failure.
 */

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docmill/recognition-worker/internal/engine"
	"github.com/docmill/recognition-worker/internal/logging"
)

const defaultKeyPrefix = "recognition:cache:"

// entry is the stored JSON blob.
type entry struct {
	Result    engine.Result `json:"result"`
	EngineID  string        `json:"engineId"`
	CreatedAt time.Time     `json:"createdAt"`
}

// RedisStore is a Store backed by Redis.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	maxAge    time.Duration
	logger    *logging.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// RedisConfig holds cache configuration.
type RedisConfig struct {
	// RedisURL is a redis:// connection URL.
	RedisURL string
	// KeyPrefix namespaces cache entries (default "recognition:cache:").
	KeyPrefix string
	// TTL applied to each entry; zero stores entries without expiry and
	// leaves eviction to Cleanup.
	TTL time.Duration
	// MaxAge is the age beyond which Cleanup sweeps non-expiring entries
	// (default 7 days).
	MaxAge time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}

	return &RedisStore{
		client:    client,
		keyPrefix: prefix,
		ttl:       cfg.TTL,
		maxAge:    maxAge,
		logger:    logging.NewLogger("ResultCache"),
	}, nil
}

// Get fetches a cached result. Any Redis or decode error counts as a miss.
func (s *RedisStore) Get(ctx context.Context, key Key) (engine.Result, string, bool) {
	raw, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("Cache read failed, treating as miss", "key", key, "error", err)
		}
		s.misses.Add(1)
		return engine.Result{}, "", false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		s.logger.Warn("Cache entry corrupt, treating as miss", "key", key, "error", err)
		s.misses.Add(1)
		return engine.Result{}, "", false
	}

	s.hits.Add(1)
	return e.Result, e.EngineID, true
}

// Put stores a result under the key with the configured TTL.
func (s *RedisStore) Put(ctx context.Context, key Key, result engine.Result, engineID string) error {
	raw, err := json.Marshal(&entry{
		Result:    result,
		EngineID:  engineID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := s.client.Set(ctx, s.redisKey(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Stats counts entries under the prefix plus the process-local hit/miss
// counters.
func (s *RedisStore) Stats(ctx context.Context) Statistics {
	stats := Statistics{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
	}

	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		stats.Entries++
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("Cache stats scan failed", "error", err)
	}

	return stats
}

// Cleanup sweeps non-expiring entries older than MaxAge. Entries stored with
// a TTL are left to Redis.
func (s *RedisStore) Cleanup(ctx context.Context) int {
	evicted := 0
	cutoff := time.Now().UTC().Add(-s.maxAge)

	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		ttl, err := s.client.TTL(ctx, key).Result()
		if err != nil || ttl > 0 {
			continue
		}

		raw, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil || e.CreatedAt.Before(cutoff) {
			if s.client.Del(ctx, key).Err() == nil {
				evicted++
			}
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("Cache cleanup scan failed", "error", err)
	}

	if evicted > 0 {
		s.logger.Info("Cache cleanup complete", "evicted", evicted)
	}
	return evicted
}

// Clear drops every entry under the prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache entry: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache clear scan failed: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) redisKey(key Key) string {
	return s.keyPrefix + string(key)
}
