package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hallgrim/hyttevaer/internal/dashboard"
)

// RedisStore is a Redis-backed cache store. Snapshot entries use Redis'
// native TTL; the history lives in a list bounded with RPUSH + LTRIM, so
// concurrent refreshes cannot lose an appended point.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore for the given connection settings.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Ping checks connectivity. Failures are not fatal to the service: reads
// degrade to synchronous refreshes and writes to log-and-continue.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get returns the value for key, or dashboard.ErrNotFound on a miss.
func (s *RedisStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, dashboard.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, nil
}

// Set overwrites the entry for key with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, []byte(value), ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// AppendHistory pushes point onto the history list and trims it to the
// newest maxLen entries, then returns the resulting list.
func (s *RedisStore) AppendHistory(ctx context.Context, key string, point dashboard.HistoryPoint, maxLen int) ([]dashboard.HistoryPoint, error) {
	encoded, err := json.Marshal(point)
	if err != nil {
		return nil, fmt.Errorf("encode history point: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, encoded)
	if maxLen > 0 {
		pipe.LTrim(ctx, key, int64(-maxLen), -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis append history %q: %w", key, err)
	}

	return s.GetHistory(ctx, key)
}

// GetHistory returns the current history list for key, oldest first.
func (s *RedisStore) GetHistory(ctx context.Context, key string) ([]dashboard.HistoryPoint, error) {
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read history %q: %w", key, err)
	}

	points := make([]dashboard.HistoryPoint, 0, len(raw))
	for _, item := range raw {
		var p dashboard.HistoryPoint
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			// A malformed item is skipped rather than poisoning the list.
			continue
		}
		points = append(points, p)
	}
	return points, nil
}
