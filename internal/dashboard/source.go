package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the store has no live entry for a key.
	ErrNotFound = errors.New("no cached data")

	// ErrAllSourcesFailed is returned by the aggregate read when the cache
	// is cold and every upstream failed during the synchronous refresh.
	ErrAllSourcesFailed = errors.New("all sources failed")
)

// Source abstracts one upstream data source (sensor hub, resort feed,
// forecast API). Implementations return an error instead of panicking;
// the coordinator captures it into a SourceResult.
type Source interface {
	Name() SourceName
	Fetch(ctx context.Context) (SourceReading, error)
}

// Store is the contract the cache store must satisfy. Implementations are
// keyed, TTL-expiring, and keep a bounded history list. Get returns
// ErrNotFound on a miss or an expired entry.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error
	AppendHistory(ctx context.Context, key string, point HistoryPoint, maxLen int) ([]HistoryPoint, error)
	GetHistory(ctx context.Context, key string) ([]HistoryPoint, error)
}
