package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hallgrim/hyttevaer/internal/dashboard"
)

type entry struct {
	value     json.RawMessage
	expiresAt time.Time
}

// MemoryStore is a concurrency-safe in-memory cache store. Entries expire
// passively: expiry is checked on read. It is the fallback when no Redis
// address is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	history map[string][]dashboard.HistoryPoint
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		history: make(map[string][]dashboard.HistoryPoint),
	}
}

// Get returns the value for key, or dashboard.ErrNotFound on a miss or an
// expired entry.
func (s *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, dashboard.ErrNotFound
	}
	return e.value, nil
}

// Set overwrites the entry for key unconditionally.
func (s *MemoryStore) Set(_ context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// AppendHistory appends point and truncates the list to maxLen from the
// tail, dropping the oldest entries. It returns the new list.
func (s *MemoryStore) AppendHistory(_ context.Context, key string, point dashboard.HistoryPoint, maxLen int) ([]dashboard.HistoryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := append(s.history[key], point)
	if maxLen > 0 && len(points) > maxLen {
		points = points[len(points)-maxLen:]
	}
	s.history[key] = points

	out := make([]dashboard.HistoryPoint, len(points))
	copy(out, points)
	return out, nil
}

// GetHistory returns the current history list for key.
func (s *MemoryStore) GetHistory(_ context.Context, key string) ([]dashboard.HistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.history[key]
	out := make([]dashboard.HistoryPoint, len(points))
	copy(out, points)
	return out, nil
}
