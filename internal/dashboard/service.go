package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const historyKey = "dashboard:history"

func cacheKey(name SourceName) string {
	return "dashboard:" + string(name)
}

// ServiceConfig carries the tunables of the refresh coordinator.
type ServiceConfig struct {
	// SnapshotTTL is the cache lifetime of each source snapshot. It should
	// exceed the refresh cadence so a single missed refresh leaves no gap.
	SnapshotTTL time.Duration

	// FetchTimeout bounds each individual source fetch.
	FetchTimeout time.Duration

	// HistoryMaxPoints caps the temperature history (drop-oldest).
	HistoryMaxPoints int
}

// Service coordinates refreshing all sources and serving cached snapshots.
type Service struct {
	store   Store
	sources []Source
	cfg     ServiceConfig
}

// NewService creates a Service. Zero config fields get defaults.
func NewService(store Store, sources []Source, cfg ServiceConfig) *Service {
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 10 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.HistoryMaxPoints <= 0 {
		cfg.HistoryMaxPoints = 48
	}
	return &Service{
		store:   store,
		sources: sources,
		cfg:     cfg,
	}
}

// Refresh invokes every source concurrently, waits for all of them to
// settle, writes successful snapshots to the store, and appends a history
// point when any temperature is available. It always returns a summary
// with exactly one result per configured source; a failed source never
// overwrites that source's previous cache entry, and a failed cache write
// never fails the refresh.
func (s *Service) Refresh(ctx context.Context) RefreshSummary {
	start := time.Now().UTC()
	summary := RefreshSummary{
		ID:        uuid.NewString(),
		Timestamp: start,
		Results:   make([]SourceResult, len(s.sources)),
	}

	readings := make([]*SourceReading, len(s.sources))

	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			summary.Results[i], readings[i] = s.fetchOne(ctx, src)
		}(i, src)
	}
	wg.Wait()

	for i, r := range readings {
		if r == nil {
			continue
		}
		key := cacheKey(summary.Results[i].Source)
		if err := s.store.Set(ctx, key, r.Payload, s.cfg.SnapshotTTL); err != nil {
			// The data is already in hand; a lost cache write only costs
			// freshness on the next read.
			log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}

	if point, ok := buildHistoryPoint(start, readings); ok {
		if _, err := s.store.AppendHistory(ctx, historyKey, point, s.cfg.HistoryMaxPoints); err != nil {
			log.Warn().Err(err).Msg("history append failed")
		}
	}

	summary.DurationMs = time.Since(start).Milliseconds()
	log.Info().
		Str("refresh_id", summary.ID).
		Int("sources", len(s.sources)).
		Int("succeeded", summary.Successes()).
		Int64("duration_ms", summary.DurationMs).
		Msg("refresh completed")
	return summary
}

func (s *Service) fetchOne(ctx context.Context, src Source) (SourceResult, *SourceReading) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	reading, err := src.Fetch(fetchCtx)
	result := SourceResult{
		Source:     src.Name(),
		Timestamp:  time.Now().UTC(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
		log.Warn().Err(err).Str("source", string(src.Name())).Msg("source fetch failed")
		return result, nil
	}

	result.Success = true
	result.Data = reading.Payload
	return result, &reading
}

func buildHistoryPoint(ts time.Time, readings []*SourceReading) (HistoryPoint, bool) {
	point := HistoryPoint{Timestamp: ts}
	any := false
	for _, r := range readings {
		if r == nil {
			continue
		}
		if r.SensorTemperatureC != nil {
			point.SensorTemperatureC = r.SensorTemperatureC
			any = true
		}
		if r.ResortTopTemperatureC != nil {
			point.ResortTopTemperatureC = r.ResortTopTemperatureC
			any = true
		}
		if r.ResortBottomTemperatureC != nil {
			point.ResortBottomTemperatureC = r.ResortBottomTemperatureC
			any = true
		}
	}
	return point, any
}

// GetAll serves the aggregate view. If at least one source has a live
// cache entry it is served as-is; on a fully cold cache a single
// synchronous refresh runs so the endpoint never returns empty data
// unless every upstream fails.
func (s *Service) GetAll(ctx context.Context) (AggregateSnapshot, error) {
	snap := AggregateSnapshot{
		Timestamp: time.Now().UTC(),
		Sources:   make(map[SourceName]json.RawMessage, len(s.sources)),
	}

	hit := false
	for _, src := range s.sources {
		name := src.Name()
		value, err := s.store.Get(ctx, cacheKey(name))
		if err != nil {
			// Store failures degrade to a miss.
			snap.Sources[name] = nil
			continue
		}
		snap.Sources[name] = value
		hit = true
	}

	if hit {
		snap.Cached = true
		return snap, nil
	}

	summary := s.Refresh(ctx)
	for _, r := range summary.Results {
		if r.Success {
			snap.Sources[r.Source] = r.Data
		} else {
			snap.Sources[r.Source] = nil
			snap.Errors = append(snap.Errors, fmt.Sprintf("%s: %s", r.Source, r.Error))
		}
	}
	if summary.Successes() == 0 {
		if len(snap.Errors) == 0 {
			snap.Errors = append(snap.Errors, "no sources configured")
		}
		return snap, ErrAllSourcesFailed
	}
	return snap, nil
}

// GetSource serves a single source's cache entry. A miss returns
// ErrNotFound without triggering a refresh: only the aggregate read
// self-heals.
func (s *Service) GetSource(ctx context.Context, name SourceName) (json.RawMessage, error) {
	value, err := s.store.Get(ctx, cacheKey(name))
	if err != nil {
		return nil, ErrNotFound
	}
	return value, nil
}

// History returns the bounded temperature history. A store failure is
// served as an empty history rather than an error.
func (s *Service) History(ctx context.Context) []HistoryPoint {
	points, err := s.store.GetHistory(ctx, historyKey)
	if err != nil {
		log.Warn().Err(err).Msg("history read failed")
		return []HistoryPoint{}
	}
	if points == nil {
		points = []HistoryPoint{}
	}
	return points
}
