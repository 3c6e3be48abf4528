package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/hallgrim/hyttevaer/internal/dashboard"
)

// Scheduler runs the refresh coordinator on a fixed interval. It is the
// built-in alternative to an external cron hitting POST /refresh and is
// disabled unless explicitly enabled in config.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *dashboard.Service
	interval  time.Duration
}

// New creates a Scheduler for the given service and interval.
func New(service *dashboard.Service, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		interval:  interval,
	}
}

// Start registers the refresh job and starts the scheduler asynchronously.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 5
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		summary := s.service.Refresh(ctx)
		log.Debug().
			Str("refresh_id", summary.ID).
			Int("succeeded", summary.Successes()).
			Msg("scheduled refresh completed")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
