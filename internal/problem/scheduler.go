package problem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Refresher is the job the scheduler runs.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Scheduler periodically refreshes the problem cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// NewScheduler creates a scheduler that refreshes every interval.
func NewScheduler(r Refresher, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: r,
		interval:  interval,
		timeout:   2 * time.Minute,
		logger:    logger,
	}
}

// Start schedules the refresh job, running it once immediately, and returns
// without blocking.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.run); err != nil {
		return fmt.Errorf("scheduling problem refresh: %w", err)
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates the scheduler.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.refresher.Refresh(ctx)
	if err != nil {
		s.logger.Error("scheduled problem refresh failed", "error", err)
		return
	}
	s.logger.Debug("scheduled problem refresh finished", "problems", n)
}
