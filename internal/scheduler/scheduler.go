// Package scheduler runs the scrape pipelines on a fixed wall-clock
// interval. It is deliberately simple: one goroutine, jobs executed
// sequentially in registration order, an immediate first pass on start, and
// clean shutdown through context cancellation. There is no catch-up for
// missed ticks; a pass that overruns the interval simply delays the next one.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is one named unit of scheduled work. Run must honor ctx and return
// promptly once it is cancelled.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler executes its jobs once immediately and then on every interval
// tick until the context is cancelled.
type Scheduler struct {
	Interval time.Duration
	Jobs     []Job
}

// New constructs a Scheduler.
func New(interval time.Duration, jobs ...Job) *Scheduler {
	return &Scheduler{Interval: interval, Jobs: jobs}
}

// Start blocks until ctx is cancelled. The first pass runs immediately so an
// operator restarting the process does not wait a full interval for data.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().
		Dur("interval", s.Interval).
		Int("jobs", len(s.Jobs)).
		Msg("scheduler started")

	s.RunOnce(ctx)

	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case <-t.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes every job sequentially. Job failures are logged and never
// stop the remaining jobs; cancellation stops the pass.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, job := range s.Jobs {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		err := job.Run(ctx)
		switch {
		case err == nil:
			log.Info().
				Str("job", job.Name).
				Dur("elapsed", time.Since(start)).
				Msg("job finished")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			log.Warn().Str("job", job.Name).Msg("job interrupted")
			return
		default:
			log.Error().Str("job", job.Name).Err(err).Msg("job failed")
		}
	}
}
