// Package scheduler triggers the daily pipeline on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"LimitUpWatch/internal/model"
)

// Runner is one pipeline run for a trade date keyword or YYYY-MM-DD.
type Runner interface {
	Run(ctx context.Context, dateArg string) (*model.RunSummary, error)
}

// Scheduler manages the daily cron task.
type Scheduler struct {
	Cron    *cron.Cron
	runner  Runner
	ctx     context.Context
	log     zerolog.Logger
	running atomic.Bool
}

// NewScheduler creates a scheduler whose cron expressions carry a seconds
// field and are evaluated in loc.
func NewScheduler(ctx context.Context, r Runner, loc *time.Location, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		runner: r,
		ctx:    ctx,
		log:    log,
	}
}

// Register adds the daily run at the cron expression expr.
func (s *Scheduler) Register(expr string) error {
	if _, err := s.Cron.AddFunc(expr, func() { s.RunNow() }); err != nil {
		return fmt.Errorf("register daily task %q: %w", expr, err)
	}
	s.log.Info().Str("cron", expr).Msg("daily task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	for _, e := range s.Cron.Entries() {
		s.log.Info().Time("next", e.Next).Msg("scheduler started")
	}
}

// Stop stops the scheduler and waits for a running task to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow runs the pipeline for today unless a run is already in progress.
// It reports whether a run took place.
func (s *Scheduler) RunNow() bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("previous run still in progress, skipping")
		return false
	}
	defer s.running.Store(false)

	if _, err := s.runner.Run(s.ctx, "today"); err != nil {
		s.log.Error().Err(err).Msg("daily run failed")
	}
	return true
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
