// Package jobs runs the periodic maintenance sweeps on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const defaultRunTimeout = 5 * time.Minute

// RunFunc performs one sweep and reports how many records it changed.
type RunFunc func(ctx context.Context, now time.Time) (int, error)

// Scheduler wraps a cron runner. Runs of the same job never overlap; a tick
// that arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	now     func() time.Time
	timeout time.Duration
	jobs    map[string]RunFunc
}

func NewScheduler(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:  logger,
		now:     time.Now,
		timeout: defaultRunTimeout,
		jobs:    make(map[string]RunFunc),
	}
}

// Add registers run under name on a standard five-field cron spec.
func (s *Scheduler) Add(name, spec string, run RunFunc) error {
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Run(context.Background(), name) }); err != nil {
		return fmt.Errorf("schedule job %q: %w", name, err)
	}
	s.jobs[name] = run
	return nil
}

// Run executes a registered job once and logs the outcome.
func (s *Scheduler) Run(ctx context.Context, name string) (int, error) {
	run, ok := s.jobs[name]
	if !ok {
		return 0, fmt.Errorf("job %q not registered", name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	n, err := run(ctx, start)
	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Msg("job failed")
		return n, err
	}
	s.logger.Info().
		Str("job", name).
		Int("affected", n).
		Dur("duration", s.now().Sub(start)).
		Msg("job completed")
	return n, nil
}

func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("job scheduler started")
	s.cron.Start()
}

// Stop prevents new runs and waits for running ones to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info().Msg("job scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn().Msg("job scheduler stop timed out")
	}
}
