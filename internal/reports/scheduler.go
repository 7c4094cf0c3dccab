package reports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// RunFunc executes one report run.
type RunFunc func(ctx context.Context) error

// scheduleParser accepts standard five-field expressions, an optional
// leading seconds field, and descriptors such as @daily.
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return sched, nil
}

// Scheduler runs reports on a cron schedule. A run that is still in
// progress when the next one is due causes that next run to be skipped.
type Scheduler struct {
	expr   string
	run    RunFunc
	cron   *cron.Cron
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
	entry   cron.EntryID
	busy    sync.Mutex
}

// NewScheduler creates a scheduler for the given cron expression.
func NewScheduler(expr string, run RunFunc, logger zerolog.Logger) (*Scheduler, error) {
	if _, err := ParseSchedule(expr); err != nil {
		return nil, err
	}
	return &Scheduler{
		expr:   expr,
		run:    run,
		cron:   cron.New(cron.WithParser(scheduleParser)),
		logger: logger.With().Str("component", "report_scheduler").Logger(),
	}, nil
}

// Start registers the schedule and starts the cron runner. Runs receive ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.expr, func() {
		s.RunNow(ctx)
	})
	if err != nil {
		return fmt.Errorf("add schedule: %w", err)
	}
	s.entry = entryID
	s.running = true
	s.cron.Start()

	s.logger.Info().
		Str("schedule", s.expr).
		Time("next_run", s.cron.Entry(entryID).Next).
		Msg("report scheduler started")
	return nil
}

// Stop stops the scheduler. The returned context is done once any run in
// progress has finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.logger.Info().Msg("stopping report scheduler")
	return s.cron.Stop()
}

// Next returns the time of the next scheduled run, or the zero time when
// the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// RunNow executes one run immediately. It reports false if a run was
// already in progress and this one was skipped. Run errors are logged.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	if !s.busy.TryLock() {
		s.logger.Warn().Msg("previous report run still in progress, skipping")
		return false
	}
	defer s.busy.Unlock()

	start := time.Now()
	s.logger.Info().Msg("executing scheduled report")

	if err := s.run(ctx); err != nil {
		s.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("scheduled report failed")
		return true
	}

	s.logger.Info().Dur("duration", time.Since(start)).Msg("scheduled report completed")
	return true
}
