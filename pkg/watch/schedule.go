package watch

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// parser accepts five field expressions and descriptors such as "@hourly"
// or "@every 10m".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a cron expression
func ParseSchedule(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("schedule requires a cron expression")
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// ScheduleConfig holds configuration for a Scheduler
type ScheduleConfig struct {
	// Expr is a cron expression, e.g. "*/30 * * * *" or "@every 15m".
	Expr string
	// TZ is the IANA time zone Expr is evaluated in. Empty means local time.
	TZ string
	// Job runs at every activation. Activations never overlap.
	Job func()
}

// Scheduler re-runs a job on a cron schedule. Remote contract definitions
// can disappear without any file in the checkout changing.
type Scheduler struct {
	schedule cron.Schedule
	location *time.Location
	job      func()
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	runMu   sync.Mutex
}

// NewScheduler creates a scheduler; it does nothing until Start
func NewScheduler(cfg ScheduleConfig, logger zerolog.Logger) (*Scheduler, error) {
	schedule, err := ParseSchedule(cfg.Expr)
	if err != nil {
		return nil, err
	}

	location := time.Local
	if cfg.TZ != "" {
		location, err = time.LoadLocation(cfg.TZ)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone: %w", err)
		}
	}

	return &Scheduler{
		schedule: schedule,
		location: location,
		job:      cfg.Job,
		logger: logger.With().
			Str("component", "scheduler").
			Str("schedule", cfg.Expr).
			Logger(),
		now: time.Now,
	}, nil
}

// Next returns the next activation after the current time
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(s.now().In(s.location))
}

// Start arms the first activation
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked()
}

// Stop cancels the pending activation and waits for a running job
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.logger.Debug().Msg("Scheduler stopped")
}

// armLocked schedules the next activation (must hold lock)
func (s *Scheduler) armLocked() {
	if s.stopped {
		return
	}

	next := s.Next()
	delay := time.Until(next)
	if delay < 0 {
		delay = 0
	}
	s.timer = time.AfterFunc(delay, s.fire)

	s.logger.Debug().
		Dur("delay", delay).
		Time("next_run", next).
		Msg("Run scheduled")
}

func (s *Scheduler) fire() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	if s.job != nil {
		s.job()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked()
}
