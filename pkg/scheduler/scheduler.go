// Package scheduler drives the periodic reminder and escalation pass over
// in-review requests.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eventiq/eventiq/pkg/engine"
	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/notifier"
)

// Config controls the scheduler cadence. Interval and CronExpression are
// mutually exclusive; when both are set the cron expression wins.
type Config struct {
	Interval       time.Duration
	CronExpression string

	// DispatchBuffer bounds the notifier queue so a slow notifier never
	// stalls evaluation of the next request.
	DispatchBuffer int
}

const (
	defaultInterval       = time.Minute
	defaultDispatchBuffer = 256
)

// Scheduler runs the engine's tick on a fixed cadence and hands the
// resulting intents to the notifier.
type Scheduler struct {
	cfg      Config
	engine   *engine.Engine
	clock    engine.Clock
	notifier notifier.Notifier
	logger   *slog.Logger

	schedule cron.Schedule
	ticker   *time.Ticker
	dispatch chan models.NotificationIntent
	done     chan bool
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// New creates a scheduler. The cron expression, when set, uses the standard
// 5-field format.
func New(cfg Config, eng *engine.Engine, clock engine.Clock, n notifier.Notifier, logger *slog.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = defaultDispatchBuffer
	}

	if clock == nil {
		clock = engine.SystemClock()
	}

	s := &Scheduler{
		cfg:      cfg,
		engine:   eng,
		clock:    clock,
		notifier: n,
		logger:   logger.With("module", "scheduler"),
	}

	if cfg.CronExpression != "" {
		schedule, err := cron.ParseStandard(cfg.CronExpression)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", cfg.CronExpression, err)
		}

		s.schedule = schedule
	}

	return s, nil
}

// Start begins the periodic pass. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info("Starting scheduler",
		"interval", s.cfg.Interval,
		"cron", s.cfg.CronExpression)

	s.dispatch = make(chan models.NotificationIntent, s.cfg.DispatchBuffer)
	s.done = make(chan bool)
	s.started = true

	s.wg.Add(1)

	go s.dispatchLoop(ctx)

	if s.schedule != nil {
		s.wg.Add(1)

		go s.cronLoop(ctx)
	} else {
		s.ticker = time.NewTicker(s.cfg.Interval)
		s.wg.Add(1)

		go s.tickLoop(ctx)
	}

	return nil
}

// Stop gracefully shuts the scheduler down, draining queued notifications.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()

		return nil
	}

	s.logger.Info("Stopping scheduler")

	if s.ticker != nil {
		s.ticker.Stop()
	}

	close(s.done)
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")

	return nil
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			close(s.dispatch)

			return
		case <-ctx.Done():
			close(s.dispatch)

			return
		case <-s.ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Scheduler) cronLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		next := s.schedule.Next(s.clock.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-s.done:
			timer.Stop()
			close(s.dispatch)

			return
		case <-ctx.Done():
			timer.Stop()
			close(s.dispatch)

			return
		case <-timer.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single reminder/escalation pass. Exposed so the host
// process can force a pass outside the cadence; on a stopped scheduler the
// intents are delivered synchronously.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.clock.Now()

	intents, err := s.engine.Tick(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "tick failed", "error", err)

		return
	}

	if len(intents) == 0 {
		return
	}

	s.logger.InfoContext(ctx, "tick produced notifications", "count", len(intents))

	s.mu.Lock()
	started, dispatch := s.started, s.dispatch
	s.mu.Unlock()

	for _, intent := range intents {
		if !started {
			if err := s.notifier.Send(ctx, intent); err != nil {
				s.logger.ErrorContext(ctx, "failed to deliver notification",
					"intent_id", intent.ID,
					"error", err)
			}

			continue
		}

		select {
		case dispatch <- intent:
		default:
			// Full queue: drop and let the next tick re-derive what is
			// still due. Reminders and escalations are idempotent.
			s.logger.WarnContext(ctx, "dispatch queue full, dropping intent",
				"intent_id", intent.ID,
				"kind", intent.Kind,
				"request_id", intent.RequestID)
		}
	}
}

func (s *Scheduler) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()

	for intent := range s.dispatch {
		if err := s.notifier.Send(ctx, intent); err != nil {
			s.logger.ErrorContext(ctx, "failed to deliver notification",
				"intent_id", intent.ID,
				"kind", intent.Kind,
				"request_id", intent.RequestID,
				"error", err)
		}
	}
}
