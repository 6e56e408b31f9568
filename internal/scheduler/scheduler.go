// Package scheduler runs the periodic background jobs: event reminders and the
// stale pending-payment sweep.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"eventsettlement/internal/domain"
)

// Config holds the cron specs of the jobs. An empty SweepSchedule disables the sweep.
type Config struct {
	ReminderSchedule string
	SweepSchedule    string
	PendingTTL       time.Duration
	JobTimeout       time.Duration
}

// Scheduler owns one cron runner. Ticks of the same job never overlap.
type Scheduler struct {
	logger        *slog.Logger
	cron          *cron.Cron
	notifications domain.NotificationService
	registrations domain.RegistrationService
	cfg           Config

	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *slog.Logger, notifications domain.NotificationService, registrations domain.RegistrationService, cfg Config) (*Scheduler, error) {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		logger:        logger,
		cron:          cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		notifications: notifications,
		registrations: registrations,
		cfg:           cfg,
		ctx:           ctx,
		cancel:        cancel,
	}

	if _, err := s.cron.AddFunc(cfg.ReminderSchedule, s.reminderTick); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule reminders %q: %w", cfg.ReminderSchedule, err)
	}
	if cfg.SweepSchedule != "" && cfg.PendingTTL > 0 {
		if _, err := s.cron.AddFunc(cfg.SweepSchedule, s.sweepTick); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule pending sweep %q: %w", cfg.SweepSchedule, err)
		}
	}
	return s, nil
}

// Start runs the jobs in the background until Stop.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", "reminders", s.cfg.ReminderSchedule, "sweep", s.cfg.SweepSchedule)
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunReminders runs one reminder batch synchronously.
func (s *Scheduler) RunReminders(ctx context.Context) (*domain.ReminderBatchResult, error) {
	return s.notifications.SendDueReminders(ctx)
}

// RunSweep runs one stale pending sweep synchronously.
func (s *Scheduler) RunSweep(ctx context.Context) (*domain.SweepResult, error) {
	return s.registrations.SweepStalePending(ctx, s.cfg.PendingTTL)
}

func (s *Scheduler) reminderTick() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	defer cancel()
	if _, err := s.RunReminders(ctx); err != nil {
		s.logger.Error("reminder tick failed", "error", err)
	}
}

func (s *Scheduler) sweepTick() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	defer cancel()
	if _, err := s.RunSweep(ctx); err != nil {
		s.logger.Error("pending sweep failed", "error", err)
	}
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
