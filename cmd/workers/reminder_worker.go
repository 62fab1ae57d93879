package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reminder sends the pending signing reminders and reports how many went out.
type Reminder interface {
	SendReminders(ctx context.Context) (int, error)
}

// ReminderWorker re-sends signing links to signatories who have not acted.
type ReminderWorker struct {
	reminder Reminder
	logger   *zap.Logger
	config   ReminderWorkerConfig
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
}

// ReminderWorkerConfig configuration for the reminder worker
type ReminderWorkerConfig struct {
	// Schedule is a six-field cron expression (with seconds).
	Schedule   string
	RunTimeout time.Duration
}

// DefaultReminderWorkerConfig returns default configuration
func DefaultReminderWorkerConfig() ReminderWorkerConfig {
	return ReminderWorkerConfig{
		Schedule:   "0 0 9 * * *",
		RunTimeout: 10 * time.Minute,
	}
}

// NewReminderWorker creates a new reminder worker
func NewReminderWorker(reminder Reminder, logger *zap.Logger, config ReminderWorkerConfig) *ReminderWorker {
	return &ReminderWorker{
		reminder: reminder,
		logger:   logger,
		config:   config,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start schedules the reminder run and blocks until ctx is cancelled.
func (w *ReminderWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reminder worker already running")
	}
	if _, err := w.cron.AddFunc(w.config.Schedule, func() { w.runOnce(ctx) }); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("Starting reminder worker", zap.String("schedule", w.config.Schedule))
	w.cron.Start()

	<-ctx.Done()
	w.logger.Info("Reminder worker shutting down")
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

// runOnce performs one reminder pass.
func (w *ReminderWorker) runOnce(parent context.Context) int {
	ctx, cancel := context.WithTimeout(parent, w.config.RunTimeout)
	defer cancel()

	start := time.Now()
	sent, err := w.reminder.SendReminders(ctx)
	if err != nil {
		w.logger.Error("Reminder run failed", zap.Error(err), zap.Int("sent", sent))
		return sent
	}
	w.logger.Info("Reminder run completed",
		zap.Int("sent", sent),
		zap.Duration("duration", time.Since(start)))
	return sent
}
