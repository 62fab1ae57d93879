package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingReminder struct {
	calls atomic.Int32
	sent  int
	err   error
}

func (r *countingReminder) SendReminders(ctx context.Context) (int, error) {
	r.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("missing deadline")
	}
	return r.sent, r.err
}

func TestReminderWorker_RunOnce(t *testing.T) {
	rem := &countingReminder{sent: 3}
	w := NewReminderWorker(rem, zap.NewNop(), DefaultReminderWorkerConfig())

	assert.Equal(t, 3, w.runOnce(context.Background()))
	assert.EqualValues(t, 1, rem.calls.Load())
}

func TestReminderWorker_RunOnceError(t *testing.T) {
	rem := &countingReminder{sent: 1, err: errors.New("smtp down")}
	w := NewReminderWorker(rem, zap.NewNop(), DefaultReminderWorkerConfig())

	assert.Equal(t, 1, w.runOnce(context.Background()))
}

func TestReminderWorker_InvalidSchedule(t *testing.T) {
	cfg := DefaultReminderWorkerConfig()
	cfg.Schedule = "every day"
	w := NewReminderWorker(&countingReminder{}, zap.NewNop(), cfg)

	assert.Error(t, w.Start(context.Background()))
}

func TestReminderWorker_RunsOnSchedule(t *testing.T) {
	rem := &countingReminder{}
	cfg := DefaultReminderWorkerConfig()
	cfg.Schedule = "* * * * * *"
	w := NewReminderWorker(rem, zap.NewNop(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return rem.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
