// Package scheduler runs detection scans on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eargollo/fraudscan/internal/detect"
)

// Starter admits detection runs. *detect.Manager satisfies it.
type Starter interface {
	Start(ctx context.Context, model string) (detect.Snapshot, error)
}

// Scheduler wraps robfig/cron and tracks the next scheduled run.
type Scheduler struct {
	mu       sync.RWMutex
	c        *cron.Cron
	entryID  cron.EntryID
	cronExpr string
	model    string
}

// New creates a stopped Scheduler. Call Start to activate it.
func New() *Scheduler {
	return &Scheduler{
		c: cron.New(),
	}
}

// SetJob replaces the current cron job with the given expression and callback.
// If the scheduler is already running, the new job takes effect immediately.
func (s *Scheduler) SetJob(expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.c.AddFunc(expr, fn)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if s.entryID != 0 {
		s.c.Remove(s.entryID)
	}
	s.entryID = id
	s.cronExpr = expr
	slog.Info("scheduler: job set", "cron", expr)
	return nil
}

// ScheduleDetection starts a scan with model on every tick of expr. Runs are
// started with ctx, so cancelling it stops the scan in progress.
func (s *Scheduler) ScheduleDetection(ctx context.Context, expr string, starter Starter, model string) error {
	if err := s.SetJob(expr, detectionJob(ctx, starter, model)); err != nil {
		return err
	}
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	return nil
}

// detectionJob returns the cron callback for a scheduled scan. A scan that
// is already running or has nothing to do is not an error.
func detectionJob(ctx context.Context, starter Starter, model string) func() {
	return func() {
		snap, err := starter.Start(ctx, model)
		switch {
		case err == nil:
			slog.Info("scheduler: detection started", "run_id", snap.RunID, "model", model, "total", snap.Total)
		case errors.Is(err, detect.ErrBusy):
			slog.Info("scheduler: detection already running, skipping tick", "model", model)
		case errors.Is(err, detect.ErrNoWork):
			slog.Info("scheduler: no unscored transactions", "model", model)
		default:
			slog.Error("scheduler: detection not started", "model", model, "error", err)
		}
	}
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron loop and waits for a running callback to return.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// NextRunAt returns the next scheduled time, or nil if no job is set or the
// scheduler has not been started.
func (s *Scheduler) NextRunAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entryID == 0 {
		return nil
	}
	entry := s.c.Entry(s.entryID)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	t := entry.Next
	return &t
}

// CronExpr returns the current cron expression.
func (s *Scheduler) CronExpr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cronExpr
}

// Model returns the model used by scheduled scans.
func (s *Scheduler) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}
