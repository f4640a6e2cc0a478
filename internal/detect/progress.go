package detect

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// RunStatus is the lifecycle state of a detection run.
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunStarting  RunStatus = "starting"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
)

// Terminal reports whether s is a final state of a run.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunError
}

// Snapshot is an immutable view of the run state.
type Snapshot struct {
	RunID      string    `json:"run_id,omitempty"`
	Model      string    `json:"model,omitempty"`
	Status     RunStatus `json:"status"`
	Processed  int64     `json:"processed"`
	Total      int64     `json:"total"`
	Fraudulent int64     `json:"fraudulent"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Tracker holds the run state of the active (or last) run.
// The scan goroutine is the only writer; Snapshot can be called from any
// goroutine without locks and always returns the last committed state.
type Tracker struct {
	cur atomic.Pointer[Snapshot]
}

// NewTracker returns a Tracker in the idle state.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.cur.Store(&Snapshot{Status: RunIdle})
	return t
}

// Snapshot returns a copy of the current run state.
func (t *Tracker) Snapshot() Snapshot {
	return *t.cur.Load()
}

// Begin resets the state for a newly admitted run. Only the guard holder may
// call it; a run that is still starting or running is never overwritten.
func (t *Tracker) Begin(runID, model string, total int64, at time.Time) bool {
	return t.transition(func(s *Snapshot) bool {
		if s.Status == RunStarting || s.Status == RunRunning {
			return false
		}
		*s = Snapshot{
			RunID:     runID,
			Model:     model,
			Status:    RunStarting,
			Total:     total,
			StartedAt: at,
		}
		return true
	})
}

// Running moves a starting run to running.
func (t *Tracker) Running() bool {
	return t.transition(func(s *Snapshot) bool {
		if s.Status != RunStarting {
			return false
		}
		s.Status = RunRunning
		return true
	})
}

// Advance records a committed chunk of size rows, fraud of which were
// marked fraudulent.
func (t *Tracker) Advance(size, fraud int64) bool {
	return t.transition(func(s *Snapshot) bool {
		if s.Status != RunRunning || size < 0 || fraud < 0 {
			return false
		}
		s.Processed += size
		s.Fraudulent += fraud
		return true
	})
}

// Complete marks the run completed.
func (t *Tracker) Complete(at time.Time) bool {
	return t.transition(func(s *Snapshot) bool {
		if s.Status != RunRunning {
			return false
		}
		s.Status = RunCompleted
		s.FinishedAt = at
		return true
	})
}

// Fail marks a starting or running run as failed with err.
func (t *Tracker) Fail(err error, at time.Time) bool {
	return t.transition(func(s *Snapshot) bool {
		if s.Status != RunStarting && s.Status != RunRunning {
			return false
		}
		s.Status = RunError
		s.FinishedAt = at
		if err != nil {
			s.Error = err.Error()
		}
		return true
	})
}

// transition applies fn to a copy of the current state and publishes it if
// fn accepts the change.
func (t *Tracker) transition(fn func(*Snapshot) bool) bool {
	for {
		old := t.cur.Load()
		next := *old
		if !fn(&next) {
			slog.Debug("detection: progress transition rejected", "status", old.Status)
			return false
		}
		if t.cur.CompareAndSwap(old, &next) {
			return true
		}
	}
}
