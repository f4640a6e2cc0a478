package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultChunkSize is the number of transactions scored and committed together.
const DefaultChunkSize = 50000

// DefaultHeartbeatInterval is how often an active run refreshes its record.
const DefaultHeartbeatInterval = 30 * time.Second

// Config holds scan tuning parameters.
type Config struct {
	ChunkSize         int
	HeartbeatInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize, HeartbeatInterval: DefaultHeartbeatInterval}
}

// Manager enforces the single-active-run invariant and exposes start and
// progress to callers. It is safe for concurrent use.
type Manager struct {
	store      Store
	classifier Classifier
	recorder   RunRecorder
	cfg        Config

	scorer   *Scorer
	enricher *Enricher
	writer   *Writer

	guard   Guard
	tracker *Tracker
	wg      sync.WaitGroup

	now func() time.Time
}

// NewManager creates a Manager. recorder and explainer may be nil.
func NewManager(store Store, classifier Classifier, explainer Explainer, recorder RunRecorder, cfg Config) *Manager {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &Manager{
		store:      store,
		classifier: classifier,
		recorder:   recorder,
		cfg:        cfg,
		scorer:     &Scorer{Classifier: classifier},
		enricher:   &Enricher{Explainer: explainer},
		writer:     &Writer{Store: store, Recorder: recorder},
		tracker:    NewTracker(),
		now:        time.Now,
	}
}

// Start admits a new run scored with model and launches it in the
// background. It returns ErrModelNotTrained, ErrBusy or ErrNoWork without
// touching the state of any run in progress. ErrBusy covers both a run in
// this process and, through the recorder, a run in another process.
func (m *Manager) Start(parentCtx context.Context, model string) (Snapshot, error) {
	if !m.classifier.Has(model) {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrModelNotTrained, model)
	}
	if !m.guard.TryAcquire() {
		return Snapshot{}, ErrBusy
	}

	total, err := m.store.CountEligible(parentCtx)
	if err != nil {
		m.guard.Release()
		return Snapshot{}, fmt.Errorf("count eligible transactions: %w", err)
	}
	if total == 0 {
		m.guard.Release()
		return Snapshot{}, ErrNoWork
	}

	runID := uuid.NewString()
	startedAt := m.now()
	if m.recorder != nil {
		err := m.recorder.InsertRun(parentCtx, Snapshot{
			RunID:     runID,
			Model:     model,
			Status:    RunStarting,
			Total:     total,
			StartedAt: startedAt,
		})
		if errors.Is(err, ErrBusy) {
			m.guard.Release()
			return Snapshot{}, err
		}
		if err != nil {
			slog.Warn("detection: record run start", "run_id", runID, "error", err)
		}
	}

	m.tracker.Begin(runID, model, total, startedAt)
	snap := m.tracker.Snapshot()

	slog.Info("detection started", "run_id", runID, "model", model, "total", total)

	m.wg.Add(1)
	go m.run(parentCtx, runID, model, total)

	return snap, nil
}

// Progress returns the state of the active or most recent run.
func (m *Manager) Progress() Snapshot {
	return m.tracker.Snapshot()
}

// Running reports whether a run currently holds the guard.
func (m *Manager) Running() bool {
	return m.guard.Held()
}

// Wait blocks until the background run, if any, has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// run executes the scan loop for an admitted run and always releases the
// guard on the way out.
func (m *Manager) run(ctx context.Context, runID, model string, total int64) {
	defer m.wg.Done()
	defer m.guard.Release()
	stopHeartbeat := m.heartbeat(runID)
	defer stopHeartbeat()
	defer func() {
		if r := recover(); r != nil {
			m.finish(fmt.Errorf("panic in detection run: %v", r))
		}
	}()

	m.tracker.Running()
	m.finish(m.scanChunks(ctx, model, total))
}

// heartbeat refreshes the run record until the returned stop func is called.
func (m *Manager) heartbeat(runID string) (stop func()) {
	if m.recorder == nil {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(m.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := m.recorder.Heartbeat(context.Background(), runID); err != nil {
					slog.Warn("detection: heartbeat", "run_id", runID, "error", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// scanChunks processes chunks until the backlog snapshot is drained.
func (m *Manager) scanChunks(ctx context.Context, model string, total int64) error {
	for {
		processed := m.tracker.Snapshot().Processed
		if processed >= total {
			return nil
		}

		chunk, err := m.store.FetchChunk(ctx, m.cfg.ChunkSize)
		if err != nil {
			return fmt.Errorf("%w: fetch chunk: %w", ErrPersistence, err)
		}
		if len(chunk) == 0 {
			// Rows counted at admission were decided by someone else.
			if processed < total {
				slog.Warn("detection: backlog drained before snapshot total",
					"processed", processed, "total", total)
			}
			return nil
		}

		if err := m.processChunk(ctx, model, chunk); err != nil {
			return err
		}
	}
}

// processChunk scores, enriches and commits one chunk, then advances the
// progress. Nothing is committed if any fatal step fails.
func (m *Manager) processChunk(ctx context.Context, model string, chunk []Transaction) error {
	start := time.Now()

	ruleHits := ApplyRule(chunk)

	flagged, err := m.scorer.Apply(ctx, model, chunk)
	if err != nil {
		return err
	}

	degraded := m.enricher.Apply(ctx, chunk, flagged)

	if err := m.writer.Persist(ctx, chunk); err != nil {
		return err
	}

	fraud := countFraud(chunk)
	m.tracker.Advance(int64(len(chunk)), fraud)
	snap := m.tracker.Snapshot()
	m.writer.Checkpoint(snap)

	slog.Info("detection chunk committed",
		"run_id", snap.RunID,
		"rows", len(chunk),
		"rule_hits", ruleHits,
		"model_hits", len(flagged),
		"explain_fallbacks", degraded,
		"processed", snap.Processed,
		"total", snap.Total,
		"took", time.Since(start))
	return nil
}

// finish moves the run to its terminal state and records it.
func (m *Manager) finish(runErr error) {
	at := m.now()
	if runErr != nil {
		m.tracker.Fail(runErr, at)
	} else {
		m.tracker.Complete(at)
	}
	snap := m.tracker.Snapshot()
	m.writer.Checkpoint(snap)

	if runErr != nil {
		slog.Error("detection run failed", "run_id", snap.RunID,
			"processed", snap.Processed, "total", snap.Total, "error", runErr)
		return
	}
	slog.Info("detection finished", "run_id", snap.RunID, "status", snap.Status,
		"processed", snap.Processed, "total", snap.Total, "fraudulent", snap.Fraudulent)
}
