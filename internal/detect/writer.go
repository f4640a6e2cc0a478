package detect

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Writer commits a scored chunk. A commit is the run's checkpoint: every
// row before it is decided, every row after it is still unknown.
type Writer struct {
	Store    Store
	Recorder RunRecorder
}

// Persist writes the decisions in chunk in one atomic update. On failure no
// row of chunk has been changed.
func (w *Writer) Persist(ctx context.Context, chunk []Transaction) error {
	if len(chunk) == 0 {
		return nil
	}
	start := time.Now()
	if err := w.Store.BulkUpdate(ctx, chunk); err != nil {
		return fmt.Errorf("%w: %d rows: %w", ErrPersistence, len(chunk), err)
	}
	slog.Debug("detection: chunk persisted", "rows", len(chunk), "took", time.Since(start))
	return nil
}

// Checkpoint records the run state after a commit. Failures are logged only.
func (w *Writer) Checkpoint(snap Snapshot) {
	if w.Recorder == nil {
		return
	}
	// Background so the checkpoint survives cancellation of the run.
	if err := w.Recorder.UpdateRun(context.Background(), snap); err != nil {
		slog.Warn("detection: checkpoint run record", "run_id", snap.RunID, "error", err)
	}
}
