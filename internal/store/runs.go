package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/eargollo/fraudscan/internal/detect"
)

// InsertRun records a newly admitted run. The insert is also the admission
// check across processes sharing the database: it fails with detect.ErrBusy
// while another run is starting or running with a live heartbeat.
func (s *Store) InsertRun(ctx context.Context, snap detect.Snapshot) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO detection_runs
			(id, model, status, total, processed, fraudulent, started_at, heartbeat_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM detection_runs
			WHERE status IN (?, ?) AND heartbeat_at >= ?
		)`,
		snap.RunID, snap.Model, string(snap.Status),
		snap.Total, snap.Processed, snap.Fraudulent,
		snap.StartedAt.Unix(), now.Unix(),
		string(detect.RunStarting), string(detect.RunRunning), s.staleCutoff(now))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", snap.RunID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: another process owns an active run", detect.ErrBusy)
	}
	return nil
}

// UpdateRun writes the current counters and status of a run and refreshes
// its heartbeat.
func (s *Store) UpdateRun(ctx context.Context, snap detect.Snapshot) error {
	var finishedAt, errMsg any
	if !snap.FinishedAt.IsZero() {
		finishedAt = snap.FinishedAt.Unix()
	}
	if snap.Error != "" {
		errMsg = snap.Error
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE detection_runs
		SET status       = ?,
		    processed    = ?,
		    fraudulent   = ?,
		    error        = ?,
		    finished_at  = ?,
		    heartbeat_at = ?
		WHERE id = ?`,
		string(snap.Status), snap.Processed, snap.Fraudulent,
		errMsg, finishedAt, s.now().Unix(), snap.RunID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", snap.RunID, err)
	}
	return nil
}

// Heartbeat marks an active run as still owned by a live process.
func (s *Store) Heartbeat(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE detection_runs SET heartbeat_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		s.now().Unix(), runID, string(detect.RunStarting), string(detect.RunRunning))
	if err != nil {
		return fmt.Errorf("heartbeat run %s: %w", runID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]detect.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model, status, total, processed, fraudulent,
		       error, started_at, finished_at
		FROM detection_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []detect.Snapshot{}
	for rows.Next() {
		var (
			snap       detect.Snapshot
			status     string
			errMsg     sql.NullString
			startedAt  int64
			finishedAt sql.NullInt64
		)
		if err := rows.Scan(&snap.RunID, &snap.Model, &status,
			&snap.Total, &snap.Processed, &snap.Fraudulent,
			&errMsg, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		snap.Status = detect.RunStatus(status)
		snap.Error = errMsg.String
		snap.StartedAt = time.Unix(startedAt, 0).UTC()
		if finishedAt.Valid {
			snap.FinishedAt = time.Unix(finishedAt.Int64, 0).UTC()
		}
		runs = append(runs, snap)
	}
	return runs, rows.Err()
}

// MarkStaleRunsFailed marks runs still starting or running whose heartbeat
// has expired as failed. Runs owned by a live process are left alone, so it
// is safe to call from any process at startup. Rows of the interrupted chunk
// are still unknown and will be picked up by the next run.
func (s *Store) MarkStaleRunsFailed(ctx context.Context) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE detection_runs
		SET status = ?, error = ?, finished_at = ?
		WHERE status IN (?, ?) AND heartbeat_at < ?`,
		string(detect.RunError), "abandoned: owning process stopped", now.Unix(),
		string(detect.RunStarting), string(detect.RunRunning), s.staleCutoff(now))
	if err != nil {
		return fmt.Errorf("mark stale runs failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Warn("marked stale detection runs as failed", "count", n)
	}
	return nil
}

func (s *Store) staleCutoff(now time.Time) int64 {
	return now.Add(-s.staleAfter).Unix()
}
