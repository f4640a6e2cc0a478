// Package store persists transactions and detection run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eargollo/fraudscan/internal/detect"
)

// Store is the SQLite-backed transaction store. It implements
// detect.Store and detect.RunRecorder.
type Store struct {
	db *sql.DB

	// staleAfter is how long an active run may go without a heartbeat
	// before it is considered abandoned by its process.
	staleAfter time.Duration
	now        func() time.Time
}

// DefaultStaleAfter leaves room for several missed heartbeats.
const DefaultStaleAfter = 4 * detect.DefaultHeartbeatInterval

// New creates a Store over an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db, staleAfter: DefaultStaleAfter, now: time.Now}
}

// NewTransaction is a row to ingest. A zero Timestamp means now.
type NewTransaction struct {
	CardNumberEncrypted string
	Amount              float64
	Timestamp           time.Time
}

// insertBatchSize is the number of rows inserted per prepared-statement pass.
const insertBatchSize = 1000

// InsertTransactions adds rows as unscored in a single transaction and
// returns how many were inserted.
func (s *Store) InsertTransactions(ctx context.Context, rows []NewTransaction) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (card_number_encrypted, amount, timestamp, fraud_status)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert_transaction: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for i, r := range rows {
		ts := r.Timestamp
		if ts.IsZero() {
			ts = now
		}
		if _, err := stmt.ExecContext(ctx, r.CardNumberEncrypted, r.Amount, ts.Unix(), int(detect.StatusUnknown)); err != nil {
			return 0, fmt.Errorf("insert transaction %d: %w", i, err)
		}
		if (i+1)%insertBatchSize == 0 && ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

// ClearTransactions deletes every transaction and returns the count removed.
func (s *Store) ClearTransactions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, fmt.Errorf("clear transactions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountEligible returns the number of transactions with unknown status.
func (s *Store) CountEligible(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE fraud_status = ?`, int(detect.StatusUnknown),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count eligible: %w", err)
	}
	return n, nil
}

// FetchChunk returns up to limit unscored transactions ordered by id.
func (s *Store) FetchChunk(ctx context.Context, limit int) ([]detect.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, timestamp
		FROM transactions
		WHERE fraud_status = ?
		ORDER BY id
		LIMIT ?`, int(detect.StatusUnknown), limit)
	if err != nil {
		return nil, fmt.Errorf("fetch chunk: %w", err)
	}
	defer rows.Close()

	chunk := make([]detect.Transaction, 0, min(limit, 4096))
	for rows.Next() {
		var (
			t  detect.Transaction
			ts int64
		)
		if err := rows.Scan(&t.ID, &t.Amount, &ts); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Timestamp = time.Unix(ts, 0).UTC()
		t.Status = detect.StatusUnknown
		chunk = append(chunk, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk: %w", err)
	}
	return chunk, nil
}

// BulkUpdate writes status and explanation for every row in one
// transaction. Either all rows are updated or none are.
func (s *Store) BulkUpdate(ctx context.Context, rows []detect.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Prepare once, reuse for every row in the chunk.
	stmt, err := tx.PrepareContext(ctx, `
		UPDATE transactions
		SET fraud_status = ?, explanation = ?
		WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare update_transaction: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		var explanation any
		if r.Explanation != "" {
			explanation = r.Explanation
		}
		if _, err := stmt.ExecContext(ctx, int(r.Status), explanation, r.ID); err != nil {
			return fmt.Errorf("update transaction %d: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Summary aggregates decisions over the whole table.
type Summary struct {
	Total           int64   `json:"total_transactions"`
	Fraudulent      int64   `json:"fraudulent"`
	Legitimate      int64   `json:"legit"`
	Unknown         int64   `json:"unprocessed"`
	FraudPercentage float64 `json:"fraud_percentage"`
}

// Summary counts transactions per fraud status.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN fraud_status = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN fraud_status = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN fraud_status = -1 THEN 1 ELSE 0 END), 0)
		FROM transactions`,
	).Scan(&sum.Total, &sum.Fraudulent, &sum.Legitimate, &sum.Unknown)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	if sum.Total > 0 {
		pct := float64(sum.Fraudulent) * 100 / float64(sum.Total)
		sum.FraudPercentage = float64(int64(pct*100+0.5)) / 100
	}
	return sum, nil
}
