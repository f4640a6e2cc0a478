package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	internaldb "github.com/eargollo/fraudscan/internal/db"
	"github.com/eargollo/fraudscan/internal/detect"
)

// mustOpenDB opens a temp file SQLite database with the full schema applied.
func mustOpenDB(tb testing.TB) *sql.DB {
	tb.Helper()
	dbPath := filepath.Join(tb.TempDir(), "test.db")
	db, err := internaldb.Open(dbPath)
	if err != nil {
		tb.Fatalf("open test DB: %v", err)
	}
	if err := internaldb.RunMigrations(db); err != nil {
		db.Close()
		tb.Fatalf("run migrations: %v", err)
	}
	tb.Cleanup(func() { db.Close() })
	return db
}

// seedTransactions inserts one unscored transaction per amount, one minute
// apart, and returns the store.
func seedTransactions(tb testing.TB, db *sql.DB, amounts ...float64) *Store {
	tb.Helper()
	s := New(db)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	rows := make([]NewTransaction, len(amounts))
	for i, a := range amounts {
		rows[i] = NewTransaction{
			CardNumberEncrypted: "enc",
			Amount:              a,
			Timestamp:           base.Add(time.Duration(i) * time.Minute),
		}
	}
	if _, err := s.InsertTransactions(context.Background(), rows); err != nil {
		tb.Fatalf("seed transactions: %v", err)
	}
	return s
}

// failUpdatesOf installs a trigger that aborts any update touching id.
func failUpdatesOf(tb testing.TB, db *sql.DB, id int64) {
	tb.Helper()
	_, err := db.Exec(`
		CREATE TRIGGER fail_update BEFORE UPDATE ON transactions
		WHEN NEW.id = ` + itoa(id) + `
		BEGIN SELECT RAISE(ABORT, 'injected failure'); END`)
	if err != nil {
		tb.Fatalf("create trigger: %v", err)
	}
}

func dropFailTrigger(tb testing.TB, db *sql.DB) {
	tb.Helper()
	if _, err := db.Exec(`DROP TRIGGER fail_update`); err != nil {
		tb.Fatalf("drop trigger: %v", err)
	}
}

// storedRow is a full transaction row as read back from the table.
type storedRow struct {
	detect.Transaction
	CardNumberEncrypted string
}

// getTransaction loads one transaction by id straight from the table.
func getTransaction(tb testing.TB, s *Store, id int64) storedRow {
	tb.Helper()
	var (
		r           storedRow
		ts          int64
		status      int
		explanation sql.NullString
	)
	err := s.db.QueryRow(`
		SELECT id, card_number_encrypted, amount, timestamp, fraud_status, explanation
		FROM transactions WHERE id = ?`, id,
	).Scan(&r.ID, &r.CardNumberEncrypted, &r.Amount, &ts, &status, &explanation)
	if err != nil {
		tb.Fatalf("get transaction %d: %v", id, err)
	}
	r.Timestamp = time.Unix(ts, 0).UTC()
	r.Status = detect.FraudStatus(status)
	r.Explanation = explanation.String
	return r
}
