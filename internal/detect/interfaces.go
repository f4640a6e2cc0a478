package detect

import "context"

// Store is the transaction store the scan reads from and commits to.
type Store interface {
	// CountEligible returns the number of transactions not yet scored.
	CountEligible(ctx context.Context) (int64, error)
	// FetchChunk returns up to limit unscored transactions, oldest id first.
	FetchChunk(ctx context.Context, limit int) ([]Transaction, error)
	// BulkUpdate writes status and explanation for every row atomically.
	BulkUpdate(ctx context.Context, rows []Transaction) error
}

// RunRecorder persists run history. It also arbitrates admission between
// processes sharing the history: InsertRun returns an error wrapping ErrBusy
// while another live run exists. Other recording failures are logged and
// never fail a run.
type RunRecorder interface {
	InsertRun(ctx context.Context, snap Snapshot) error
	UpdateRun(ctx context.Context, snap Snapshot) error
	// Heartbeat tells other processes the run is still alive.
	Heartbeat(ctx context.Context, runID string) error
}

// Classifier labels feature rows with a trained model (1 = fraud).
type Classifier interface {
	Has(model string) bool
	Predict(ctx context.Context, model string, rows []map[string]float64) ([]int, error)
}

// Explainer fetches one explanation per request. The result has the same
// length and order as reqs; an entry is "" when that request failed.
type Explainer interface {
	ExplainBatch(ctx context.Context, reqs []ExplainRequest) []string
}
