// Package detect implements the fraud detection scan: a single-flight job
// manager that walks the backlog of unscored transactions in chunks, applies
// the high-value rule and a trained classifier, enriches classifier hits with
// explanations and commits each chunk atomically.
package detect

import "time"

// FraudStatus is the tri-state fraud decision stored per transaction.
// The integer values match the fraud_status column.
type FraudStatus int

const (
	StatusUnknown    FraudStatus = -1
	StatusLegitimate FraudStatus = 0
	StatusFraudulent FraudStatus = 1
)

func (s FraudStatus) String() string {
	switch s {
	case StatusLegitimate:
		return "legitimate"
	case StatusFraudulent:
		return "fraudulent"
	default:
		return "unknown"
	}
}

// Explanation texts written alongside a decision.
const (
	LegitimateExplanation = "Transaction appears legitimate."
	HighValueExplanation  = "Transaction flagged due to high value (> $10,000)."
	FallbackExplanation   = "Flagged by ML anomaly detection."
)

// Transaction is the slice of a stored transaction the scan reads and writes.
type Transaction struct {
	ID          int64
	Amount      float64
	Timestamp   time.Time
	Status      FraudStatus
	Explanation string
}

// Features returns the numeric features the classifier sees for t.
// Keys not known to a model are dropped during alignment.
func (t Transaction) Features() map[string]float64 {
	ts := t.Timestamp.UTC()
	return map[string]float64{
		"amount":    t.Amount,
		"timestamp": float64(ts.Unix()),
		"hour":      float64(ts.Hour()),
		"weekday":   float64(ts.Weekday()),
	}
}

// ExplainRequest is the input to the explanation service for one flagged row.
type ExplainRequest struct {
	Amount    float64
	Timestamp time.Time
}

// countFraud returns how many rows in chunk are marked fraudulent.
func countFraud(chunk []Transaction) int64 {
	var n int64
	for i := range chunk {
		if chunk[i].Status == StatusFraudulent {
			n++
		}
	}
	return n
}
