package detect

import (
	"context"
	"fmt"
)

// Scorer runs the classifier over rows the rule left legitimate.
type Scorer struct {
	Classifier Classifier
}

// Apply scores every legitimate row of chunk with model. Rows labelled as
// fraud become fraudulent with the fallback explanation pre-assigned; their
// indexes into chunk are returned for enrichment.
func (s *Scorer) Apply(ctx context.Context, model string, chunk []Transaction) ([]int, error) {
	candidates := make([]int, 0, len(chunk))
	rows := make([]map[string]float64, 0, len(chunk))
	for i := range chunk {
		if chunk[i].Status != StatusLegitimate {
			continue
		}
		candidates = append(candidates, i)
		rows = append(rows, chunk[i].Features())
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	labels, err := s.Classifier.Predict(ctx, model, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: model %q: %w", ErrScoring, model, err)
	}
	if len(labels) != len(rows) {
		return nil, fmt.Errorf("%w: model %q returned %d labels for %d rows",
			ErrScoring, model, len(labels), len(rows))
	}

	var flagged []int
	for j, label := range labels {
		if label != 1 {
			continue
		}
		i := candidates[j]
		chunk[i].Status = StatusFraudulent
		chunk[i].Explanation = FallbackExplanation
		flagged = append(flagged, i)
	}
	return flagged, nil
}
