package detect

import (
	"context"
	"fmt"
	"log/slog"
)

// Enricher replaces the fallback explanation of classifier hits with text
// from the explanation service. It never fails: anything that goes wrong
// leaves the affected rows on the fallback text.
type Enricher struct {
	Explainer Explainer
}

// Apply enriches chunk[i] for every i in flagged and returns how many rows
// kept the fallback text.
func (e *Enricher) Apply(ctx context.Context, chunk []Transaction, flagged []int) (degraded int) {
	if len(flagged) == 0 {
		return 0
	}
	for _, i := range flagged {
		chunk[i].Explanation = FallbackExplanation
	}
	if e == nil || e.Explainer == nil {
		return len(flagged)
	}

	reqs := make([]ExplainRequest, len(flagged))
	for j, i := range flagged {
		reqs[j] = ExplainRequest{Amount: chunk[i].Amount, Timestamp: chunk[i].Timestamp}
	}

	texts, err := e.fetch(ctx, reqs)
	if err != nil {
		slog.Error("detection: explanation service failed", "rows", len(reqs), "error", err)
		return len(flagged)
	}
	if len(texts) != len(reqs) {
		slog.Error("detection: explanation count mismatch, keeping fallback",
			"want", len(reqs), "got", len(texts))
		return len(flagged)
	}

	for j, i := range flagged {
		if texts[j] == "" {
			degraded++
			continue
		}
		chunk[i].Explanation = texts[j]
	}
	if degraded > 0 {
		slog.Warn("detection: some explanations unavailable", "failed", degraded, "rows", len(reqs))
	}
	return degraded
}

// fetch calls the explainer, turning a panic into an error.
func (e *Enricher) fetch(ctx context.Context, reqs []ExplainRequest) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("explainer panic: %v", r)
		}
	}()
	return e.Explainer.ExplainBatch(ctx, reqs), nil
}
