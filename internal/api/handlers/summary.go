package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/eargollo/fraudscan/internal/store"
)

// SummaryReader aggregates fraud decisions.
type SummaryReader interface {
	Summary(ctx context.Context) (store.Summary, error)
}

// SummaryHandler handles GET /api/summary.
type SummaryHandler struct {
	Store SummaryReader
}

func (h *SummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Store.Summary(r.Context())
	if err != nil {
		slog.Error("summary: query", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
