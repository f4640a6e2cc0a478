package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/eargollo/fraudscan/internal/detect"
)

// Detector is the job control surface of the detection manager.
type Detector interface {
	Start(ctx context.Context, model string) (detect.Snapshot, error)
	Progress() detect.Snapshot
}

// RunLister returns recorded detection runs, newest first.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]detect.Snapshot, error)
}

// DetectionHandler handles detection job endpoints.
type DetectionHandler struct {
	Manager      Detector
	History      RunLister
	DefaultModel string
	// RunCtx scopes admitted runs; cancelling it stops a run in progress.
	// Nil means runs are never cancelled.
	RunCtx context.Context
}

type startRequest struct {
	ModelName string `json:"model_name"`
}

// Start handles POST /api/detection/start.
func (h *DetectionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON")
		return
	}
	model := req.ModelName
	if model == "" {
		model = h.DefaultModel
	}

	ctx := h.RunCtx
	if ctx == nil {
		ctx = context.Background()
	}
	snap, err := h.Manager.Start(ctx, model)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, snap)
	case errors.Is(err, detect.ErrBusy):
		writeError(w, http.StatusConflict, "DETECTION_RUNNING", "A detection run is already in progress")
	case errors.Is(err, detect.ErrNoWork):
		writeError(w, http.StatusNotFound, "NO_WORK", "No unprocessed transactions")
	case errors.Is(err, detect.ErrModelNotTrained):
		writeError(w, http.StatusBadRequest, "MODEL_NOT_TRAINED", "Model '"+model+"' is not trained")
	default:
		slog.Error("detection: start", "model", model, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start detection")
	}
}

// Progress handles GET /api/detection/progress.
func (h *DetectionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Progress())
}

// Runs handles GET /api/detection/runs.
func (h *DetectionHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	runs, err := h.History.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("detection: list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list detection runs")
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[detect.Snapshot]{
		Items: runs,
		Total: len(runs),
		Limit: limit,
	})
}
