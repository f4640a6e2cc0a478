package handlers

import (
	"net/http"

	"github.com/eargollo/fraudscan/internal/classifier"
)

// ModelLister reports the loaded models.
type ModelLister interface {
	Models() []classifier.ModelInfo
	Features() []string
}

// ModelsHandler handles GET /api/models.
type ModelsHandler struct {
	Models ModelLister
}

type modelsResponse struct {
	Models   []classifier.ModelInfo `json:"models"`
	Features []string               `json:"features"`
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	features := h.Models.Features()
	if features == nil {
		features = []string{}
	}
	writeJSON(w, http.StatusOK, modelsResponse{
		Models:   h.Models.Models(),
		Features: features,
	})
}
