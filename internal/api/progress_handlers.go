package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/gamedb-scraper/internal/pipeline"
)

// ProgressSource reports the consumer snapshot of the active run. ok is false
// before the run has started.
type ProgressSource interface {
	Snapshot() (pipeline.Snapshot, bool)
}

// ProgressHandler serves read-only run progress.
type ProgressHandler struct {
	source ProgressSource
	logger *zap.Logger
}

// NewProgressHandler wires the progress source and logger.
func NewProgressHandler(source ProgressSource, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{source: source, logger: logger}
}

// GetProgress handles GET /v1/progress. It returns {"progress": {...}} once a
// run has started and 503 otherwise.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, _ *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "progress source unavailable")
		return
	}
	snapshot, ok := h.source.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "run not started")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": snapshot})
}
