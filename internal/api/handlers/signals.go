package handlers

import (
	"net/http"

	"github.com/wonny/earnsight/internal/ingest"
	"github.com/wonny/earnsight/internal/persist"
	"github.com/wonny/earnsight/pkg/logger"
)

// SignalHandler serves cached trading signals
type SignalHandler struct {
	pipeline *ingest.Pipeline
	store    persist.Store
	logger   *logger.Logger
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(pipeline *ingest.Pipeline, store persist.Store, log *logger.Logger) *SignalHandler {
	return &SignalHandler{pipeline: pipeline, store: store, logger: log}
}

// Get returns the latest signal for a ticker, blocked or not. Falls
// back to durable storage when the cache has no entry, so restarts do
// not hide recent decisions.
// GET /api/signals/{ticker}
func (h *SignalHandler) Get(w http.ResponseWriter, r *http.Request) {
	ticker := pathTicker(r)
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "Invalid ticker")
		return
	}

	if sig, ok := h.pipeline.Signal(r.Context(), ticker); ok {
		respondJSON(w, http.StatusOK, sig)
		return
	}

	sig, err := h.store.LatestSignal(r.Context(), ticker)
	if err != nil {
		if persist.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "No signal for ticker")
			return
		}
		h.logger.WithError(err).Error("Failed to load signal")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve signal")
		return
	}
	respondJSON(w, http.StatusOK, sig)
}
