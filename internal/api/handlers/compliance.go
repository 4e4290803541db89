package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/earnsight/internal/compliance"
	"github.com/wonny/earnsight/pkg/logger"
)

// ComplianceHandler serves the margin rule registry
type ComplianceHandler struct {
	registry *compliance.Registry
	logger   *logger.Logger
}

// NewComplianceHandler creates a new compliance handler
func NewComplianceHandler(registry *compliance.Registry, log *logger.Logger) *ComplianceHandler {
	return &ComplianceHandler{registry: registry, logger: log}
}

// Summary returns the registry dashboard view.
// GET /api/compliance/summary
func (h *ComplianceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.Summarize(time.Now().UTC()))
}

// ForTicker returns the rules covering one ticker plus the binding one.
// GET /api/compliance/{ticker}
func (h *ComplianceHandler) ForTicker(w http.ResponseWriter, r *http.Request) {
	ticker := pathTicker(r)
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "Invalid ticker")
		return
	}

	rules := h.registry.RulesFor(ticker)
	response := map[string]interface{}{
		"ticker": ticker,
		"rules":  rules,
	}
	if active, ok := h.registry.ActiveFor(ticker, time.Now().UTC()); ok {
		response["active"] = active
	}
	respondJSON(w, http.StatusOK, response)
}
