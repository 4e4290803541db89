package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/wonny/earnsight/internal/benchmark"
	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/internal/ingest"
	"github.com/wonny/earnsight/internal/ingest/extract"
	"github.com/wonny/earnsight/internal/persist"
	"github.com/wonny/earnsight/pkg/logger"
)

// maxUploadBytes bounds admin upload bodies
const maxUploadBytes = 8 << 20

// AdminHandler serves ingestion and reference-data endpoints
type AdminHandler struct {
	pipeline   *ingest.Pipeline
	extractor  *extract.Extractor
	benchmarks *benchmark.Table
	store      persist.Store
	logger     *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(pipeline *ingest.Pipeline, extractor *extract.Extractor, benchmarks *benchmark.Table, store persist.Store, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		pipeline:   pipeline,
		extractor:  extractor,
		benchmarks: benchmarks,
		store:      store,
		logger:     log,
	}
}

// IngestFinancial runs one pre-extracted earnings document through the
// pipeline.
// POST /api/admin/ingest/financial
func (h *AdminHandler) IngestFinancial(w http.ResponseWriter, r *http.Request) {
	var doc ingest.FinancialDoc
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&doc); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.pipeline.IngestFinancial(r.Context(), doc)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// IngestFinancialHTML extracts KPIs from an HTML earnings page and
// ingests them. Document identity comes from query parameters.
// POST /api/admin/ingest/financial/html?doc_id=x&ticker=AAPL&period=2025-Q3
func (h *AdminHandler) IngestFinancialHTML(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docID, ticker, period := q.Get("doc_id"), q.Get("ticker"), q.Get("period")
	if docID == "" || ticker == "" || period == "" {
		respondError(w, http.StatusBadRequest, "Query parameters 'doc_id', 'ticker' and 'period' are required")
		return
	}

	kpis, err := h.extractor.Financials(http.MaxBytesReader(w, r.Body, maxUploadBytes), docID, ticker, period)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(kpis) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "No KPI tables found in document")
		return
	}

	result, err := h.pipeline.IngestFinancial(r.Context(), ingest.FinancialDoc{
		DocID:   docID,
		Ticker:  ticker,
		Period:  period,
		DocType: "earnings_html",
		Kpis:    kpis,
	})
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// IngestCompliance registers rules from a pre-extracted notice.
// POST /api/admin/ingest/compliance
func (h *AdminHandler) IngestCompliance(w http.ResponseWriter, r *http.Request) {
	var doc ingest.ComplianceDoc
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&doc); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.pipeline.IngestCompliance(r.Context(), doc)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// IngestComplianceHTML extracts margin rules from an HTML notice.
// POST /api/admin/ingest/compliance/html?doc_id=x
func (h *AdminHandler) IngestComplianceHTML(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("doc_id")
	if docID == "" {
		respondError(w, http.StatusBadRequest, "Query parameter 'doc_id' is required")
		return
	}

	rules, err := h.extractor.ComplianceRules(http.MaxBytesReader(w, r.Body, maxUploadBytes), docID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.IngestCompliance(r.Context(), ingest.ComplianceDoc{
		DocID: docID,
		Rules: rules,
	})
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// UploadConsensus merges a consensus CSV into the benchmark table.
// POST /api/admin/consensus
func (h *AdminHandler) UploadConsensus(w http.ResponseWriter, r *http.Request) {
	rows, err := h.benchmarks.LoadReader(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// new consensus changes surprises; re-decide stored tickers
	refreshed := h.pipeline.Refresh(r.Context())

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rows_applied":      rows,
		"tickers_refreshed": refreshed,
	})
}

// Documents lists ingested document records.
// GET /api/admin/documents?ticker=AAPL&limit=20
func (h *AdminHandler) Documents(w http.ResponseWriter, r *http.Request) {
	ticker := contracts.NormalizeTicker(r.URL.Query().Get("ticker"))

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	docs, err := h.store.ListDocuments(r.Context(), ticker, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list documents")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve documents")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}
