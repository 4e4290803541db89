package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/earnsight/internal/compliance"
	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/internal/featurestore"
	"github.com/wonny/earnsight/internal/ingest"
	"github.com/wonny/earnsight/pkg/logger"
)

// KpiHandler serves extracted KPI facts and derived deltas
type KpiHandler struct {
	store    *featurestore.Store
	pipeline *ingest.Pipeline
	registry *compliance.Registry
	logger   *logger.Logger
}

// NewKpiHandler creates a new KPI handler
func NewKpiHandler(store *featurestore.Store, pipeline *ingest.Pipeline, registry *compliance.Registry, log *logger.Logger) *KpiHandler {
	return &KpiHandler{
		store:    store,
		pipeline: pipeline,
		registry: registry,
		logger:   log,
	}
}

// Latest returns the most recent fact per metric for a ticker.
// GET /api/kpi/{ticker}
func (h *KpiHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ticker := pathTicker(r)
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "Invalid ticker")
		return
	}

	latest := h.store.Latest(ticker)
	if len(latest) == 0 {
		respondError(w, http.StatusNotFound, "No data for ticker")
		return
	}

	metrics := make([]string, 0, len(latest))
	for metric := range latest {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	facts := make([]contracts.KpiFact, 0, len(metrics))
	for _, metric := range metrics {
		facts = append(facts, latest[metric])
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": ticker,
		"facts":  facts,
	})
}

// History returns the period-ordered series for one metric.
// GET /api/kpi/{ticker}/history?metric=revenue
func (h *KpiHandler) History(w http.ResponseWriter, r *http.Request) {
	ticker := pathTicker(r)
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "Invalid ticker")
		return
	}
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		respondError(w, http.StatusBadRequest, "Query parameter 'metric' is required")
		return
	}

	history := h.store.History(ticker, metric)
	if len(history) == 0 {
		respondError(w, http.StatusNotFound, "No data for ticker/metric")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":  ticker,
		"metric":  metric,
		"history": history,
	})
}

// Deltas returns period-over-period changes for a ticker.
// GET /api/deltas/{ticker}?period=2025-Q3
func (h *KpiHandler) Deltas(w http.ResponseWriter, r *http.Request) {
	ticker := pathTicker(r)
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "Invalid ticker")
		return
	}

	period := contracts.NormalizePeriod(r.URL.Query().Get("period"))
	if period == "" {
		period = latestPeriod(h.store, ticker)
	}
	if period == "" {
		respondError(w, http.StatusNotFound, "No data for ticker")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": ticker,
		"period": period,
		"deltas": h.store.Deltas(ticker, period),
	})
}

// Tickers lists tickers with stored data.
// GET /api/tickers
func (h *KpiHandler) Tickers(w http.ResponseWriter, r *http.Request) {
	tickers := h.store.Tickers()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tickers": tickers,
		"count":   len(tickers),
	})
}

// Summary aggregates the latest state of one ticker: facts, deltas,
// cached signal and the binding margin rule.
// GET /api/tickers/{ticker}/summary
func (h *KpiHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ticker := pathTicker(r)
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "Invalid ticker")
		return
	}

	latest := h.store.Latest(ticker)
	if len(latest) == 0 {
		respondError(w, http.StatusNotFound, "No data for ticker")
		return
	}

	period := latestPeriod(h.store, ticker)
	summary := map[string]interface{}{
		"ticker":  ticker,
		"period":  period,
		"metrics": latest,
		"deltas":  h.store.Deltas(ticker, period),
	}

	if sig, ok := h.pipeline.Signal(r.Context(), ticker); ok {
		summary["signal"] = sig
	}
	if rule, ok := h.registry.ActiveFor(ticker, time.Now().UTC()); ok {
		summary["margin_rule"] = rule
	}

	respondJSON(w, http.StatusOK, summary)
}

// pathTicker extracts and normalizes the ticker path variable,
// returning "" when it fails validation.
func pathTicker(r *http.Request) string {
	ticker := contracts.NormalizeTicker(mux.Vars(r)["ticker"])
	if !contracts.ValidTicker(ticker) {
		return ""
	}
	return ticker
}

func latestPeriod(store *featurestore.Store, ticker string) string {
	periods := store.Periods(ticker)
	if len(periods) == 0 {
		return ""
	}
	sort.Strings(periods)
	return periods[len(periods)-1]
}
