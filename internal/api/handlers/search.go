package handlers

import (
	"net/http"
	"strconv"

	"github.com/wonny/earnsight/internal/searchindex"
	"github.com/wonny/earnsight/pkg/logger"
)

const defaultSearchLimit = 20

// SearchHandler serves hybrid search over extracted facts
type SearchHandler struct {
	index  *searchindex.Index
	logger *logger.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(index *searchindex.Index, log *logger.Logger) *SearchHandler {
	return &SearchHandler{index: index, logger: log}
}

// Search ranks facts against a free-text query.
// GET /api/search?q=AAPL+revenue&limit=10
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	results := h.index.Search(query, limit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}
