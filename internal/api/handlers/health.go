package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/earnsight/pkg/database"
	"github.com/wonny/earnsight/pkg/logger"
)

// HealthHandler reports process and dependency health
type HealthHandler struct {
	db     *database.DB // nil when running without Postgres
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB, log *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: log}
}

// Check returns service health including database status.
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"service":   "earnsight-api",
		"timestamp": time.Now().UTC(),
	}

	status := http.StatusOK
	if h.db != nil {
		dbHealth, err := h.db.HealthCheck(r.Context())
		response["database"] = dbHealth
		if err != nil || !dbHealth.Healthy {
			response["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, status, response)
}
