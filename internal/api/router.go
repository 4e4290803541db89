package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/wonny/earnsight/internal/api/handlers"
	"github.com/wonny/earnsight/pkg/logger"
)

// Handlers collects the route handlers the router wires up
type Handlers struct {
	Health        *handlers.HealthHandler
	Kpi           *handlers.KpiHandler
	Search        *handlers.SearchHandler
	Signals       *handlers.SignalHandler
	Compliance    *handlers.ComplianceHandler
	Subscriptions *handlers.SubscriptionHandler
	Admin         *handlers.AdminHandler
	Stream        *handlers.StreamHandler
}

// NewRouter creates and configures the HTTP router
// SSOT: route registration happens in this function only
func NewRouter(h Handlers, adminLimiter *rate.Limiter, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", h.Health.Check).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// KPI endpoints
	api.HandleFunc("/kpi/{ticker}", h.Kpi.Latest).Methods("GET")
	api.HandleFunc("/kpi/{ticker}/history", h.Kpi.History).Methods("GET")
	api.HandleFunc("/deltas/{ticker}", h.Kpi.Deltas).Methods("GET")
	api.HandleFunc("/tickers", h.Kpi.Tickers).Methods("GET")
	api.HandleFunc("/tickers/{ticker}/summary", h.Kpi.Summary).Methods("GET")

	// Search
	api.HandleFunc("/search", h.Search.Search).Methods("GET")

	// Signals
	api.HandleFunc("/signals/{ticker}", h.Signals.Get).Methods("GET")

	// Compliance
	api.HandleFunc("/compliance/summary", h.Compliance.Summary).Methods("GET")
	api.HandleFunc("/compliance/{ticker}", h.Compliance.ForTicker).Methods("GET")

	// Subscriptions
	api.HandleFunc("/users/{userID}/subscriptions", h.Subscriptions.List).Methods("GET")
	api.HandleFunc("/users/{userID}/subscriptions/{ticker}", h.Subscriptions.Upsert).Methods("PUT")
	api.HandleFunc("/users/{userID}/subscriptions/{ticker}", h.Subscriptions.Remove).Methods("DELETE")

	// Event stream (websocket)
	api.HandleFunc("/stream", h.Stream.Connect).Methods("GET")

	// Admin: ingest and reference data, rate limited
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/ingest/financial", h.Admin.IngestFinancial).Methods("POST")
	admin.HandleFunc("/ingest/financial/html", h.Admin.IngestFinancialHTML).Methods("POST")
	admin.HandleFunc("/ingest/compliance", h.Admin.IngestCompliance).Methods("POST")
	admin.HandleFunc("/ingest/compliance/html", h.Admin.IngestComplianceHTML).Methods("POST")
	admin.HandleFunc("/consensus", h.Admin.UploadConsensus).Methods("POST")
	admin.HandleFunc("/documents", h.Admin.Documents).Methods("GET")
	admin.Use(rateLimitMiddleware(adminLimiter))

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware throttles write-heavy admin endpoints
func rateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
