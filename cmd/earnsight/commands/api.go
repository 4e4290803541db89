package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/wonny/earnsight/internal/api"
	"github.com/wonny/earnsight/internal/api/handlers"
	"github.com/wonny/earnsight/internal/ingest/extract"
	"github.com/wonny/earnsight/internal/scheduler"
	"github.com/wonny/earnsight/internal/scheduler/jobs"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server with the background scheduler.

Endpoints:
  GET  /health                           - Health check
  GET  /api/kpi/{ticker}                 - Latest KPI facts
  GET  /api/kpi/{ticker}/history         - Metric history
  GET  /api/deltas/{ticker}              - Period-over-period deltas
  GET  /api/search                       - Hybrid fact search
  GET  /api/signals/{ticker}             - Latest gated signal
  GET  /api/tickers                      - Known tickers
  GET  /api/tickers/{ticker}/summary     - Ticker dashboard view
  GET  /api/compliance/summary           - Margin rule registry
  GET  /api/stream                       - Event stream (websocket)
  POST /api/admin/ingest/financial       - Ingest earnings document
  POST /api/admin/ingest/compliance      - Ingest regulatory notice
  POST /api/admin/consensus              - Upload consensus CSV

Example:
  go run ./cmd/earnsight api
  go run ./cmd/earnsight api --port 8087`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1. Bootstrap components
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	// 2. Build handlers and router
	extractor := extract.New(a.log)
	router := api.NewRouter(api.Handlers{
		Health:        handlers.NewHealthHandler(a.db, a.log),
		Kpi:           handlers.NewKpiHandler(a.store, a.pipeline, a.registry, a.log),
		Search:        handlers.NewSearchHandler(a.index, a.log),
		Signals:       handlers.NewSignalHandler(a.pipeline, a.persist, a.log),
		Compliance:    handlers.NewComplianceHandler(a.registry, a.log),
		Subscriptions: handlers.NewSubscriptionHandler(a.subs, a.log),
		Admin:         handlers.NewAdminHandler(a.pipeline, extractor, a.benchmarks, a.persist, a.log),
		Stream:        handlers.NewStreamHandler(a.hub, a.log),
	}, rate.NewLimiter(rate.Limit(a.cfg.Ingest.RateLimitRPS), a.cfg.Ingest.RateLimitBurst), a.log)

	// 3. Background jobs
	sched := scheduler.New(a.log)
	if err := sched.AddJob(jobs.NewConsensusReload(a.benchmarks, a.cfg.Data.ConsensusSeedPath, a.log)); err != nil {
		return err
	}
	if err := sched.AddJob(jobs.NewSignalRefresh(a.pipeline, a.log)); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// 4. Start server with graceful shutdown
	server := api.New(a.cfg, a.log, router)
	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", a.cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
