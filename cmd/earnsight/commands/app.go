package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/wonny/earnsight/internal/benchmark"
	"github.com/wonny/earnsight/internal/compliance"
	"github.com/wonny/earnsight/internal/featurestore"
	"github.com/wonny/earnsight/internal/ingest"
	"github.com/wonny/earnsight/internal/notify"
	"github.com/wonny/earnsight/internal/persist"
	"github.com/wonny/earnsight/internal/riskgate"
	"github.com/wonny/earnsight/internal/rulecfg"
	"github.com/wonny/earnsight/internal/searchindex"
	"github.com/wonny/earnsight/internal/signal"
	"github.com/wonny/earnsight/internal/subscriptions"
	"github.com/wonny/earnsight/pkg/config"
	"github.com/wonny/earnsight/pkg/database"
	"github.com/wonny/earnsight/pkg/logger"
	"github.com/wonny/earnsight/pkg/redis"
)

// app bundles everything a command needs after bootstrap
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.DB // nil when database disabled
	store      *featurestore.Store
	index      *searchindex.Index
	benchmarks *benchmark.Table
	registry   *compliance.Registry
	subs       *subscriptions.Registry
	hub        *notify.Hub
	pipeline   *ingest.Pipeline
	persist    persist.Store
	redis      *redis.Client
}

// newApp wires the full pipeline from configuration.
// SSOT: component wiring happens here only.
func newApp(ctx context.Context) (*app, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	// a missing rules file falls back to defaults; a broken one is fatal
	rulesPath := cfg.Data.SignalRulesPath
	if rulesPath != "" {
		if _, statErr := os.Stat(rulesPath); os.IsNotExist(statErr) {
			log.WithField("path", rulesPath).Warn("Signal rules file absent, using defaults")
			rulesPath = ""
		}
	}
	rules, err := rulecfg.Load(rulesPath, log)
	if err != nil {
		return nil, err
	}

	store := featurestore.New(log)
	index := searchindex.New(log)
	store.OnUpdate(index.Rebuild)

	benchmarks := benchmark.New(log)
	if err := benchmarks.LoadCSV(cfg.Data.ConsensusSeedPath, true); err != nil {
		return nil, err
	}

	registry := compliance.New(log)
	hub := notify.New(notify.Options{
		ChannelBuffer:  cfg.Notify.ChannelBuffer,
		EnqueueTimeout: cfg.Notify.EnqueueTimeout,
		Keepalive:      cfg.Notify.KeepaliveEvery,
	}, log)
	webhook := notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.WebhookTimeout, log)

	// durable layer, optional
	var (
		db        *database.DB
		dataStore persist.Store = persist.NewNoop()
	)
	if cfg.Database.Enabled {
		db, err = database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		pg := persist.NewPostgres(db, log)
		if err := pg.InitSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		dataStore = pg
	}

	subs := subscriptions.New(dataStore, log)
	if saved, err := dataStore.ListSubscriptions(ctx); err != nil {
		log.WithError(err).Warn("Subscription hydration failed")
	} else if len(saved) > 0 {
		subs.Load(saved)
	}
	if rulesSaved, err := dataStore.ListComplianceRules(ctx); err != nil {
		log.WithError(err).Warn("Compliance rule hydration failed")
	} else if len(rulesSaved) > 0 {
		registry.Add(rulesSaved...)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, signal cache is local only")
		redisClient = nil
	}
	var remote *redis.Cache
	if redisClient != nil && redisClient.Enabled() {
		remote = redis.NewCache(redisClient, "earnsight")
	}

	gate := riskgate.New(rules.Gate, riskgate.DefaultExposure(), registry, log)
	pipeline := ingest.NewPipeline(ingest.Deps{
		Normalizer: ingest.NewNormalizer(log),
		Benchmarks: benchmarks,
		Store:      store,
		Engine:     signal.New(store, rules, log),
		Gate:       gate,
		Registry:   registry,
		Subs:       subs,
		Hub:        hub,
		Webhook:    webhook,
		Persist:    dataStore,
		Signals:    persist.NewSignalCache(remote),
	}, log)

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		store:      store,
		index:      index,
		benchmarks: benchmarks,
		registry:   registry,
		subs:       subs,
		hub:        hub,
		pipeline:   pipeline,
		persist:    dataStore,
		redis:      redisClient,
	}, nil
}

// close releases external resources
func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
