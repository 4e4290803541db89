package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/earnsight/internal/benchmark"
	"github.com/wonny/earnsight/internal/compliance"
	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/internal/featurestore"
	"github.com/wonny/earnsight/internal/notify"
	"github.com/wonny/earnsight/internal/persist"
	"github.com/wonny/earnsight/internal/riskgate"
	"github.com/wonny/earnsight/internal/signal"
	"github.com/wonny/earnsight/internal/subscriptions"
	"github.com/wonny/earnsight/pkg/logger"
)

// FinancialDoc is one earnings document submitted for ingestion
type FinancialDoc struct {
	DocID    string   `json:"doc_id"`
	Ticker   string   `json:"ticker"`
	Period   string   `json:"period"`
	DocType  string   `json:"doc_type"`
	Uploader string   `json:"uploader,omitempty"`
	Kpis     []RawKpi `json:"kpis"`
}

// ComplianceDoc is one regulatory notice submitted for ingestion
type ComplianceDoc struct {
	DocID    string                     `json:"doc_id"`
	Uploader string                     `json:"uploader,omitempty"`
	Rules    []contracts.ComplianceRule `json:"rules"`
}

// FinancialResult reports what one financial ingest produced
type FinancialResult struct {
	DocID      string            `json:"doc_id"`
	FactCount  int               `json:"fact_count"`
	Rejected   []string          `json:"rejected,omitempty"`
	Signal     *contracts.Signal `json:"signal"`
	GateResult riskgate.Result   `json:"gate_result"`
}

// ComplianceResult reports what one compliance ingest produced
type ComplianceResult struct {
	DocID  string                      `json:"doc_id"`
	Rules  int                         `json:"rules"`
	Alerts []contracts.ComplianceAlert `json:"alerts"`
}

// Pipeline runs the full ingest path: normalize, enrich, store,
// decide, gate, notify. One pipeline serves the whole process.
type Pipeline struct {
	normalizer *Normalizer
	benchmarks *benchmark.Table
	store      *featurestore.Store
	engine     *signal.Engine
	gate       *riskgate.Gate
	registry   *compliance.Registry
	subs       *subscriptions.Registry
	hub        *notify.Hub
	webhook    *notify.Webhook
	persist    persist.Store
	signals    *persist.SignalCache
	logger     *logger.Logger
}

// Deps collects pipeline collaborators
type Deps struct {
	Normalizer *Normalizer
	Benchmarks *benchmark.Table
	Store      *featurestore.Store
	Engine     *signal.Engine
	Gate       *riskgate.Gate
	Registry   *compliance.Registry
	Subs       *subscriptions.Registry
	Hub        *notify.Hub
	Webhook    *notify.Webhook
	Persist    persist.Store
	Signals    *persist.SignalCache
}

// NewPipeline wires a pipeline
func NewPipeline(d Deps, log *logger.Logger) *Pipeline {
	return &Pipeline{
		normalizer: d.Normalizer,
		benchmarks: d.Benchmarks,
		store:      d.Store,
		engine:     d.Engine,
		gate:       d.Gate,
		registry:   d.Registry,
		subs:       d.Subs,
		hub:        d.Hub,
		webhook:    d.Webhook,
		persist:    d.Persist,
		signals:    d.Signals,
		logger:     log,
	}
}

// IngestFinancial runs an earnings document through the pipeline.
// Invalid KPIs are rejected individually; the document fails only
// when nothing in it survives normalization.
func (p *Pipeline) IngestFinancial(ctx context.Context, doc FinancialDoc) (*FinancialResult, error) {
	ticker := contracts.NormalizeTicker(doc.Ticker)
	period := contracts.NormalizePeriod(doc.Period)
	if !contracts.ValidTicker(ticker) {
		return nil, fmt.Errorf("invalid ticker %q", doc.Ticker)
	}

	facts, errs := p.normalizer.NormalizeAll(doc.Kpis)
	if len(facts) == 0 {
		return nil, fmt.Errorf("document %s: no valid kpis (%d rejected)", doc.DocID, len(errs))
	}
	result := &FinancialResult{DocID: doc.DocID, FactCount: len(facts)}
	for _, err := range errs {
		result.Rejected = append(result.Rejected, err.Error())
	}

	now := time.Now().UTC()
	p.benchmarks.Enrich(facts)

	if err := p.persist.SaveDocument(ctx, contracts.Document{
		DocID:      doc.DocID,
		Ticker:     ticker,
		Period:     period,
		DocType:    doc.DocType,
		Uploader:   doc.Uploader,
		ReceivedAt: now,
	}); err != nil {
		p.logger.WithError(err).Warn("Document persist failed")
	}

	p.hub.Publish(contracts.EventDocIngested, contracts.DocIngestedEvent{
		DocID:      doc.DocID,
		Ticker:     ticker,
		Period:     period,
		DocType:    doc.DocType,
		ReceivedAt: now,
	}, p.subs.SubscribersFor(ticker, contracts.ChannelPush)...)

	p.store.Upsert(facts)

	sig := p.engine.Decide(ticker, period)
	result.Signal = sig
	result.GateResult = p.gate.Check(sig, facts)

	p.signals.Put(ctx, sig)
	if err := p.persist.SaveSignal(ctx, sig); err != nil {
		p.logger.WithError(err).Warn("Signal persist failed")
	}

	if result.GateResult.Approved {
		p.announceSignal(ctx, sig)
	}

	p.logger.WithFields(map[string]interface{}{
		"doc_id":   doc.DocID,
		"ticker":   ticker,
		"facts":    len(facts),
		"action":   string(sig.Action),
		"approved": result.GateResult.Approved,
	}).Info("Financial document ingested")
	return result, nil
}

// IngestCompliance registers margin rules and alerts affected
// subscribers, with exposure guidance per covered ticker.
func (p *Pipeline) IngestCompliance(ctx context.Context, doc ComplianceDoc) (*ComplianceResult, error) {
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("document %s: no rules", doc.DocID)
	}
	for i := range doc.Rules {
		if doc.Rules[i].RuleID == "" {
			return nil, fmt.Errorf("document %s: rule %d missing id", doc.DocID, i)
		}
	}

	if err := p.persist.SaveDocument(ctx, contracts.Document{
		DocID:      doc.DocID,
		DocType:    "compliance",
		Uploader:   doc.Uploader,
		ReceivedAt: time.Now().UTC(),
	}); err != nil {
		p.logger.WithError(err).Warn("Document persist failed")
	}

	result := &ComplianceResult{DocID: doc.DocID, Rules: len(doc.Rules)}
	for _, rep := range p.registry.Add(doc.Rules...) {
		if err := p.persist.SaveComplianceRule(ctx, rep.Rule); err != nil {
			p.logger.WithError(err).Warn("Compliance rule persist failed")
		}

		for _, ticker := range compliance.TickersFor(rep.Rule) {
			var oldMaintenance *float64
			if rep.Previous != nil {
				m := rep.Previous.MaintenanceMargin
				oldMaintenance = &m
			}
			guidance := p.gate.Guidance(ticker, rep.Rule.MaintenanceMargin, oldMaintenance)
			alert := compliance.BuildAlert(rep, ticker, guidance)
			result.Alerts = append(result.Alerts, alert)

			p.hub.Publish(contracts.EventComplianceAlert, alert,
				p.subs.SubscribersFor(ticker, contracts.ChannelPush)...)
			if chat := p.subs.SubscribersFor(ticker, contracts.ChannelChat); len(chat) > 0 {
				p.webhook.Notify(ctx, contracts.EventComplianceAlert,
					notify.ComplianceText(alert), alert, chat)
			}
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"doc_id": doc.DocID,
		"rules":  result.Rules,
		"alerts": len(result.Alerts),
	}).Info("Compliance document ingested")
	return result, nil
}

// Refresh re-decides the latest period of every stored ticker,
// re-gating against current rules and exposure. Used by the scheduler
// after consensus or rule updates.
func (p *Pipeline) Refresh(ctx context.Context) int {
	var refreshed int
	for _, ticker := range p.store.Tickers() {
		periods := p.store.Periods(ticker)
		if len(periods) == 0 {
			continue
		}
		sort.Strings(periods)
		period := periods[len(periods)-1]

		facts := make([]contracts.KpiFact, 0, 8)
		for _, fact := range p.store.Latest(ticker) {
			if fact.Period == period {
				facts = append(facts, fact)
			}
		}

		sig := p.engine.Decide(ticker, period)
		res := p.gate.Check(sig, facts)
		p.signals.Put(ctx, sig)
		if res.Approved {
			p.announceSignal(ctx, sig)
		}
		refreshed++
	}
	return refreshed
}

// Signal returns the latest cached signal for a ticker
func (p *Pipeline) Signal(ctx context.Context, ticker string) (*contracts.Signal, bool) {
	return p.signals.Get(ctx, contracts.NormalizeTicker(ticker))
}

func (p *Pipeline) announceSignal(ctx context.Context, sig *contracts.Signal) {
	p.hub.Publish(contracts.EventSignalReady, contracts.SignalReadyEvent{
		Ticker:     sig.Ticker,
		Action:     sig.Action,
		Confidence: sig.Confidence,
		Citations:  sig.Citations,
	}, p.subs.SubscribersFor(sig.Ticker, contracts.ChannelPush)...)

	if chat := p.subs.SubscribersFor(sig.Ticker, contracts.ChannelChat); len(chat) > 0 {
		p.webhook.Notify(ctx, contracts.EventSignalReady, notify.SignalText(sig), sig, chat)
	}
}
