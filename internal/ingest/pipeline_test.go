package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/earnsight/internal/benchmark"
	"github.com/wonny/earnsight/internal/compliance"
	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/internal/featurestore"
	"github.com/wonny/earnsight/internal/notify"
	"github.com/wonny/earnsight/internal/persist"
	"github.com/wonny/earnsight/internal/riskgate"
	"github.com/wonny/earnsight/internal/rulecfg"
	"github.com/wonny/earnsight/internal/signal"
	"github.com/wonny/earnsight/internal/subscriptions"
	"github.com/wonny/earnsight/pkg/logger"
)

func newPipeline(t *testing.T) (*Pipeline, *subscriptions.Registry, *notify.Hub) {
	t.Helper()
	log := logger.Nop()
	rules := rulecfg.Default()

	store := featurestore.New(log)
	registry := compliance.New(log)
	subs := subscriptions.New(nil, log)
	hub := notify.New(notify.DefaultOptions(), log)

	p := NewPipeline(Deps{
		Normalizer: NewNormalizer(log),
		Benchmarks: benchmark.New(log),
		Store:      store,
		Engine:     signal.New(store, rules, log),
		Gate:       riskgate.New(rules.Gate, riskgate.DefaultExposure(), registry, log),
		Registry:   registry,
		Subs:       subs,
		Hub:        hub,
		Webhook:    notify.NewWebhook("", time.Second, log),
		Persist:    persist.NewNoop(),
		Signals:    persist.NewSignalCache(nil),
	}, log)
	return p, subs, hub
}

func drain(t *testing.T, sub *notify.Subscription, want contracts.EventType) contracts.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-sub.Events():
			if env.Event == want {
				return env
			}
			if env.Event == contracts.EventConnected || env.Event == contracts.EventPing {
				continue
			}
			t.Fatalf("unexpected event %s while waiting for %s", env.Event, want)
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func earningsDoc() FinancialDoc {
	return FinancialDoc{
		DocID:   "aapl_q3_2025.pdf",
		Ticker:  "AAPL",
		Period:  "2025-Q3",
		DocType: "earnings",
		Kpis: []RawKpi{
			{Ticker: "AAPL", Period: "2025-Q3", Metric: "revenue", Value: 94.93,
				Provenance: contracts.Provenance{Doc: "aapl_q3_2025.pdf", Page: 2}},
			{Ticker: "AAPL", Period: "2025-Q3", Metric: "eps", Value: 1.64,
				Provenance: contracts.Provenance{Doc: "aapl_q3_2025.pdf", Page: 3}},
		},
	}
}

func TestIngestFinancialEndToEnd(t *testing.T) {
	p, subs, hub := newPipeline(t)
	ctx := context.Background()

	_, err := subs.Upsert(ctx, "alice", "AAPL", []contracts.Channel{contracts.ChannelPush})
	require.NoError(t, err)
	stream := hub.Subscribe("alice")
	defer hub.Unsubscribe(stream)

	res, err := p.IngestFinancial(ctx, earningsDoc())
	require.NoError(t, err)

	assert.Equal(t, 2, res.FactCount)
	require.NotNil(t, res.Signal)
	// revenue +2.9% weak beat, eps +4.5% weak beat: both score +0.5
	assert.Equal(t, contracts.ActionBuy, res.Signal.Action)
	assert.True(t, res.GateResult.Approved, "reason: %s", res.GateResult.Reason)

	env := drain(t, stream, contracts.EventDocIngested)
	payload, ok := env.Data.(contracts.DocIngestedEvent)
	require.True(t, ok)
	assert.Equal(t, "aapl_q3_2025.pdf", payload.DocID)

	drain(t, stream, contracts.EventSignalReady)

	sig, ok := p.Signal(ctx, "aapl")
	require.True(t, ok)
	assert.Equal(t, contracts.ActionBuy, sig.Action)
}

func TestIngestFinancialRejectsEmptyDoc(t *testing.T) {
	p, _, _ := newPipeline(t)

	_, err := p.IngestFinancial(context.Background(), FinancialDoc{
		DocID: "empty.pdf", Ticker: "AAPL", Period: "2025-Q3",
		Kpis: []RawKpi{{Ticker: "", Period: "", Metric: "eps", Value: 1}},
	})
	assert.Error(t, err)
}

func TestIngestFinancialBlockedSignalStaysCached(t *testing.T) {
	p, _, _ := newPipeline(t)
	ctx := context.Background()

	doc := earningsDoc()
	// no consensus for this ticker: metrics score 0, confidence sinks
	// below the gate floor
	doc.Ticker = "ZZZQ"
	for i := range doc.Kpis {
		doc.Kpis[i].Ticker = "ZZZQ"
	}

	res, err := p.IngestFinancial(ctx, doc)
	require.NoError(t, err)
	assert.False(t, res.GateResult.Approved)
	assert.Equal(t, riskgate.ReasonLowConfidence, res.GateResult.Reason)

	sig, ok := p.Signal(ctx, "ZZZQ")
	require.True(t, ok)
	assert.True(t, sig.Blocked())
}

func TestIngestCompliance(t *testing.T) {
	p, subs, hub := newPipeline(t)
	ctx := context.Background()

	_, err := subs.Upsert(ctx, "bob", "MSFT", []contracts.Channel{contracts.ChannelPush})
	require.NoError(t, err)
	stream := hub.Subscribe("bob")
	defer hub.Unsubscribe(stream)

	res, err := p.IngestCompliance(ctx, ComplianceDoc{
		DocID: "margin_notice.pdf",
		Rules: []contracts.ComplianceRule{{
			RuleID:            "MARGIN-2025-11",
			ScopeClass:        "TECH-LARGE",
			InitialMargin:     0.40,
			MaintenanceMargin: 0.30,
			EffectiveDate:     time.Now().UTC().AddDate(0, 1, 0),
			Confidence:        0.9,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rules)
	// one alert per covered ticker
	assert.Len(t, res.Alerts, 6)

	env := drain(t, stream, contracts.EventComplianceAlert)
	alert, ok := env.Data.(contracts.ComplianceAlert)
	require.True(t, ok)
	assert.Equal(t, "MSFT", alert.Ticker)
	assert.NotEmpty(t, alert.ExposureGuidance)
}

func TestIngestComplianceValidation(t *testing.T) {
	p, _, _ := newPipeline(t)
	ctx := context.Background()

	_, err := p.IngestCompliance(ctx, ComplianceDoc{DocID: "d"})
	assert.Error(t, err)

	_, err = p.IngestCompliance(ctx, ComplianceDoc{
		DocID: "d",
		Rules: []contracts.ComplianceRule{{MaintenanceMargin: 0.3}},
	})
	assert.Error(t, err)
}

func TestRefresh(t *testing.T) {
	p, _, _ := newPipeline(t)
	ctx := context.Background()

	_, err := p.IngestFinancial(ctx, earningsDoc())
	require.NoError(t, err)

	assert.Equal(t, 1, p.Refresh(ctx))

	sig, ok := p.Signal(ctx, "AAPL")
	require.True(t, ok)
	assert.Equal(t, contracts.ActionBuy, sig.Action)
}
