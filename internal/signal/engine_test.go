package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/internal/featurestore"
	"github.com/wonny/earnsight/internal/rulecfg"
	"github.com/wonny/earnsight/pkg/logger"
)

func newEngine(t *testing.T) (*Engine, *featurestore.Store) {
	t.Helper()
	store := featurestore.New(logger.Nop())
	return New(store, rulecfg.Default(), logger.Nop()), store
}

func enriched(ticker, period, metric string, value, consensus, confidence float64) contracts.KpiFact {
	surprise := (value - consensus) / consensus
	return contracts.KpiFact{
		Ticker:     ticker,
		Period:     period,
		Metric:     metric,
		Value:      value,
		Confidence: confidence,
		Consensus:  &consensus,
		Surprise:   &surprise,
		Provenance: contracts.Provenance{Doc: "q3_earnings.pdf", Page: 2, Table: "income_statement"},
	}
}

func TestDecideRevenueBeat(t *testing.T) {
	engine, store := newEngine(t)
	// 94.93 vs 92.27 consensus: +2.88% surprise, weak beat
	store.Upsert([]contracts.KpiFact{
		enriched("AAPL", "2025-Q3", "revenue", 94.93, 92.27, 0.95),
	})

	sig := engine.Decide("AAPL", "2025-Q3")
	require.False(t, sig.Blocked())
	assert.Equal(t, contracts.ActionBuy, sig.Action)
	assert.InDelta(t, 0.5, sig.OverallScore, 1e-9)
	// 0.4*0.5 + 0.3*0.95 + 0.3*1.0 (single metric is fully consistent)
	assert.InDelta(t, 0.785, sig.Confidence, 1e-9)
	require.NotEmpty(t, sig.Reasons)
	assert.Contains(t, sig.Reasons[1], "revenue beat consensus")
	require.Len(t, sig.Citations, 1)
	assert.Equal(t, "q3_earnings.pdf", sig.Citations[0].Doc)
}

func TestDecideSurpriseThresholds(t *testing.T) {
	tests := []struct {
		name      string
		metric    string
		value     float64
		consensus float64
		score     float64
	}{
		{"eps strong beat", "eps", 1.06, 1.00, 1.0},
		{"eps weak beat", "eps", 1.03, 1.00, 0.5},
		{"eps in line", "eps", 1.01, 1.00, 0},
		{"eps weak miss", "eps", 0.97, 1.00, -0.5},
		{"eps strong miss", "eps", 0.94, 1.00, -1.0},
		{"revenue strong beat", "revenue", 103.5, 100, 1.0},
		{"revenue weak miss", "revenue", 98.5, 100, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, store := newEngine(t)
			store.Upsert([]contracts.KpiFact{
				enriched("MSFT", "2025-Q3", tt.metric, tt.value, tt.consensus, 0.9),
			})

			sig := engine.Decide("MSFT", "2025-Q3")
			assert.InDelta(t, tt.score, sig.MetricScores[tt.metric], 1e-9)
		})
	}
}

func TestDecideMarginDelta(t *testing.T) {
	engine, store := newEngine(t)
	store.Upsert([]contracts.KpiFact{
		{Ticker: "AAPL", Period: "2025-Q2", Metric: "gross_margin", Value: 0.43, Confidence: 0.85},
		{Ticker: "AAPL", Period: "2025-Q3", Metric: "gross_margin", Value: 0.46, Confidence: 0.88},
	})

	sig := engine.Decide("AAPL", "2025-Q3")
	require.False(t, sig.Blocked())
	// +7% relative expansion clears the 2% bar
	assert.InDelta(t, 0.5, sig.MetricScores["gross_margin"], 1e-9)
	assert.Contains(t, sig.Reasons[1], "gross_margin expanded")
}

func TestDecideMarginScoresRelativeDelta(t *testing.T) {
	engine, store := newEngine(t)
	// 0.43 -> 0.44: only +1pp absolute, but +2.3% relative
	store.Upsert([]contracts.KpiFact{
		{Ticker: "AAPL", Period: "2025-Q2", Metric: "gross_margin", Value: 0.43, Confidence: 0.85},
		{Ticker: "AAPL", Period: "2025-Q3", Metric: "gross_margin", Value: 0.44, Confidence: 0.88},
	})

	sig := engine.Decide("AAPL", "2025-Q3")
	assert.InDelta(t, 0.5, sig.MetricScores["gross_margin"], 1e-9)
}

func TestDecideMarginWithoutPriorPeriodScoresZero(t *testing.T) {
	engine, store := newEngine(t)
	store.Upsert([]contracts.KpiFact{
		{Ticker: "AAPL", Period: "2025-Q3", Metric: "gross_margin", Value: 0.46, Confidence: 0.88},
	})

	sig := engine.Decide("AAPL", "2025-Q3")
	require.False(t, sig.Blocked())
	assert.Equal(t, contracts.ActionHold, sig.Action)
	require.Contains(t, sig.MetricScores, "gross_margin")
	assert.Zero(t, sig.MetricScores["gross_margin"])
	assert.Contains(t, sig.Reasons[1], "delta not available")
}

func TestDecideWeightedMix(t *testing.T) {
	engine, store := newEngine(t)
	store.Upsert([]contracts.KpiFact{
		enriched("GOOGL", "2025-Q3", "eps", 2.30, 2.12, 0.92),    // +8.5%: strong beat
		enriched("GOOGL", "2025-Q3", "revenue", 85.0, 86.3, 0.9), // -1.5%: weak miss
	})

	sig := engine.Decide("GOOGL", "2025-Q3")
	// (0.4*1.0 + 0.3*-0.5) / 0.7
	expected := (0.4*1.0 + 0.3*-0.5) / 0.7
	assert.InDelta(t, expected, sig.OverallScore, 1e-9)
	assert.Equal(t, contracts.ActionBuy, sig.Action)

	// disagreement between metrics drags consistency below 1
	variance := ((1.0-expected)*(1.0-expected) + (-0.5-expected)*(-0.5-expected)) / 2
	expectedConf := 0.4*expected + 0.3*((0.92+0.9)/2) + 0.3*(1-variance)
	assert.InDelta(t, expectedConf, sig.Confidence, 1e-9)
}

func TestDecideSell(t *testing.T) {
	engine, store := newEngine(t)
	store.Upsert([]contracts.KpiFact{
		enriched("NFLX", "2025-Q3", "eps", 0.90, 1.00, 0.9),     // -10%: strong miss
		enriched("NFLX", "2025-Q3", "revenue", 96.0, 100, 0.85), // -4%: strong miss
	})

	sig := engine.Decide("NFLX", "2025-Q3")
	assert.Equal(t, contracts.ActionSell, sig.Action)
	assert.InDelta(t, -1.0, sig.OverallScore, 1e-9)
}

func TestDecideNoData(t *testing.T) {
	engine, _ := newEngine(t)

	sig := engine.Decide("GHOST", "2025-Q3")
	assert.Equal(t, contracts.ActionHold, sig.Action)
	assert.Zero(t, sig.Confidence)
	assert.Equal(t, BlockedNoData, sig.BlockedReason)
}

func TestDecideNoConsensusScoresZero(t *testing.T) {
	engine, store := newEngine(t)
	store.Upsert([]contracts.KpiFact{
		{Ticker: "TSLA", Period: "2025-Q3", Metric: "revenue", Value: 25.5, Confidence: 0.9},
	})

	sig := engine.Decide("TSLA", "2025-Q3")
	require.False(t, sig.Blocked())
	assert.Equal(t, contracts.ActionHold, sig.Action)
	require.Contains(t, sig.MetricScores, "revenue")
	assert.Zero(t, sig.MetricScores["revenue"])
	assert.Contains(t, sig.Reasons[1], "data incomplete")
}

func TestDecideReasonAndCitationCaps(t *testing.T) {
	engine, store := newEngine(t)
	facts := []contracts.KpiFact{
		enriched("AAPL", "2025-Q2", "gross_margin", 0.43, 0.43, 0.85),
		enriched("AAPL", "2025-Q2", "operating_margin", 0.30, 0.30, 0.85),
		enriched("AAPL", "2025-Q3", "eps", 1.64, 1.57, 0.92),
		enriched("AAPL", "2025-Q3", "revenue", 94.93, 92.27, 0.95),
		enriched("AAPL", "2025-Q3", "gross_margin", 0.46, 0.455, 0.88),
		enriched("AAPL", "2025-Q3", "operating_margin", 0.33, 0.31, 0.86),
	}
	// spread provenance so citations do not dedupe away
	for i := range facts {
		facts[i].Provenance.Page = i + 1
	}
	store.Upsert(facts)

	sig := engine.Decide("AAPL", "2025-Q3")
	assert.LessOrEqual(t, len(sig.Reasons), 5)
	assert.LessOrEqual(t, len(sig.Citations), 3)
}
