package riskgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/internal/rulecfg"
	"github.com/wonny/earnsight/pkg/logger"
)

type fixedMargins map[string][]float64

func (m fixedMargins) ActiveMargins(ticker string) []float64 {
	return m[ticker]
}

func newGate(margins MaintenanceSource) *Gate {
	return New(rulecfg.Default().Gate, DefaultExposure(), margins, logger.Nop())
}

func buySignal(ticker string, confidence float64) *contracts.Signal {
	return &contracts.Signal{
		Ticker:     ticker,
		Period:     "2025-Q3",
		Action:     contracts.ActionBuy,
		Confidence: confidence,
	}
}

func goodFacts(n int) []contracts.KpiFact {
	facts := make([]contracts.KpiFact, n)
	for i := range facts {
		facts[i] = contracts.KpiFact{Ticker: "AAPL", Confidence: 0.9}
	}
	return facts
}

func TestConfidenceThreshold(t *testing.T) {
	gate := newGate(nil)

	t.Run("below threshold blocked", func(t *testing.T) {
		sig := buySignal("AAPL", 0.69)
		res := gate.Check(sig, goodFacts(5))
		assert.False(t, res.Approved)
		assert.Equal(t, ReasonLowConfidence, res.Reason)
		assert.Equal(t, ReasonLowConfidence, sig.BlockedReason)
	})

	t.Run("at threshold approved", func(t *testing.T) {
		res := gate.Check(buySignal("AAPL", 0.70), goodFacts(5))
		assert.True(t, res.Approved)
	})
}

func TestReviewRatio(t *testing.T) {
	gate := newGate(nil)

	t.Run("exactly 20 percent passes", func(t *testing.T) {
		facts := goodFacts(5)
		facts[0].NeedsReview = true
		res := gate.Check(buySignal("AAPL", 0.8), facts)
		assert.True(t, res.Approved)
	})

	t.Run("above 20 percent blocked", func(t *testing.T) {
		facts := goodFacts(5)
		facts[0].NeedsReview = true
		facts[1].NeedsReview = true
		res := gate.Check(buySignal("AAPL", 0.8), facts)
		assert.Equal(t, ReasonHighReviewRatio, res.Reason)
	})
}

func TestDataQualityRatio(t *testing.T) {
	gate := newGate(nil)

	facts := goodFacts(5)
	facts[0].Confidence = 0.75
	facts[1].Confidence = 0.60
	res := gate.Check(buySignal("AAPL", 0.8), facts)
	assert.Equal(t, ReasonLowDataQuality, res.Reason)
}

func TestMarginBreach(t *testing.T) {
	t.Run("buy over margin ceiling blocked", func(t *testing.T) {
		// GOOGL exposure 0.18 > 0.10 maintenance + 0.05 buffer
		gate := newGate(fixedMargins{"GOOGL": {0.10}})
		res := gate.Check(buySignal("GOOGL", 0.9), goodFacts(5))
		assert.Equal(t, ReasonMarginBreachRisk, res.Reason)
	})

	t.Run("sell is exempt", func(t *testing.T) {
		gate := newGate(fixedMargins{"GOOGL": {0.10}})
		sig := buySignal("GOOGL", 0.9)
		sig.Action = contracts.ActionSell
		res := gate.Check(sig, goodFacts(5))
		assert.True(t, res.Approved)
	})

	t.Run("headroom passes", func(t *testing.T) {
		// AAPL exposure 0.15 <= 0.25 + 0.05
		gate := newGate(fixedMargins{"AAPL": {0.25}})
		res := gate.Check(buySignal("AAPL", 0.9), goodFacts(5))
		assert.True(t, res.Approved)
	})

	t.Run("every active rule is checked", func(t *testing.T) {
		// the loose 0.30 rule passes; the tight 0.05 rule must still block
		// AAPL exposure 0.15 > 0.05 + 0.05
		gate := newGate(fixedMargins{"AAPL": {0.30, 0.05}})
		res := gate.Check(buySignal("AAPL", 0.9), goodFacts(5))
		assert.Equal(t, ReasonMarginBreachRisk, res.Reason)
	})

	t.Run("no rule no check", func(t *testing.T) {
		gate := newGate(fixedMargins{})
		res := gate.Check(buySignal("GOOGL", 0.9), goodFacts(5))
		assert.True(t, res.Approved)
	})
}

func TestBlockedPassthrough(t *testing.T) {
	gate := newGate(nil)
	sig := buySignal("AAPL", 0.9)
	sig.BlockedReason = "no_data"

	res := gate.Check(sig, nil)
	assert.False(t, res.Approved)
	assert.Equal(t, "no_data", res.Reason)
}

func TestGuidance(t *testing.T) {
	gate := newGate(nil)

	t.Run("breach advises reduction", func(t *testing.T) {
		// GOOGL exposure 0.18 > 0.10 + 0.05
		g := gate.Guidance("GOOGL", 0.10, nil)
		assert.Contains(t, g, "reduce position")
	})

	t.Run("tightening reports headroom", func(t *testing.T) {
		old := 0.20
		g := gate.Guidance("AAPL", 0.25, &old)
		assert.Contains(t, g, "tightened")
	})

	t.Run("within margin", func(t *testing.T) {
		g := gate.Guidance("AMZN", 0.25, nil)
		assert.Contains(t, g, "within")
	})
}

func TestValidateConsistency(t *testing.T) {
	a1 := buySignal("AAPL", 0.7)
	a2 := buySignal("AAPL", 0.9)
	m := buySignal("MSFT", 0.8)

	out := ValidateConsistency([]*contracts.Signal{a1, a2, m})
	require.Len(t, out, 2)
	assert.Same(t, a2, out[0])
	assert.Same(t, m, out[1])
	// same action for AAPL, no conflict noted
	assert.NotContains(t, a2.Reasons, "conflicting signals resolved by confidence")
}

func TestValidateConsistencyNotesConflict(t *testing.T) {
	buy := buySignal("AAPL", 0.9)
	sell := buySignal("AAPL", 0.7)
	sell.Action = contracts.ActionSell

	out := ValidateConsistency([]*contracts.Signal{buy, sell})
	require.Len(t, out, 1)
	assert.Same(t, buy, out[0])
	assert.Contains(t, out[0].Reasons, "conflicting signals resolved by confidence")
}
