package riskgate

import (
	"fmt"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/internal/rulecfg"
	"github.com/wonny/earnsight/pkg/logger"
)

// Block reasons attached to signals that fail a gate check
const (
	ReasonLowConfidence    = "low_confidence"
	ReasonHighReviewRatio  = "high_review_ratio"
	ReasonLowDataQuality   = "low_data_quality"
	ReasonMarginBreachRisk = "margin_breach_risk"
)

// ExposureSource reports current portfolio exposure per ticker as a
// fraction of portfolio value.
type ExposureSource interface {
	Exposure(ticker string) float64
}

// StaticExposure is a fixed exposure book used until the portfolio
// service is wired in.
type StaticExposure map[string]float64

// DefaultExposure returns the stand-in book
func DefaultExposure() StaticExposure {
	return StaticExposure{
		"AAPL":  0.15,
		"MSFT":  0.12,
		"GOOGL": 0.18,
		"AMZN":  0.10,
	}
}

// Exposure returns the booked exposure, 5% for unlisted tickers
func (s StaticExposure) Exposure(ticker string) float64 {
	if e, ok := s[ticker]; ok {
		return e
	}
	return 0.05
}

// MaintenanceSource resolves the maintenance margins of every rule
// currently in force for a ticker.
type MaintenanceSource interface {
	ActiveMargins(ticker string) []float64
}

// Result is the gate verdict for one signal
type Result struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// Gate vets signals before publication. Checks run in a fixed order
// and the first failure wins; an approved signal passed every check.
type Gate struct {
	rules    rulecfg.GateRules
	exposure ExposureSource
	margins  MaintenanceSource
	logger   *logger.Logger
}

// New creates a gate. margins may be nil when no compliance registry
// is attached; the margin check then never fires.
func New(rules rulecfg.GateRules, exposure ExposureSource, margins MaintenanceSource, log *logger.Logger) *Gate {
	return &Gate{rules: rules, exposure: exposure, margins: margins, logger: log}
}

// Check vets a signal against the facts that produced it. A signal
// already carrying a block reason is passed through unchanged.
func (g *Gate) Check(sig *contracts.Signal, facts []contracts.KpiFact) Result {
	if sig.Blocked() {
		return g.blocked(sig, sig.BlockedReason)
	}

	if sig.Confidence < g.rules.MinConfidence {
		return g.blocked(sig, ReasonLowConfidence)
	}

	if len(facts) > 0 {
		var review, lowQuality int
		for _, f := range facts {
			if f.NeedsReview {
				review++
			}
			if f.Confidence < g.rules.MinQualityConf {
				lowQuality++
			}
		}
		n := float64(len(facts))
		if float64(review)/n > g.rules.MaxReviewRatio {
			return g.blocked(sig, ReasonHighReviewRatio)
		}
		if float64(lowQuality)/n > g.rules.MaxLowQualityRatio {
			return g.blocked(sig, ReasonLowDataQuality)
		}
	}

	if sig.Action == contracts.ActionBuy && g.margins != nil {
		exposure := g.exposure.Exposure(sig.Ticker)
		for _, maintenance := range g.margins.ActiveMargins(sig.Ticker) {
			if exposure > maintenance+g.rules.MarginBuffer {
				return g.blocked(sig, ReasonMarginBreachRisk)
			}
		}
	}

	g.logger.WithFields(map[string]interface{}{
		"ticker": sig.Ticker,
		"action": string(sig.Action),
	}).Debug("Signal approved")
	return Result{Approved: true}
}

func (g *Gate) blocked(sig *contracts.Signal, reason string) Result {
	sig.BlockedReason = reason
	g.logger.WithFields(map[string]interface{}{
		"ticker": sig.Ticker,
		"reason": reason,
	}).Info("Signal blocked")
	return Result{Reason: reason}
}

// Guidance phrases the exposure advice attached to a compliance alert
// when a margin rule tightens or loosens for a held ticker.
func (g *Gate) Guidance(ticker string, newMaintenance float64, oldMaintenance *float64) string {
	exposure := g.exposure.Exposure(ticker)
	headroom := newMaintenance + g.rules.MarginBuffer - exposure

	switch {
	case headroom < 0:
		return fmt.Sprintf("current exposure %.0f%% exceeds the %.0f%% maintenance margin plus buffer; reduce position",
			exposure*100, newMaintenance*100)
	case oldMaintenance != nil && newMaintenance > *oldMaintenance:
		return fmt.Sprintf("maintenance margin tightened to %.0f%%; %.0f%% headroom remains at current exposure",
			newMaintenance*100, headroom*100)
	default:
		return fmt.Sprintf("current exposure %.0f%% is within the %.0f%% maintenance margin",
			exposure*100, newMaintenance*100)
	}
}

// ValidateConsistency reduces a batch of signals to one per ticker,
// keeping the highest-confidence signal for each. A survivor that beat
// a conflicting action carries a reason noting the resolution.
func ValidateConsistency(signals []*contracts.Signal) []*contracts.Signal {
	best := make(map[string]*contracts.Signal, len(signals))
	conflicted := make(map[string]bool)
	var order []string
	for _, sig := range signals {
		cur, ok := best[sig.Ticker]
		if !ok {
			best[sig.Ticker] = sig
			order = append(order, sig.Ticker)
			continue
		}
		if sig.Action != cur.Action {
			conflicted[sig.Ticker] = true
		}
		if sig.Confidence > cur.Confidence {
			best[sig.Ticker] = sig
		}
	}

	out := make([]*contracts.Signal, 0, len(order))
	for _, ticker := range order {
		sig := best[ticker]
		if conflicted[ticker] {
			sig.Reasons = append(sig.Reasons, "conflicting signals resolved by confidence")
		}
		out = append(out, sig)
	}
	return out
}
