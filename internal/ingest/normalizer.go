package ingest

import (
	"fmt"
	"strings"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/pkg/logger"
)

// RawKpi is one KPI as extracted from a document, before
// normalization and validation. Confidence is the extractor's own
// estimate; zero means the extractor reported none.
type RawKpi struct {
	Ticker     string               `json:"ticker"`
	Period     string               `json:"period"`
	Metric     string               `json:"metric"`
	Value      float64              `json:"value"`
	Unit       string               `json:"unit,omitempty"`
	Confidence float64              `json:"confidence,omitempty"`
	Provenance contracts.Provenance `json:"provenance"`
}

// metricRule is the plausibility envelope for a metric
type metricRule struct {
	min, max   float64
	unit       string
	confidence float64
}

// metricRules: values outside the envelope are kept but flagged for
// review rather than dropped; a real outlier quarter does happen.
var metricRules = map[string]metricRule{
	"revenue":          {min: 0, max: 1000, unit: "B", confidence: 0.85},
	"eps":              {min: -10, max: 50, unit: "USD", confidence: 0.85},
	"gross_margin":     {min: 0, max: 1, unit: "ratio", confidence: 0.80},
	"operating_margin": {min: -1, max: 1, unit: "ratio", confidence: 0.80},
	"net_margin":       {min: -1, max: 1, unit: "ratio", confidence: 0.80},
}

// unknownMetricConfidence applies to metrics without a rule when the
// extractor reported no confidence of its own
const unknownMetricConfidence = 0.70

// minConfidence is the extraction confidence below which a fact is
// flagged for review
const minConfidence = 0.70

// Normalizer turns raw extracted KPIs into validated facts
type Normalizer struct {
	logger *logger.Logger
}

// NewNormalizer creates a normalizer
func NewNormalizer(log *logger.Logger) *Normalizer {
	return &Normalizer{logger: log}
}

// Normalize validates one raw KPI. Missing required fields (empty
// ticker, unparseable period, missing metric) are hard errors; a bad
// ticker format, low extraction confidence or plausibility problems
// flag the fact for review instead.
func (n *Normalizer) Normalize(raw RawKpi) (contracts.KpiFact, error) {
	ticker := contracts.NormalizeTicker(raw.Ticker)
	if ticker == "" {
		return contracts.KpiFact{}, fmt.Errorf("ticker required")
	}
	period := contracts.NormalizePeriod(raw.Period)
	if !contracts.ValidPeriod(period) {
		return contracts.KpiFact{}, fmt.Errorf("invalid period %q", raw.Period)
	}
	metric := strings.ToLower(strings.TrimSpace(raw.Metric))
	if metric == "" {
		return contracts.KpiFact{}, fmt.Errorf("metric required")
	}

	fact := contracts.KpiFact{
		Ticker:     ticker,
		Period:     period,
		Metric:     metric,
		Value:      raw.Value,
		Unit:       raw.Unit,
		Confidence: raw.Confidence,
		Provenance: raw.Provenance,
	}

	if !contracts.ValidTicker(ticker) {
		fact.NeedsReview = true
		fact.ReviewReasons = append(fact.ReviewReasons, fmt.Sprintf("ticker %q has unexpected format", raw.Ticker))
	}
	if raw.Confidence > 0 && raw.Confidence < minConfidence {
		fact.NeedsReview = true
		fact.ReviewReasons = append(fact.ReviewReasons,
			fmt.Sprintf("extraction confidence %.2f below %.2f", raw.Confidence, minConfidence))
	}

	rule, known := metricRules[metric]
	if !known {
		if fact.Confidence == 0 {
			fact.Confidence = unknownMetricConfidence
		}
		fact.NeedsReview = true
		fact.ReviewReasons = append(fact.ReviewReasons, fmt.Sprintf("unknown metric %q", metric))
		return fact, nil
	}

	if fact.Confidence == 0 {
		fact.Confidence = rule.confidence
	}
	if fact.Unit == "" {
		fact.Unit = rule.unit
	}
	if raw.Value < rule.min || raw.Value > rule.max {
		fact.NeedsReview = true
		fact.ReviewReasons = append(fact.ReviewReasons,
			fmt.Sprintf("%s value %g outside [%g, %g]", metric, raw.Value, rule.min, rule.max))
	}
	if fact.Unit != rule.unit {
		fact.NeedsReview = true
		fact.ReviewReasons = append(fact.ReviewReasons,
			fmt.Sprintf("unexpected unit %q for %s, want %q", fact.Unit, metric, rule.unit))
	}
	return fact, nil
}

// NormalizeAll validates a batch, keeping valid facts and collecting
// per-KPI errors for the rejected ones.
func (n *Normalizer) NormalizeAll(raws []RawKpi) ([]contracts.KpiFact, []error) {
	facts := make([]contracts.KpiFact, 0, len(raws))
	var errs []error
	for i, raw := range raws {
		fact, err := n.Normalize(raw)
		if err != nil {
			n.logger.WithError(err).WithField("index", i).Warn("KPI rejected")
			errs = append(errs, fmt.Errorf("kpi %d: %w", i, err))
			continue
		}
		facts = append(facts, fact)
	}
	return facts, errs
}
