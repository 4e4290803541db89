package contracts

import (
	"math"
	"strings"
)

// ComparisonType classifies a period-over-period comparison
type ComparisonType string

const (
	ComparisonYoY   ComparisonType = "yoy"
	ComparisonQoQ   ComparisonType = "qoq"
	ComparisonOther ComparisonType = "other"
)

// Significance buckets a delta by magnitude for its metric class
type Significance string

const (
	SignificanceMaterial   Significance = "material"
	SignificanceMinor      Significance = "minor"
	SignificanceNegligible Significance = "negligible"
)

// DeltaRecord is the change between a fact and its chronologically
// preceding fact for the same (ticker, metric). Derived on demand,
// never stored.
type DeltaRecord struct {
	Ticker         string         `json:"ticker"`
	Period         string         `json:"period"`
	Metric         string         `json:"metric"`
	CurrentValue   float64        `json:"current_value"`
	PreviousValue  float64        `json:"previous_value"`
	PreviousPeriod string         `json:"previous_period"`
	DeltaAbs       float64        `json:"delta_abs"`
	DeltaPct       float64        `json:"delta_pct"`
	ComparisonType ComparisonType `json:"comparison_type"`
	Significance   Significance   `json:"significance"`
	Provenance     Provenance     `json:"provenance"`
}

// significance thresholds per metric class: material, minor
var significanceThresholds = map[string][2]float64{
	"revenue": {0.05, 0.02},
	"eps":     {0.10, 0.05},
	"margin":  {0.03, 0.01},
}

// metricClass maps a metric name to its significance class
func metricClass(metric string) string {
	m := strings.ToLower(metric)
	switch {
	case strings.Contains(m, "eps"):
		return "eps"
	case strings.Contains(m, "margin"):
		return "margin"
	default:
		return "revenue"
	}
}

// ClassifySignificance buckets deltaPct for the given metric
func ClassifySignificance(deltaPct float64, metric string) Significance {
	absDelta := math.Abs(deltaPct)
	thresh := significanceThresholds[metricClass(metric)]

	switch {
	case absDelta >= thresh[0]:
		return SignificanceMaterial
	case absDelta >= thresh[1]:
		return SignificanceMinor
	default:
		return SignificanceNegligible
	}
}

// ClassifyComparison determines whether the two periods form a
// year-over-year or quarter-over-quarter pair.
func ClassifyComparison(current, previous string) ComparisonType {
	curYear, curQ, okCur := ParsePeriod(current)
	prevYear, prevQ, okPrev := ParsePeriod(previous)
	if !okCur || !okPrev || curQ == 0 || prevQ == 0 {
		return ComparisonOther
	}

	switch {
	case curYear-prevYear == 1 && curQ == prevQ:
		return ComparisonYoY
	case curYear == prevYear:
		return ComparisonQoQ
	default:
		return ComparisonOther
	}
}
