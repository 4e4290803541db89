package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/internal/featurestore"
	"github.com/wonny/earnsight/internal/rulecfg"
	"github.com/wonny/earnsight/pkg/logger"
)

// BlockedNoData marks a decision made with no facts at all
const BlockedNoData = "no_data"

// metricOrder fixes evaluation order so reasons and citations come out
// deterministic for the same inputs.
var metricOrder = []string{"eps", "revenue", "gross_margin", "operating_margin"}

// Engine turns stored KPI facts into a trading decision. It is
// stateless between calls; everything it reads comes from the feature
// store and the ruleset.
type Engine struct {
	store  *featurestore.Store
	rules  *rulecfg.Rules
	logger *logger.Logger
}

// New creates a signal engine
func New(store *featurestore.Store, rules *rulecfg.Rules, log *logger.Logger) *Engine {
	return &Engine{store: store, rules: rules, logger: log}
}

type metricScore struct {
	metric string
	score  float64
	fact   contracts.KpiFact
	reason string
}

// Decide scores a ticker/period and returns an ungated signal.
// Surprise-based metrics score against their consensus surprise, margin
// metrics against their prior-period delta; a metric whose input is
// missing still participates with score 0 and an explanatory reason.
// Only a ticker with no facts at all yields the no_data block reason.
func (e *Engine) Decide(ticker, period string) *contracts.Signal {
	sig := &contracts.Signal{
		Ticker:      ticker,
		Period:      period,
		Action:      contracts.ActionHold,
		GeneratedAt: time.Now().UTC(),
	}

	deltas := make(map[string]contracts.DeltaRecord)
	for _, d := range e.store.Deltas(ticker, period) {
		deltas[d.Metric] = d
	}

	var scores []metricScore
	for _, metric := range metricOrder {
		if _, weighted := e.rules.Signal.Weights[metric]; !weighted {
			continue
		}
		fact, ok := e.store.Get(ticker, metric, period)
		if !ok {
			continue
		}
		scores = append(scores, e.scoreMetric(metric, fact, deltas))
	}

	if len(scores) == 0 {
		sig.BlockedReason = BlockedNoData
		sig.Reasons = []string{fmt.Sprintf("no kpi facts for %s %s", ticker, period)}
		return sig
	}

	// weighted average over the metrics that actually scored
	var weightSum, weighted float64
	for _, ms := range scores {
		w := e.rules.Signal.Weights[ms.metric]
		weightSum += w
		weighted += w * ms.score
	}
	overall := weighted / weightSum

	sig.OverallScore = overall
	sig.MetricScores = make(map[string]float64, len(scores))
	for _, ms := range scores {
		sig.MetricScores[ms.metric] = ms.score
	}

	switch {
	case overall >= e.rules.Signal.BuyThreshold:
		sig.Action = contracts.ActionBuy
	case overall <= e.rules.Signal.SellThreshold:
		sig.Action = contracts.ActionSell
	}

	sig.Confidence = e.confidence(overall, scores)
	sig.Reasons = e.reasons(overall, scores)
	sig.Citations = e.citations(scores)

	e.logger.WithFields(map[string]interface{}{
		"ticker":     ticker,
		"period":     period,
		"action":     string(sig.Action),
		"score":      overall,
		"confidence": sig.Confidence,
	}).Debug("Signal decided")
	return sig
}

func (e *Engine) scoreMetric(metric string, fact contracts.KpiFact, deltas map[string]contracts.DeltaRecord) metricScore {
	switch metric {
	case "eps":
		return e.scoreSurprise(metric, fact, e.rules.Signal.EPS)
	case "revenue":
		return e.scoreSurprise(metric, fact, e.rules.Signal.Revenue)
	default:
		d, ok := deltas[metric]
		if !ok {
			return metricScore{
				metric: metric,
				fact:   fact,
				reason: fmt.Sprintf("%s delta not available", metric),
			}
		}
		return e.scoreMarginDelta(metric, fact, d)
	}
}

func (e *Engine) scoreSurprise(metric string, fact contracts.KpiFact, th rulecfg.SurpriseThresholds) metricScore {
	if fact.Surprise == nil {
		return metricScore{
			metric: metric,
			fact:   fact,
			reason: fmt.Sprintf("%s data incomplete, no consensus", metric),
		}
	}
	surprise := *fact.Surprise

	var score float64
	switch {
	case surprise >= th.StrongBeat:
		score = 1.0
	case surprise >= th.WeakBeat:
		score = 0.5
	case surprise <= th.StrongMiss:
		score = -1.0
	case surprise <= th.WeakMiss:
		score = -0.5
	}

	var reason string
	switch {
	case score == 0:
		reason = fmt.Sprintf("%s in line with consensus (%+.1f%%)", metric, surprise*100)
	case surprise < 0:
		reason = fmt.Sprintf("%s missed consensus by %.1f%%", metric, math.Abs(surprise*100))
	default:
		reason = fmt.Sprintf("%s beat consensus by %.1f%%", metric, surprise*100)
	}

	return metricScore{metric: metric, score: score, fact: fact, reason: reason}
}

func (e *Engine) scoreMarginDelta(metric string, fact contracts.KpiFact, d contracts.DeltaRecord) metricScore {
	var score float64
	switch {
	case d.DeltaPct >= e.rules.Signal.MarginDelta:
		score = 0.5
	case d.DeltaPct <= -e.rules.Signal.MarginDelta:
		score = -0.5
	}

	direction := "expanded"
	if d.DeltaPct < 0 {
		direction = "contracted"
	}
	reason := fmt.Sprintf("%s %s %+.1f%% vs %s", metric, direction, d.DeltaPct*100, d.PreviousPeriod)

	return metricScore{metric: metric, score: score, fact: fact, reason: reason}
}

// confidence blends signal strength, extraction quality and cross-metric
// agreement: 0.4*min(|score|,1) + 0.3*mean(fact confidence) + 0.3*consistency.
func (e *Engine) confidence(overall float64, scores []metricScore) float64 {
	strength := math.Min(math.Abs(overall), 1.0)

	var confSum float64
	for _, ms := range scores {
		confSum += ms.fact.Confidence
	}
	dataQuality := confSum / float64(len(scores))

	consistency := 1.0
	if len(scores) > 1 {
		var variance float64
		for _, ms := range scores {
			d := ms.score - overall
			variance += d * d
		}
		variance /= float64(len(scores))
		consistency = math.Max(0, 1-variance)
	}

	return 0.4*strength + 0.3*dataQuality + 0.3*consistency
}

func (e *Engine) reasons(overall float64, scores []metricScore) []string {
	reasons := make([]string, 0, len(scores)+1)
	reasons = append(reasons, fmt.Sprintf("weighted score %+.2f across %d metrics", overall, len(scores)))
	for _, ms := range scores {
		reasons = append(reasons, ms.reason)
	}
	if max := e.rules.Signal.MaxReasons; len(reasons) > max {
		reasons = reasons[:max]
	}
	return reasons
}

func (e *Engine) citations(scores []metricScore) []contracts.Citation {
	seen := make(map[string]struct{}, len(scores))
	citations := make([]contracts.Citation, 0, len(scores))
	for _, ms := range scores {
		p := ms.fact.Provenance
		if p.Doc == "" {
			continue
		}
		dedupe := fmt.Sprintf("%s|%d|%s", p.Doc, p.Page, p.Table)
		if _, dup := seen[dedupe]; dup {
			continue
		}
		seen[dedupe] = struct{}{}
		citations = append(citations, contracts.Citation{
			Doc:   p.Doc,
			Page:  p.Page,
			Table: p.Table,
			Text:  fmt.Sprintf("%s %s %s", ms.fact.Ticker, ms.fact.Period, ms.fact.Metric),
		})
		if len(citations) == e.rules.Signal.MaxCitations {
			break
		}
	}
	return citations
}
