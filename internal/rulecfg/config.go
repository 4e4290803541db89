package rulecfg

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Rules is the SSOT for signal scoring and risk gating. All tunable
// thresholds live here; engines read them, they never hard-code them.
type Rules struct {
	Signal SignalRules `yaml:"signal"`
	Gate   GateRules   `yaml:"gate"`

	hash string
}

// SignalRules drives metric scoring and the final action decision
type SignalRules struct {
	// Weights per metric, renormalized over the metrics present
	Weights map[string]float64 `yaml:"weights"`

	// Surprise thresholds, strong/weak on each side
	EPS     SurpriseThresholds `yaml:"eps"`
	Revenue SurpriseThresholds `yaml:"revenue"`

	// Margin scoring uses the relative QoQ delta rather than surprise
	MarginDelta float64 `yaml:"margin_delta"`

	BuyThreshold  float64 `yaml:"buy_threshold"`
	SellThreshold float64 `yaml:"sell_threshold"`

	MaxReasons   int `yaml:"max_reasons"`
	MaxCitations int `yaml:"max_citations"`
}

// SurpriseThresholds maps surprise magnitude to score strength
type SurpriseThresholds struct {
	StrongBeat float64 `yaml:"strong_beat"`
	WeakBeat   float64 `yaml:"weak_beat"`
	WeakMiss   float64 `yaml:"weak_miss"`
	StrongMiss float64 `yaml:"strong_miss"`
}

// GateRules drives the pre-publication risk gate
type GateRules struct {
	MinConfidence      float64 `yaml:"min_confidence"`
	MaxReviewRatio     float64 `yaml:"max_review_ratio"`
	MinQualityConf     float64 `yaml:"min_quality_confidence"`
	MaxLowQualityRatio float64 `yaml:"max_low_quality_ratio"`
	MarginBuffer       float64 `yaml:"margin_buffer"`
}

// Default returns the built-in ruleset used when no YAML is provided
func Default() *Rules {
	r := &Rules{
		Signal: SignalRules{
			Weights: map[string]float64{
				"eps":              0.4,
				"revenue":          0.3,
				"gross_margin":     0.2,
				"operating_margin": 0.1,
			},
			EPS: SurpriseThresholds{
				StrongBeat: 0.05, WeakBeat: 0.02,
				WeakMiss: -0.02, StrongMiss: -0.05,
			},
			Revenue: SurpriseThresholds{
				StrongBeat: 0.03, WeakBeat: 0.01,
				WeakMiss: -0.01, StrongMiss: -0.03,
			},
			MarginDelta:   0.02,
			BuyThreshold:  0.3,
			SellThreshold: -0.3,
			MaxReasons:    5,
			MaxCitations:  3,
		},
		Gate: GateRules{
			MinConfidence:      0.70,
			MaxReviewRatio:     0.20,
			MinQualityConf:     0.80,
			MaxLowQualityRatio: 0.20,
			MarginBuffer:       0.05,
		},
	}
	r.hash = hashRules(r)
	return r
}

// Validate rejects rulesets that would make the engines misbehave
func (r *Rules) Validate() error {
	if len(r.Signal.Weights) == 0 {
		return fmt.Errorf("signal.weights must not be empty")
	}
	var sum float64
	for metric, w := range r.Signal.Weights {
		if w < 0 {
			return fmt.Errorf("signal.weights.%s must be >= 0, got %v", metric, w)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("signal.weights must sum to a positive value")
	}

	for name, th := range map[string]SurpriseThresholds{
		"eps":     r.Signal.EPS,
		"revenue": r.Signal.Revenue,
	} {
		if !(th.StrongBeat > th.WeakBeat && th.WeakBeat > th.WeakMiss && th.WeakMiss > th.StrongMiss) {
			return fmt.Errorf("signal.%s thresholds must be strictly ordered strong_beat > weak_beat > weak_miss > strong_miss", name)
		}
		if th.WeakBeat <= 0 || th.WeakMiss >= 0 {
			return fmt.Errorf("signal.%s beat thresholds must be positive and miss thresholds negative", name)
		}
	}

	if r.Signal.MarginDelta <= 0 {
		return fmt.Errorf("signal.margin_delta must be > 0, got %v", r.Signal.MarginDelta)
	}
	if r.Signal.BuyThreshold <= 0 || r.Signal.SellThreshold >= 0 {
		return fmt.Errorf("signal buy_threshold must be > 0 and sell_threshold < 0")
	}
	if r.Signal.MaxReasons <= 0 || r.Signal.MaxCitations <= 0 {
		return fmt.Errorf("signal max_reasons and max_citations must be > 0")
	}

	g := r.Gate
	if g.MinConfidence < 0 || g.MinConfidence > 1 {
		return fmt.Errorf("gate.min_confidence must be in [0,1], got %v", g.MinConfidence)
	}
	for name, ratio := range map[string]float64{
		"max_review_ratio":      g.MaxReviewRatio,
		"max_low_quality_ratio": g.MaxLowQualityRatio,
	} {
		if ratio < 0 || ratio > 1 {
			return fmt.Errorf("gate.%s must be in [0,1], got %v", name, ratio)
		}
	}
	if g.MinQualityConf < 0 || g.MinQualityConf > 1 {
		return fmt.Errorf("gate.min_quality_confidence must be in [0,1], got %v", g.MinQualityConf)
	}
	if g.MarginBuffer < 0 {
		return fmt.Errorf("gate.margin_buffer must be >= 0, got %v", g.MarginBuffer)
	}
	return nil
}

// Hash returns a stable fingerprint of the ruleset, logged at startup
// so a signal can always be traced back to the rules that produced it.
func (r *Rules) Hash() string {
	return r.hash
}

func hashRules(r *Rules) string {
	h := sha256.New()
	fmt.Fprintf(h, "%+v|%+v", r.Signal, r.Gate)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
