package contracts

import "time"

// Action is a trading decision
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal is a gated trading decision for a ticker/period.
// Mutable only by replacement; the cached signal for a ticker is
// overwritten on every decision cycle, blocked ones included.
type Signal struct {
	Ticker        string     `json:"ticker"`
	Period        string     `json:"period"`
	Action        Action     `json:"action"`
	Confidence    float64    `json:"confidence"`
	Reasons       []string   `json:"reasons"`
	Citations     []Citation `json:"citations"`
	BlockedReason string     `json:"blocked_reason,omitempty"`
	GeneratedAt   time.Time  `json:"generated_at"`

	// Diagnostic detail carried for audit; not part of the identity.
	OverallScore float64            `json:"overall_score"`
	MetricScores map[string]float64 `json:"metric_scores,omitempty"`
}

// Blocked reports whether the signal carries a block reason
func (s *Signal) Blocked() bool {
	return s.BlockedReason != ""
}
