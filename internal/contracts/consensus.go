package contracts

// ConsensusEntry is one analyst-consensus expectation, keyed like a
// KpiFact by (ticker, period, metric). Read-only lookup data.
type ConsensusEntry struct {
	Ticker         string  `json:"ticker"`
	Period         string  `json:"period"`
	Metric         string  `json:"metric"`
	ConsensusValue float64 `json:"consensus_value"`
	Unit           string  `json:"unit"`
}
