package contracts

import "time"

// ComplianceRule is a margin-requirement rule extracted from a
// regulatory document. Rules are appended or replaced by RuleID;
// there is no deletion.
type ComplianceRule struct {
	RuleID            string     `json:"rule_id"`
	ScopeClass        string     `json:"scope_class,omitempty"`
	ScopeTickers      []string   `json:"scope_tickers"`
	InitialMargin     float64    `json:"initial_margin"`
	MaintenanceMargin float64    `json:"maintenance_margin"`
	EffectiveDate     time.Time  `json:"effective_date"`
	Provenance        Provenance `json:"provenance"`
	Confidence        float64    `json:"confidence"`
}

// Effective reports whether the rule is in force at the given time
func (r ComplianceRule) Effective(now time.Time) bool {
	return !r.EffectiveDate.After(now)
}

// ComplianceAlert is the outward-facing notification built when a
// rule lands or changes.
type ComplianceAlert struct {
	Ticker           string     `json:"ticker"`
	Message          string     `json:"message"`
	EffectiveDate    time.Time  `json:"effective_date"`
	Citations        []Citation `json:"citations"`
	ExposureGuidance string     `json:"exposure_guidance,omitempty"`
	RuleID           string     `json:"rule_id"`
	Confidence       float64    `json:"confidence"`
}
