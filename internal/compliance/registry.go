package compliance

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/pkg/logger"
)

// classTickers maps a scope class from a regulatory notice to the
// tickers it covers. Static until a reference-data feed replaces it.
var classTickers = map[string][]string{
	"TECH-LARGE":    {"AAPL", "MSFT", "GOOGL", "AMZN", "META", "TSLA"},
	"TECH-MID":      {"NFLX", "AMD", "INTC", "CRM", "ADBE"},
	"FINANCE-LARGE": {"JPM", "BAC", "GS", "MS", "WFC"},
	"HEALTHCARE":    {"JNJ", "PFE", "UNH", "ABBV"},
	"ENERGY":        {"XOM", "CVX", "COP"},
}

// Registry holds margin rules extracted from regulatory notices.
// A rule is identified by RuleID; re-ingesting a notice replaces the
// previous version of each rule it carries.
type Registry struct {
	mu     sync.RWMutex
	rules  map[string]contracts.ComplianceRule
	logger *logger.Logger
}

// New creates an empty registry
func New(log *logger.Logger) *Registry {
	return &Registry{
		rules:  make(map[string]contracts.ComplianceRule),
		logger: log,
	}
}

// Add inserts or replaces rules by RuleID and returns, per added rule,
// the previous version if one existed.
func (r *Registry) Add(rules ...contracts.ComplianceRule) []Replaced {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced := make([]Replaced, 0, len(rules))
	for _, rule := range rules {
		prev, existed := r.rules[rule.RuleID]
		r.rules[rule.RuleID] = rule

		rep := Replaced{Rule: rule}
		if existed {
			p := prev
			rep.Previous = &p
		}
		replaced = append(replaced, rep)

		r.logger.WithFields(map[string]interface{}{
			"rule_id":  rule.RuleID,
			"replaced": existed,
		}).Info("Compliance rule registered")
	}
	return replaced
}

// Replaced pairs a newly registered rule with the version it displaced
type Replaced struct {
	Rule     contracts.ComplianceRule
	Previous *contracts.ComplianceRule
}

// Rules returns all registered rules ordered by RuleID
func (r *Registry) Rules() []contracts.ComplianceRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contracts.ComplianceRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}

// RulesFor returns every rule whose scope covers the ticker,
// effective or not, ordered by RuleID.
func (r *Registry) RulesFor(ticker string) []contracts.ComplianceRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []contracts.ComplianceRule
	for _, rule := range r.rules {
		if ruleCovers(rule, ticker) {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}

// ActiveFor returns the effective rule with the highest maintenance
// margin for the ticker, the binding constraint when several overlap.
func (r *Registry) ActiveFor(ticker string, now time.Time) (contracts.ComplianceRule, bool) {
	var best contracts.ComplianceRule
	var found bool
	for _, rule := range r.RulesFor(ticker) {
		if !rule.Effective(now) {
			continue
		}
		if !found || rule.MaintenanceMargin > best.MaintenanceMargin {
			best = rule
			found = true
		}
	}
	return best, found
}

// ActiveMargins lists the maintenance margins of every rule in force
// for the ticker right now, ordered by RuleID. Satisfies the risk
// gate's margin lookup; the gate must vet each one, not just the
// tightest.
func (r *Registry) ActiveMargins(ticker string) []float64 {
	now := time.Now().UTC()
	var margins []float64
	for _, rule := range r.RulesFor(ticker) {
		if rule.Effective(now) {
			margins = append(margins, rule.MaintenanceMargin)
		}
	}
	return margins
}

// TickersFor resolves the tickers a rule covers: the union of its
// explicit tickers and its scope class.
func TickersFor(rule contracts.ComplianceRule) []string {
	out := make([]string, 0, len(rule.ScopeTickers))
	seen := make(map[string]struct{}, len(rule.ScopeTickers))
	for _, t := range rule.ScopeTickers {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range classTickers[rule.ScopeClass] {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func ruleCovers(rule contracts.ComplianceRule, ticker string) bool {
	for _, t := range TickersFor(rule) {
		if t == ticker {
			return true
		}
	}
	return false
}

// BuildAlert renders a per-ticker alert for a newly registered rule
func BuildAlert(rep Replaced, ticker string, guidance string) contracts.ComplianceAlert {
	rule := rep.Rule

	msg := fmt.Sprintf("Margin requirement update: initial %.0f%%, maintenance %.0f%%, effective %s",
		rule.InitialMargin*100, rule.MaintenanceMargin*100,
		rule.EffectiveDate.Format("2006-01-02"))
	if rep.Previous != nil {
		msg = fmt.Sprintf("Margin requirement change: maintenance %.0f%% -> %.0f%%, effective %s",
			rep.Previous.MaintenanceMargin*100, rule.MaintenanceMargin*100,
			rule.EffectiveDate.Format("2006-01-02"))
	}

	alert := contracts.ComplianceAlert{
		Ticker:           ticker,
		RuleID:           rule.RuleID,
		Message:          msg,
		EffectiveDate:    rule.EffectiveDate,
		ExposureGuidance: guidance,
		Confidence:       rule.Confidence,
	}
	if rule.Provenance.Doc != "" {
		alert.Citations = []contracts.Citation{{
			Doc:   rule.Provenance.Doc,
			Page:  rule.Provenance.Page,
			Table: rule.Provenance.Table,
			Text:  rule.RuleID,
		}}
	}
	return alert
}

// Summary aggregates the registry for the compliance dashboard
type Summary struct {
	TotalRules    int                        `json:"total_rules"`
	ActiveRules   int                        `json:"active_rules"`
	UpcomingRules int                        `json:"upcoming_rules"`
	ByClass       map[string]int             `json:"by_class"`
	Rules         []contracts.ComplianceRule `json:"rules"`
}

// Summarize builds a point-in-time view of the registry
func (r *Registry) Summarize(now time.Time) Summary {
	rules := r.Rules()
	s := Summary{
		TotalRules: len(rules),
		ByClass:    make(map[string]int),
		Rules:      rules,
	}
	for _, rule := range rules {
		if rule.Effective(now) {
			s.ActiveRules++
		} else {
			s.UpcomingRules++
		}
		if rule.ScopeClass != "" {
			s.ByClass[rule.ScopeClass]++
		}
	}
	return s
}
