package featurestore

import (
	"sort"
	"sync"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/pkg/logger"
)

// Store is the in-memory KPI feature store, keyed by
// (ticker, period, metric). Last write wins per key; batches are not
// atomic with respect to readers, individual replacements are.
// SSOT: live KPI facts are held only here.
type Store struct {
	mu     sync.RWMutex
	facts  map[string]map[string]map[string]contracts.KpiFact // ticker -> period -> metric
	logger *logger.Logger

	// onUpdate is invoked synchronously after every upsert batch with a
	// full snapshot, outside the store lock. Used to rebuild the search
	// index at batch granularity.
	onUpdate func([]contracts.KpiFact)
}

// New creates an empty feature store
func New(log *logger.Logger) *Store {
	return &Store{
		facts:  make(map[string]map[string]map[string]contracts.KpiFact),
		logger: log,
	}
}

// OnUpdate registers the post-upsert hook. Must be called before the
// store is shared between goroutines.
func (s *Store) OnUpdate(fn func([]contracts.KpiFact)) {
	s.onUpdate = fn
}

// Upsert replaces facts by identity key. Readers may observe a
// partially applied batch; each single replacement is atomic.
func (s *Store) Upsert(facts []contracts.KpiFact) {
	for _, fact := range facts {
		s.mu.Lock()
		periods, ok := s.facts[fact.Ticker]
		if !ok {
			periods = make(map[string]map[string]contracts.KpiFact)
			s.facts[fact.Ticker] = periods
		}
		metrics, ok := periods[fact.Period]
		if !ok {
			metrics = make(map[string]contracts.KpiFact)
			periods[fact.Period] = metrics
		}
		metrics[fact.Metric] = fact
		s.mu.Unlock()
	}

	s.logger.WithFields(map[string]interface{}{
		"count": len(facts),
	}).Debug("Upserted KPI facts")

	if s.onUpdate != nil {
		s.onUpdate(s.Snapshot())
	}
}

// Get returns the fact for an exact (ticker, metric, period) key
func (s *Store) Get(ticker, metric, period string) (contracts.KpiFact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fact, ok := s.facts[ticker][period][metric]
	return fact, ok
}

// Latest returns the facts of the ticker's greatest period, keyed by
// metric. Periods are normalized to YYYY or YYYY-Qn, so the
// lexicographic maximum is also the chronological maximum within each
// form.
func (s *Store) Latest(ticker string) map[string]contracts.KpiFact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	periods, ok := s.facts[ticker]
	if !ok || len(periods) == 0 {
		return map[string]contracts.KpiFact{}
	}

	latest := ""
	for period := range periods {
		if period > latest {
			latest = period
		}
	}

	out := make(map[string]contracts.KpiFact, len(periods[latest]))
	for metric, fact := range periods[latest] {
		out[metric] = fact
	}
	return out
}

// Deltas compares the given period against the immediately preceding
// period in sorted order for that ticker, per metric present in both.
// A zero previous value yields no record for that metric.
func (s *Store) Deltas(ticker, period string) []contracts.DeltaRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	periods, ok := s.facts[ticker]
	if !ok {
		return nil
	}

	sorted := make([]string, 0, len(periods))
	for p := range periods {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	idx := -1
	for i, p := range sorted {
		if p == period {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return nil
	}

	prevPeriod := sorted[idx-1]
	current := periods[period]
	previous := periods[prevPeriod]

	metrics := make([]string, 0, len(current))
	for metric := range current {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	var deltas []contracts.DeltaRecord
	for _, metric := range metrics {
		curFact := current[metric]
		prevFact, ok := previous[metric]
		if !ok {
			continue
		}
		if prevFact.Value == 0 {
			// division by zero: skip, do not emit a zero/NaN record
			continue
		}

		deltaAbs := curFact.Value - prevFact.Value
		deltaPct := deltaAbs / prevFact.Value

		deltas = append(deltas, contracts.DeltaRecord{
			Ticker:         ticker,
			Period:         period,
			Metric:         metric,
			CurrentValue:   curFact.Value,
			PreviousValue:  prevFact.Value,
			PreviousPeriod: prevPeriod,
			DeltaAbs:       deltaAbs,
			DeltaPct:       deltaPct,
			ComparisonType: contracts.ClassifyComparison(period, prevPeriod),
			Significance:   contracts.ClassifySignificance(deltaPct, metric),
			Provenance:     curFact.Provenance,
		})
	}

	return deltas
}

// History returns all facts for (ticker, metric) in ascending period order
func (s *Store) History(ticker, metric string) []contracts.KpiFact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	periods, ok := s.facts[ticker]
	if !ok {
		return nil
	}

	sorted := make([]string, 0, len(periods))
	for p := range periods {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var history []contracts.KpiFact
	for _, p := range sorted {
		if fact, ok := periods[p][metric]; ok {
			history = append(history, fact)
		}
	}
	return history
}

// Tickers returns all tickers present in the store, sorted
func (s *Store) Tickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickers := make([]string, 0, len(s.facts))
	for t := range s.facts {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// Periods returns the ticker's periods in ascending order
func (s *Store) Periods(ticker string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	periods, ok := s.facts[ticker]
	if !ok {
		return nil
	}

	sorted := make([]string, 0, len(periods))
	for p := range periods {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)
	return sorted
}

// Snapshot returns a copy of every fact, ordered by ticker, period,
// metric. Safe to use without holding the store lock.
func (s *Store) Snapshot() []contracts.KpiFact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []contracts.KpiFact
	tickers := make([]string, 0, len(s.facts))
	for t := range s.facts {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, t := range tickers {
		periods := make([]string, 0, len(s.facts[t]))
		for p := range s.facts[t] {
			periods = append(periods, p)
		}
		sort.Strings(periods)

		for _, p := range periods {
			metrics := make([]string, 0, len(s.facts[t][p]))
			for m := range s.facts[t][p] {
				metrics = append(metrics, m)
			}
			sort.Strings(metrics)

			for _, m := range metrics {
				out = append(out, s.facts[t][p][m])
			}
		}
	}

	return out
}
