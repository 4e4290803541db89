package searchindex

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/pkg/logger"
)

// Scoring weights. The combined score is capped at 1.0.
const (
	weightBase       = 0.5 // token/substring relevance
	weightTicker     = 0.3 // exact ticker match
	weightMetric     = 0.2 // metric-name match
	weightConfidence = 0.1 // scaled by extraction confidence
)

// Meta carries the provenance of a search hit
type Meta struct {
	Ticker string `json:"ticker"`
	Period string `json:"period"`
	Metric string `json:"metric"`
	Doc    string `json:"doc"`
	Page   int    `json:"page"`
	Table  string `json:"table"`
}

// Result is one ranked search hit
type Result struct {
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	Metadata Meta    `json:"metadata"`
}

type entry struct {
	text       string
	lowerText  string
	ticker     string
	metric     string
	confidence float64
	meta       Meta
}

// Index is a lexical+numeric index over the feature store, rebuilt
// after every upsert batch. Search is eventually consistent with the
// store at batch granularity.
type Index struct {
	mu      sync.RWMutex
	entries []entry
	logger  *logger.Logger
}

// New creates an empty index
func New(log *logger.Logger) *Index {
	return &Index{logger: log}
}

// Rebuild replaces the index contents from a store snapshot. The new
// generation is built off-lock and swapped in atomically; on failure
// the previous generation is retained.
func (idx *Index) Rebuild(facts []contracts.KpiFact) {
	entries := make([]entry, 0, len(facts))
	for _, fact := range facts {
		text := fmt.Sprintf("%s %s %s %g %s",
			fact.Ticker, fact.Period, fact.Metric, fact.Value, fact.Unit)

		entries = append(entries, entry{
			text:       text,
			lowerText:  strings.ToLower(text),
			ticker:     strings.ToLower(fact.Ticker),
			metric:     strings.ToLower(fact.Metric),
			confidence: fact.Confidence,
			meta: Meta{
				Ticker: fact.Ticker,
				Period: fact.Period,
				Metric: fact.Metric,
				Doc:    fact.Provenance.Doc,
				Page:   fact.Provenance.Page,
				Table:  fact.Provenance.Table,
			},
		})
	}

	idx.mu.Lock()
	idx.entries = entries
	idx.mu.Unlock()

	idx.logger.WithField("entries", len(entries)).Debug("Search index rebuilt")
}

// Search returns up to limit results ranked by descending score, ties
// broken by insertion order.
func (idx *Index) Search(query string, limit int) []Result {
	tokens := tokenize(query)
	if len(tokens) == 0 || limit <= 0 {
		return nil
	}

	idx.mu.RLock()
	entries := idx.entries
	idx.mu.RUnlock()

	var results []Result
	for _, e := range entries {
		score := score(e, tokens)
		if score <= 0 {
			continue
		}
		results = append(results, Result{
			Text:     e.text,
			Score:    score,
			Metadata: e.meta,
		})
	}

	// stable: ties keep insertion order
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// score combines substring relevance, exact ticker and metric bonuses
// and a confidence contribution, capped at 1.0. An entry with no token
// match scores zero regardless of bonuses.
func score(e entry, tokens []string) float64 {
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(e.lowerText, tok) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	s := weightBase * float64(matched) / float64(len(tokens))

	for _, tok := range tokens {
		if tok == e.ticker {
			s += weightTicker
			break
		}
	}
	for _, tok := range tokens {
		if tok == e.metric || strings.Contains(e.metric, tok) {
			s += weightMetric
			break
		}
	}

	s += weightConfidence * e.confidence

	if s > 1.0 {
		s = 1.0
	}
	return s
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := fields[:0]
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
