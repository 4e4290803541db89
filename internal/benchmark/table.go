package benchmark

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/pkg/logger"
)

// Table holds street consensus estimates keyed by (ticker, period,
// metric). Reads vastly outnumber writes; writes happen on seed load
// and on admin uploads.
type Table struct {
	mu      sync.RWMutex
	entries map[string]contracts.ConsensusEntry
	logger  *logger.Logger
}

// New creates a table pre-populated with the built-in seed
func New(log *logger.Logger) *Table {
	t := &Table{
		entries: make(map[string]contracts.ConsensusEntry),
		logger:  log,
	}
	for _, e := range defaultSeed {
		t.entries[key(e.Ticker, e.Period, e.Metric)] = e
	}
	return t
}

// defaultSeed keeps the pipeline usable before any consensus upload
var defaultSeed = []contracts.ConsensusEntry{
	{Ticker: "AAPL", Period: "2025-Q3", Metric: "revenue", ConsensusValue: 92.27, Unit: "B"},
	{Ticker: "AAPL", Period: "2025-Q3", Metric: "eps", ConsensusValue: 1.57, Unit: "USD"},
	{Ticker: "AAPL", Period: "2025-Q3", Metric: "gross_margin", ConsensusValue: 0.455, Unit: "ratio"},
	{Ticker: "MSFT", Period: "2025-Q3", Metric: "revenue", ConsensusValue: 64.50, Unit: "B"},
	{Ticker: "MSFT", Period: "2025-Q3", Metric: "eps", ConsensusValue: 3.10, Unit: "USD"},
	{Ticker: "GOOGL", Period: "2025-Q3", Metric: "revenue", ConsensusValue: 86.30, Unit: "B"},
	{Ticker: "GOOGL", Period: "2025-Q3", Metric: "eps", ConsensusValue: 2.12, Unit: "USD"},
}

func key(ticker, period, metric string) string {
	return ticker + "|" + period + "|" + metric
}

// LoadCSV merges consensus rows from a CSV file with header
// ticker,period,metric,consensus_value,unit. Existing entries with the
// same key are replaced. Missing file is not an error when optional.
func (t *Table) LoadCSV(path string, optional bool) error {
	f, err := os.Open(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			t.logger.WithField("path", path).Debug("Consensus seed file absent, using defaults")
			return nil
		}
		return fmt.Errorf("open consensus seed: %w", err)
	}
	defer f.Close()

	n, err := t.LoadReader(f)
	if err != nil {
		return err
	}
	t.logger.WithFields(map[string]interface{}{
		"path": path,
		"rows": n,
	}).Info("Consensus seed loaded")
	return nil
}

// LoadReader merges consensus rows from CSV content, returning the
// number of rows applied. The table is untouched on error.
func (t *Table) LoadReader(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read consensus header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"ticker", "period", "metric", "consensus_value"} {
		if _, ok := col[required]; !ok {
			return 0, fmt.Errorf("consensus seed missing column %q", required)
		}
	}

	staged := make([]contracts.ConsensusEntry, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read consensus row: %w", err)
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(record[col["consensus_value"]]), 64)
		if err != nil {
			return 0, fmt.Errorf("consensus value %q: %w", record[col["consensus_value"]], err)
		}

		entry := contracts.ConsensusEntry{
			Ticker:         contracts.NormalizeTicker(record[col["ticker"]]),
			Period:         contracts.NormalizePeriod(record[col["period"]]),
			Metric:         strings.ToLower(strings.TrimSpace(record[col["metric"]])),
			ConsensusValue: value,
		}
		if i, ok := col["unit"]; ok && i < len(record) {
			entry.Unit = strings.TrimSpace(record[i])
		}
		if !contracts.ValidTicker(entry.Ticker) || !contracts.ValidPeriod(entry.Period) {
			return 0, fmt.Errorf("consensus row has invalid key %s/%s", entry.Ticker, entry.Period)
		}
		staged = append(staged, entry)
	}

	t.mu.Lock()
	for _, e := range staged {
		t.entries[key(e.Ticker, e.Period, e.Metric)] = e
	}
	t.mu.Unlock()
	return len(staged), nil
}

// Add inserts or replaces consensus entries
func (t *Table) Add(entries ...contracts.ConsensusEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		t.entries[key(e.Ticker, e.Period, e.Metric)] = e
	}
}

// Get returns the consensus entry for a key
func (t *Table) Get(ticker, period, metric string) (contracts.ConsensusEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[key(ticker, period, metric)]
	return e, ok
}

// Surprise computes (actual - consensus) / consensus. It returns nil
// when no consensus exists or the consensus value is zero.
func (t *Table) Surprise(ticker, period, metric string, actual float64) *float64 {
	e, ok := t.Get(ticker, period, metric)
	if !ok || e.ConsensusValue == 0 {
		return nil
	}
	s := (actual - e.ConsensusValue) / e.ConsensusValue
	return &s
}

// Enrich fills Consensus and Surprise on each fact in place
func (t *Table) Enrich(facts []contracts.KpiFact) {
	for i := range facts {
		f := &facts[i]
		e, ok := t.Get(f.Ticker, f.Period, f.Metric)
		if !ok {
			f.Consensus = nil
			f.Surprise = nil
			continue
		}
		consensus := e.ConsensusValue
		f.Consensus = &consensus
		f.Surprise = t.Surprise(f.Ticker, f.Period, f.Metric, f.Value)
	}
}

// Len reports the number of consensus entries
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
