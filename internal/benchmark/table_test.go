package benchmark

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/pkg/logger"
)

func TestSurprise(t *testing.T) {
	table := New(logger.Nop())

	t.Run("beat", func(t *testing.T) {
		s := table.Surprise("AAPL", "2025-Q3", "revenue", 94.93)
		require.NotNil(t, s)
		assert.InDelta(t, (94.93-92.27)/92.27, *s, 1e-9)
	})

	t.Run("no consensus", func(t *testing.T) {
		assert.Nil(t, table.Surprise("TSLA", "2025-Q3", "revenue", 25.0))
	})

	t.Run("zero consensus", func(t *testing.T) {
		table.Add(contracts.ConsensusEntry{
			Ticker: "NVDA", Period: "2025-Q3", Metric: "revenue",
			ConsensusValue: 0, Unit: "B",
		})
		assert.Nil(t, table.Surprise("NVDA", "2025-Q3", "revenue", 30.0))
	})
}

func TestEnrich(t *testing.T) {
	table := New(logger.Nop())

	facts := []contracts.KpiFact{
		{Ticker: "AAPL", Period: "2025-Q3", Metric: "eps", Value: 1.64},
		{Ticker: "AAPL", Period: "2025-Q3", Metric: "net_margin", Value: 0.25},
	}
	table.Enrich(facts)

	require.NotNil(t, facts[0].Consensus)
	assert.Equal(t, 1.57, *facts[0].Consensus)
	require.NotNil(t, facts[0].Surprise)
	assert.InDelta(t, (1.64-1.57)/1.57, *facts[0].Surprise, 1e-9)

	assert.Nil(t, facts[1].Consensus)
	assert.Nil(t, facts[1].Surprise)
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "consensus.csv")
	csv := "ticker,period,metric,consensus_value,unit\n" +
		"amzn,2025-Q3,revenue,158.4,B\n" +
		"AAPL,2025-Q3,revenue,93.00,B\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	table := New(logger.Nop())
	require.NoError(t, table.LoadCSV(path, false))

	e, ok := table.Get("AMZN", "2025-Q3", "revenue")
	require.True(t, ok)
	assert.Equal(t, 158.4, e.ConsensusValue)

	// upload replaces the built-in seed entry
	e, ok = table.Get("AAPL", "2025-Q3", "revenue")
	require.True(t, ok)
	assert.Equal(t, 93.00, e.ConsensusValue)
}

func TestLoadCSVErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing optional file", func(t *testing.T) {
		table := New(logger.Nop())
		assert.NoError(t, table.LoadCSV(filepath.Join(dir, "absent.csv"), true))
		assert.NotZero(t, table.Len())
	})

	t.Run("missing required file", func(t *testing.T) {
		table := New(logger.Nop())
		assert.Error(t, table.LoadCSV(filepath.Join(dir, "absent.csv"), false))
	})

	t.Run("missing column", func(t *testing.T) {
		path := filepath.Join(dir, "bad_header.csv")
		require.NoError(t, os.WriteFile(path, []byte("ticker,period\nAAPL,2025-Q3\n"), 0o644))
		table := New(logger.Nop())
		assert.Error(t, table.LoadCSV(path, false))
	})

	t.Run("bad value keeps table untouched", func(t *testing.T) {
		path := filepath.Join(dir, "bad_value.csv")
		content := "ticker,period,metric,consensus_value,unit\nAAPL,2025-Q3,revenue,not-a-number,B\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		table := New(logger.Nop())
		before := table.Len()
		assert.Error(t, table.LoadCSV(path, false))
		assert.Equal(t, before, table.Len())
	})
}
