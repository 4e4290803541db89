package rulecfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/earnsight/pkg/logger"
)

func TestDefaultIsValid(t *testing.T) {
	rules := Default()
	require.NoError(t, rules.Validate())
	assert.Equal(t, 0.4, rules.Signal.Weights["eps"])
	assert.Equal(t, 0.70, rules.Gate.MinConfidence)
	assert.NotEmpty(t, rules.Hash())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Rules)
	}{
		{"empty weights", func(r *Rules) { r.Signal.Weights = nil }},
		{"negative weight", func(r *Rules) { r.Signal.Weights["eps"] = -0.1 }},
		{"unordered thresholds", func(r *Rules) { r.Signal.EPS.WeakBeat = 0.10 }},
		{"positive miss threshold", func(r *Rules) {
			r.Signal.Revenue.WeakMiss = 0.005
			r.Signal.Revenue.StrongMiss = 0.001
		}},
		{"zero margin delta", func(r *Rules) { r.Signal.MarginDelta = 0 }},
		{"positive sell threshold", func(r *Rules) { r.Signal.SellThreshold = 0.1 }},
		{"zero max reasons", func(r *Rules) { r.Signal.MaxReasons = 0 }},
		{"confidence out of range", func(r *Rules) { r.Gate.MinConfidence = 1.5 }},
		{"review ratio out of range", func(r *Rules) { r.Gate.MaxReviewRatio = -0.1 }},
		{"negative margin buffer", func(r *Rules) { r.Gate.MarginBuffer = -0.01 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := Default()
			tt.mutate(rules)
			assert.Error(t, rules.Validate())
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
signal:
  buy_threshold: 0.4
gate:
  min_confidence: 0.75
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := Load(path, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0.4, rules.Signal.BuyThreshold)
	assert.Equal(t, 0.75, rules.Gate.MinConfidence)
	// omitted fields keep defaults
	assert.Equal(t, -0.3, rules.Signal.SellThreshold)
	assert.Equal(t, 0.20, rules.Gate.MaxReviewRatio)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
signal:
  buy_treshold: 0.4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path, logger.Nop())
	assert.Error(t, err)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	rules, err := Load("", logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, Default().Hash(), rules.Hash())
}

func TestHashChangesWithRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signal:\n  buy_threshold: 0.5\n"), 0o644))

	rules, err := Load(path, logger.Nop())
	require.NoError(t, err)
	assert.NotEqual(t, Default().Hash(), rules.Hash())
}
