package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aapl", "AAPL"},
		{" msft ", "MSFT"},
		{"BRK.A", "BRK"},
		{"tsla.US", "TSLA"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTicker(tt.in), "NormalizeTicker(%q)", tt.in)
	}
}

func TestNormalizePeriod(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025 Q3", "2025-Q3"},
		{"2025-Q3", "2025-Q3"},
		{"2025q3", "2025-Q3"},
		{"Q3 2025", "2025-Q3"},
		{"2025 quarter 3", "2025-Q3"},
		{"2025", "2025"},
		{"fy2025", "FY2025"}, // unrecognized, passed through uppercased
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePeriod(tt.in), "NormalizePeriod(%q)", tt.in)
	}
}

func TestParsePeriod(t *testing.T) {
	year, quarter, ok := ParsePeriod("2025-Q3")
	assert.True(t, ok)
	assert.Equal(t, 2025, year)
	assert.Equal(t, 3, quarter)

	year, quarter, ok = ParsePeriod("2024")
	assert.True(t, ok)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 0, quarter)

	_, _, ok = ParsePeriod("Q3-2025")
	assert.False(t, ok)
}

func TestClassifySignificance(t *testing.T) {
	tests := []struct {
		name     string
		deltaPct float64
		metric   string
		want     Significance
	}{
		{"revenue at material boundary", 0.05, "revenue", SignificanceMaterial},
		{"revenue just below material", 0.0499, "revenue", SignificanceMinor},
		{"revenue at minor boundary", 0.02, "revenue", SignificanceMinor},
		{"revenue negligible", 0.019, "revenue", SignificanceNegligible},
		{"eps material", 0.10, "eps", SignificanceMaterial},
		{"eps minor", 0.05, "eps", SignificanceMinor},
		{"diluted eps uses eps class", 0.10, "diluted_eps", SignificanceMaterial},
		{"margin material", 0.03, "gross_margin", SignificanceMaterial},
		{"margin minor", 0.01, "operating_margin", SignificanceMinor},
		{"negative delta uses magnitude", -0.06, "revenue", SignificanceMaterial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySignificance(tt.deltaPct, tt.metric))
		})
	}
}

func TestClassifyComparison(t *testing.T) {
	tests := []struct {
		current  string
		previous string
		want     ComparisonType
	}{
		{"2025-Q3", "2024-Q3", ComparisonYoY},
		{"2025-Q3", "2025-Q2", ComparisonQoQ},
		{"2025-Q1", "2024-Q4", ComparisonOther},
		{"2025-Q3", "2023-Q3", ComparisonOther},
		{"2025", "2024", ComparisonOther}, // annual periods have no quarter pair
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyComparison(tt.current, tt.previous),
			"ClassifyComparison(%q, %q)", tt.current, tt.previous)
	}
}

func TestSubscriptionHasChannel(t *testing.T) {
	sub := Subscription{UserID: "trader1", Ticker: "AAPL", Channels: []Channel{ChannelPush, ChannelChat}}
	assert.True(t, sub.HasChannel(ChannelPush))
	assert.False(t, sub.HasChannel(ChannelMail))
}
