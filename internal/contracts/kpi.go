package contracts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Provenance points at the exact location a value was extracted from
type Provenance struct {
	Doc   string `json:"doc"`
	Page  int    `json:"page"`
	Table string `json:"table"`
	Row   int    `json:"row"`
	Col   int    `json:"col"`
}

// Citation justifies a metric or signal claim
type Citation struct {
	Doc   string `json:"doc"`
	Page  int    `json:"page"`
	Table string `json:"table"`
	Text  string `json:"text"`
}

// KpiFact is one extracted financial metric value for a ticker/period.
// Identity key is (ticker, period, metric); later upserts with the same
// key fully replace the prior value.
type KpiFact struct {
	Ticker        string     `json:"ticker"`
	Period        string     `json:"period"`
	Metric        string     `json:"metric"`
	Value         float64    `json:"value"`
	Unit          string     `json:"unit"`
	Confidence    float64    `json:"confidence"`
	NeedsReview   bool       `json:"needs_review"`
	ReviewReasons []string   `json:"review_reasons,omitempty"`
	Consensus     *float64   `json:"consensus,omitempty"`
	Surprise      *float64   `json:"surprise,omitempty"`
	Provenance    Provenance `json:"provenance"`
	ExtractedAt   time.Time  `json:"extracted_at"`
}

// Key returns the identity key of the fact
func (f KpiFact) Key() KpiKey {
	return KpiKey{Ticker: f.Ticker, Period: f.Period, Metric: f.Metric}
}

// KpiKey identifies a fact by (ticker, period, metric)
type KpiKey struct {
	Ticker string
	Period string
	Metric string
}

func (k KpiKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Ticker, k.Period, k.Metric)
}

var (
	tickerRe  = regexp.MustCompile(`^[A-Z]{1,5}$`)
	yearRe    = regexp.MustCompile(`^\d{4}$`)
	periodRe  = regexp.MustCompile(`^\d{4}-Q[1-4]$`)
	quarterRe = []struct {
		pattern *regexp.Regexp
		year    int // submatch index of the year
		quarter int // submatch index of the quarter
	}{
		{regexp.MustCompile(`^(\d{4})\s*[-_ ]?\s*Q([1-4])$`), 1, 2},
		{regexp.MustCompile(`^Q([1-4])\s*[-_ ]?\s*(\d{4})$`), 2, 1},
		{regexp.MustCompile(`^(\d{4})\s*QUARTER\s*([1-4])$`), 1, 2},
	}
)

// NormalizeTicker uppercases, trims and strips common exchange suffixes
func NormalizeTicker(ticker string) string {
	normalized := strings.ToUpper(strings.TrimSpace(ticker))

	suffixes := []string{".US", ".N", ".O", ".A"}
	for _, suffix := range suffixes {
		if strings.HasSuffix(normalized, suffix) {
			normalized = strings.TrimSuffix(normalized, suffix)
			break
		}
	}

	return normalized
}

// ValidTicker reports whether a ticker matches the 1-5 uppercase letter format
func ValidTicker(ticker string) bool {
	return tickerRe.MatchString(ticker)
}

// NormalizePeriod converts period strings to YYYY or YYYY-Qn form.
// Unrecognized inputs are returned uppercased and trimmed as-is.
func NormalizePeriod(period string) string {
	p := strings.ToUpper(strings.TrimSpace(period))
	if p == "" {
		return ""
	}

	for _, qr := range quarterRe {
		if m := qr.pattern.FindStringSubmatch(p); m != nil {
			return fmt.Sprintf("%s-Q%s", m[qr.year], m[qr.quarter])
		}
	}

	if yearRe.MatchString(p) {
		return p
	}

	return p
}

// ValidPeriod reports whether a period is in normalized YYYY or YYYY-Qn form
func ValidPeriod(period string) bool {
	return yearRe.MatchString(period) || periodRe.MatchString(period)
}

// ParsePeriod splits a normalized period into year and quarter.
// quarter is 0 for annual periods; ok is false for malformed input.
func ParsePeriod(period string) (year, quarter int, ok bool) {
	if yearRe.MatchString(period) {
		year, _ = strconv.Atoi(period)
		return year, 0, true
	}
	if periodRe.MatchString(period) {
		year, _ = strconv.Atoi(period[:4])
		quarter, _ = strconv.Atoi(period[6:])
		return year, quarter, true
	}
	return 0, 0, false
}
