package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/earnsight/pkg/logger"
)

const earningsPage = `
<html><body>
<h1>Apple Q3 2025 Results</h1>
<table>
  <tr><th>Metric</th><th>Value</th><th>Unit</th></tr>
  <tr><td>Revenue</td><td>$94,930</td><td>M</td></tr>
  <tr><td>EPS</td><td>1.64</td><td>USD</td></tr>
  <tr><td>Gross Margin</td><td>0.46</td><td>ratio</td></tr>
  <tr><td>Forward Guidance</td><td>n/a</td><td></td></tr>
</table>
<table>
  <tr><th>Segment</th><th>Share</th></tr>
  <tr><td>iPhone</td><td>52%</td></tr>
</table>
</body></html>`

func TestFinancials(t *testing.T) {
	ex := New(logger.Nop())

	kpis, err := ex.Financials(strings.NewReader(earningsPage), "aapl_q3.html", "AAPL", "2025-Q3")
	require.NoError(t, err)
	require.Len(t, kpis, 3) // unparseable value row and non-KPI table skipped

	assert.Equal(t, "revenue", kpis[0].Metric)
	assert.Equal(t, 94930.0, kpis[0].Value)
	assert.Equal(t, "M", kpis[0].Unit)
	assert.Equal(t, "AAPL", kpis[0].Ticker)
	assert.Equal(t, tableConfidence, kpis[0].Confidence)
	assert.Equal(t, "aapl_q3.html", kpis[0].Provenance.Doc)

	assert.Equal(t, "eps", kpis[1].Metric)
	assert.Equal(t, "gross_margin", kpis[2].Metric)
}

func TestFinancialsConfidenceColumns(t *testing.T) {
	ex := New(logger.Nop())

	page := `<html><body>
	<table>
	  <tr><th>Metric</th><th>Value</th><th>Unit</th><th>Confidence</th></tr>
	  <tr><td>EPS</td><td>1.64</td><td>USD</td><td>0.95</td></tr>
	</table>
	<table>
	  <tr><th>Metric</th><th>Value</th></tr>
	  <tr><td>Revenue</td><td>94930</td></tr>
	</table>
	</body></html>`

	kpis, err := ex.Financials(strings.NewReader(page), "doc.html", "AAPL", "2025-Q3")
	require.NoError(t, err)
	require.Len(t, kpis, 2)

	// explicit column wins
	assert.Equal(t, 0.95, kpis[0].Confidence)
	// no unit column lowers the estimate
	assert.Equal(t, looseTableConfidence, kpis[1].Confidence)
}

const marginNotice = `
<html><body>
<table>
  <tr><th>Rule ID</th><th>Scope</th><th>Initial Margin</th><th>Maintenance Margin</th><th>Effective Date</th></tr>
  <tr><td>MARGIN-2025-11</td><td>TECH-LARGE</td><td>40%</td><td>30%</td><td>2025-11-01</td></tr>
  <tr><td>MARGIN-2025-12</td><td>AAPL, NVDA</td><td>0.45</td><td>0.35</td><td>2025-12-01</td></tr>
</table>
</body></html>`

func TestComplianceRules(t *testing.T) {
	ex := New(logger.Nop())

	rules, err := ex.ComplianceRules(strings.NewReader(marginNotice), "notice.html")
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "MARGIN-2025-11", rules[0].RuleID)
	assert.Equal(t, "TECH-LARGE", rules[0].ScopeClass)
	assert.InDelta(t, 0.40, rules[0].InitialMargin, 1e-9)
	assert.InDelta(t, 0.30, rules[0].MaintenanceMargin, 1e-9)
	assert.Equal(t, "2025-11-01", rules[0].EffectiveDate.Format("2006-01-02"))

	assert.Equal(t, []string{"AAPL", "NVDA"}, rules[1].ScopeTickers)
	assert.Empty(t, rules[1].ScopeClass)
}

func TestComplianceRulesBadRow(t *testing.T) {
	ex := New(logger.Nop())
	bad := `<table>
	  <tr><th>Rule ID</th><th>Maintenance Margin</th><th>Effective Date</th></tr>
	  <tr><td>MARGIN-X</td><td>soon</td><td>2025-11-01</td></tr>
	</table>`

	_, err := ex.ComplianceRules(strings.NewReader(bad), "notice.html")
	assert.Error(t, err)
}
