package extract

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/internal/ingest"
	"github.com/wonny/earnsight/pkg/logger"
)

// Extractor pulls structured records out of HTML filings. It expects
// the tabular layout earnings pages and margin notices are published
// in: a header row naming the columns, one record per body row.
type Extractor struct {
	logger *logger.Logger
}

// New creates an extractor
func New(log *logger.Logger) *Extractor {
	return &Extractor{logger: log}
}

// Confidence assigned to values read from well-formed tables; rows
// from tables without a unit column get the lower estimate. An
// explicit confidence column overrides both.
const (
	tableConfidence      = 0.90
	looseTableConfidence = 0.75
)

// Financials extracts KPI rows from an earnings page. A table
// qualifies when its header includes metric and value columns; ticker
// and period fall back to the document-level values when the table
// has no such columns.
func (e *Extractor) Financials(r io.Reader, docID, ticker, period string) ([]ingest.RawKpi, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var kpis []ingest.RawKpi
	doc.Find("table").Each(func(tableIdx int, table *goquery.Selection) {
		cols := headerColumns(table)
		metricCol, hasMetric := cols["metric"]
		valueCol, hasValue := cols["value"]
		if !hasMetric || !hasValue {
			return
		}

		table.Find("tbody tr, tr").Each(func(rowIdx int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() <= valueCol || cells.Length() <= metricCol {
				return
			}

			metric := cellText(cells, metricCol)
			value, err := parseNumber(cellText(cells, valueCol))
			if metric == "" || err != nil {
				return
			}

			kpi := ingest.RawKpi{
				Ticker:     ticker,
				Period:     period,
				Metric:     normalizeMetricName(metric),
				Value:      value,
				Confidence: tableConfidence,
				Provenance: contracts.Provenance{
					Doc:   docID,
					Table: fmt.Sprintf("table_%d", tableIdx),
					Row:   rowIdx,
					Col:   valueCol,
				},
			}
			if col, ok := cols["ticker"]; ok && cells.Length() > col {
				kpi.Ticker = cellText(cells, col)
			}
			if col, ok := cols["period"]; ok && cells.Length() > col {
				kpi.Period = cellText(cells, col)
			}
			if col, ok := cols["unit"]; ok && cells.Length() > col {
				kpi.Unit = cellText(cells, col)
			} else {
				// no unit column leaves more room for misreads
				kpi.Confidence = looseTableConfidence
			}
			if col, ok := cols["confidence"]; ok && cells.Length() > col {
				// extraction services publish their own estimate per row
				if conf, cerr := strconv.ParseFloat(cellText(cells, col), 64); cerr == nil {
					kpi.Confidence = conf
				}
			}
			kpis = append(kpis, kpi)
		})
	})

	e.logger.WithFields(map[string]interface{}{
		"doc_id": docID,
		"kpis":   len(kpis),
	}).Debug("Financial extraction complete")
	return kpis, nil
}

// ComplianceRules extracts margin rules from a regulatory notice.
// Tables qualify on rule_id, maintenance_margin and effective_date
// columns; scope is either a class name or a comma list of tickers.
func (e *Extractor) ComplianceRules(r io.Reader, docID string) ([]contracts.ComplianceRule, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var rules []contracts.ComplianceRule
	var rowErr error
	doc.Find("table").Each(func(tableIdx int, table *goquery.Selection) {
		cols := headerColumns(table)
		idCol, hasID := cols["rule_id"]
		maintCol, hasMaint := cols["maintenance_margin"]
		dateCol, hasDate := cols["effective_date"]
		if !hasID || !hasMaint || !hasDate {
			return
		}

		table.Find("tbody tr, tr").Each(func(rowIdx int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() <= idCol || cells.Length() <= maintCol || cells.Length() <= dateCol {
				return
			}

			rule := contracts.ComplianceRule{
				RuleID:     cellText(cells, idCol),
				Confidence: 0.90,
				Provenance: contracts.Provenance{
					Doc:   docID,
					Table: fmt.Sprintf("table_%d", tableIdx),
					Row:   rowIdx,
				},
			}
			if rule.RuleID == "" {
				return
			}

			maintenance, perr := parsePercent(cellText(cells, maintCol))
			if perr != nil {
				rowErr = fmt.Errorf("rule %s maintenance margin: %w", rule.RuleID, perr)
				return
			}
			rule.MaintenanceMargin = maintenance
			if col, ok := cols["initial_margin"]; ok && cells.Length() > col {
				initial, perr := parsePercent(cellText(cells, col))
				if perr != nil {
					rowErr = fmt.Errorf("rule %s initial margin: %w", rule.RuleID, perr)
					return
				}
				rule.InitialMargin = initial
			}
			effective, perr := time.Parse("2006-01-02", cellText(cells, dateCol))
			if perr != nil {
				rowErr = fmt.Errorf("rule %s effective date: %w", rule.RuleID, perr)
				return
			}
			rule.EffectiveDate = effective

			if col, ok := cols["scope"]; ok && cells.Length() > col {
				scope := cellText(cells, col)
				if strings.Contains(scope, ",") {
					for _, t := range strings.Split(scope, ",") {
						rule.ScopeTickers = append(rule.ScopeTickers, contracts.NormalizeTicker(t))
					}
				} else {
					rule.ScopeClass = strings.ToUpper(scope)
				}
			}
			rules = append(rules, rule)
		})
	})
	if rowErr != nil {
		return nil, rowErr
	}

	e.logger.WithFields(map[string]interface{}{
		"doc_id": docID,
		"rules":  len(rules),
	}).Debug("Compliance extraction complete")
	return rules, nil
}

// headerColumns maps normalized header names to column indexes
func headerColumns(table *goquery.Selection) map[string]int {
	cols := make(map[string]int)
	table.Find("tr").First().Find("th").Each(func(i int, th *goquery.Selection) {
		name := normalizeMetricName(th.Text())
		if name != "" {
			cols[name] = i
		}
	})
	return cols
}

func cellText(cells *goquery.Selection, col int) string {
	return strings.TrimSpace(cells.Eq(col).Text())
}

func normalizeMetricName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	s = strings.TrimPrefix(s, "$")
	return strconv.ParseFloat(s, 64)
}

func parsePercent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, err
		}
		return v / 100, nil
	}
	return strconv.ParseFloat(s, 64)
}
