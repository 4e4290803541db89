package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/earnsight/internal/ingest"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "One-shot document ingestion",
	Long: `Ingests a single document from a JSON file and prints the result.

Document kinds:
- financial:  earnings release with raw KPI rows
- compliance: regulatory notice with margin rules

Example:
  go run ./cmd/earnsight ingest financial ./testdata/aapl_q3.json
  go run ./cmd/earnsight ingest compliance ./testdata/finra_notice.json`,
}

var (
	ingestFinancialCmd = &cobra.Command{
		Use:   "financial <file>",
		Short: "Ingest an earnings document",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngestFinancial,
	}

	ingestComplianceCmd = &cobra.Command{
		Use:   "compliance <file>",
		Short: "Ingest a regulatory notice",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngestCompliance,
	}
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestFinancialCmd)
	ingestCmd.AddCommand(ingestComplianceCmd)
}

func runIngestFinancial(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var doc ingest.FinancialDoc
	if err := readJSONFile(args[0], &doc); err != nil {
		return err
	}

	fmt.Println("=== Financial Ingestion ===")
	fmt.Printf("📄 Document: %s (%s %s)\n", doc.DocID, doc.Ticker, doc.Period)

	result, err := a.pipeline.IngestFinancial(ctx, doc)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("✅ Stored %d facts", result.FactCount)
	if len(result.Rejected) > 0 {
		fmt.Printf(" (%d rows rejected)", len(result.Rejected))
	}
	fmt.Println()
	for _, reason := range result.Rejected {
		fmt.Printf("  ⚠️  %s\n", reason)
	}

	if result.Signal != nil {
		printSignal(result.Signal.Ticker, result)
	}
	return nil
}

func runIngestCompliance(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var doc ingest.ComplianceDoc
	if err := readJSONFile(args[0], &doc); err != nil {
		return err
	}

	fmt.Println("=== Compliance Ingestion ===")
	fmt.Printf("📄 Document: %s (%d rules)\n", doc.DocID, len(doc.Rules))

	result, err := a.pipeline.IngestCompliance(ctx, doc)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("✅ Registered %d rules\n", result.Rules)
	for _, alert := range result.Alerts {
		fmt.Printf("  🚨 %s [%s]: %s\n", alert.Ticker, alert.RuleID, alert.Message)
	}
	return nil
}

func readJSONFile(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func printSignal(ticker string, result *ingest.FinancialResult) {
	sig := result.Signal

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Printf("              SIGNAL: %s\n", ticker)
	fmt.Println(strings.Repeat("=", 50))

	if sig.Blocked() {
		fmt.Printf("❌ BLOCKED (%s)\n", sig.BlockedReason)
	} else {
		fmt.Printf("✅ %s\n", sig.Action)
	}
	fmt.Printf("  Confidence: %.2f\n", sig.Confidence)
	fmt.Printf("  Score:      %+.3f\n", sig.OverallScore)
	if !result.GateResult.Approved {
		fmt.Printf("  Gate:       held back (%s)\n", result.GateResult.Reason)
	}
	for _, reason := range sig.Reasons {
		fmt.Printf("  • %s\n", reason)
	}
	for _, c := range sig.Citations {
		fmt.Printf("  📎 %s p.%d %s\n", c.Doc, c.Page, c.Table)
	}
}
