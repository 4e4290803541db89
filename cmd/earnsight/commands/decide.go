package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/earnsight/internal/ingest"
)

// decideCmd represents the decide command
var decideCmd = &cobra.Command{
	Use:   "decide <ticker>",
	Short: "Print the gated signal for a ticker",
	Long: `Computes and prints the current trading signal for one ticker.

With --doc, the document is ingested first so the decision reflects
the fresh facts.

Example:
  go run ./cmd/earnsight decide AAPL
  go run ./cmd/earnsight decide AAPL --doc ./testdata/aapl_q3.json`,
	Args: cobra.ExactArgs(1),
	RunE: runDecide,
}

var decideDoc string

func init() {
	rootCmd.AddCommand(decideCmd)

	decideCmd.Flags().StringVar(&decideDoc, "doc", "", "Financial document (JSON) to ingest first")
}

func runDecide(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ticker := args[0]

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if decideDoc != "" {
		var doc ingest.FinancialDoc
		if err := readJSONFile(decideDoc, &doc); err != nil {
			return err
		}
		result, err := a.pipeline.IngestFinancial(ctx, doc)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		fmt.Printf("📄 Ingested %s: %d facts\n", doc.DocID, result.FactCount)
		printSignal(ticker, result)
		return nil
	}

	sig, ok := a.pipeline.Signal(ctx, ticker)
	if !ok {
		return fmt.Errorf("no signal for %s: ingest a document first", ticker)
	}

	fmt.Printf("=== Signal: %s (%s) ===\n", sig.Ticker, sig.Period)
	if sig.Blocked() {
		fmt.Printf("❌ BLOCKED (%s)\n", sig.BlockedReason)
	} else {
		fmt.Printf("✅ %s\n", sig.Action)
	}
	fmt.Printf("  Confidence: %.2f\n", sig.Confidence)
	fmt.Printf("  Score:      %+.3f\n", sig.OverallScore)
	for _, reason := range sig.Reasons {
		fmt.Printf("  • %s\n", reason)
	}
	for _, c := range sig.Citations {
		fmt.Printf("  📎 %s p.%d %s\n", c.Doc, c.Page, c.Table)
	}
	return nil
}
