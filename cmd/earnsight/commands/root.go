package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "earnsight",
	Short: "Earnings copilot - document ingestion to gated trading signals",
	Long: `Earnsight Unified CLI

Turns earnings documents and regulatory notices into KPI facts,
period deltas, searchable citations and risk-gated trading signals,
with per-user push/chat notifications.

Usage:
  go run ./cmd/earnsight [command]

Examples:
  go run ./cmd/earnsight api
  go run ./cmd/earnsight ingest financial ./testdata/aapl_q3.json
  go run ./cmd/earnsight decide AAPL --doc ./testdata/aapl_q3.json`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
