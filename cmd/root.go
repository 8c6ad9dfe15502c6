package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"ledgerpipe/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "ledgerpipe",
	Short: "Ledger pipeline - process accounting documents into journals",
	Long: `Ledgerpipe runs accounting source documents (invoices, bills,
credit notes) through a multi-stage ledger pipeline: currency
enrichment, exception routing with human-review handoff, double-entry
posting and bank reconciliation.

State lives in a single YAML ledger file that each run loads, mutates
and saves back, so documents parked for human review survive between
runs.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
