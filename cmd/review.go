package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"ledgerpipe/internal/config"
	"ledgerpipe/internal/fixtures"
	"ledgerpipe/internal/ledger"
	"ledgerpipe/internal/logger"
	"ledgerpipe/internal/pipeline"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Resolve documents pending human review",
	Long: `Resolve a document parked in REVIEW_PENDING. Both actions require
the single-use token issued when the document was routed to review;
they fail if the document is missing or no longer pending, so duplicate
resume calls conflict instead of silently succeeding.`,
}

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Approve a pending document as-is",
	Example: `  ledgerpipe review approve --doc-id DOC-INV-0002 --token 3f1c...`,
	RunE:    runApprove,
}

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Apply corrected field values to a pending document",
	Example: `  ledgerpipe review correct --doc-id DOC-INV-0002 --token 3f1c... --fx-rate 0.0003`,
	RunE:    runCorrect,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(approveCmd)
	reviewCmd.AddCommand(correctCmd)

	for _, c := range []*cobra.Command{approveCmd, correctCmd} {
		c.Flags().String("ledger", "", "Path to the ledger YAML file (default: LEDGER_FILE)")
		c.Flags().String("doc-id", "", "Document id to resolve")
		c.Flags().String("token", "", "Single-use review token")
		_ = c.MarkFlagRequired("doc-id")
		_ = c.MarkFlagRequired("token")
	}

	correctCmd.Flags().String("currency", "", "Corrected currency code")
	correctCmd.Flags().Float64("fx-rate", 0, "Corrected FX rate to base currency")
	correctCmd.Flags().Float64("total", 0, "Corrected document total")
	correctCmd.Flags().String("issue-date", "", "Corrected issue date (YYYY-MM-DD)")
}

func runApprove(cmd *cobra.Command, args []string) error {
	return resolveReview(cmd, func(store *ledger.Store, docID, token string) error {
		return pipeline.ApproveReview(store, docID, token)
	}, "approved")
}

func runCorrect(cmd *cobra.Command, args []string) error {
	var fixes pipeline.FieldOverrides

	if cmd.Flags().Changed("currency") {
		v, _ := cmd.Flags().GetString("currency")
		fixes.Currency = &v
	}
	if cmd.Flags().Changed("fx-rate") {
		v, _ := cmd.Flags().GetFloat64("fx-rate")
		fixes.FXRate = &v
	}
	if cmd.Flags().Changed("total") {
		v, _ := cmd.Flags().GetFloat64("total")
		fixes.Total = &v
	}
	if cmd.Flags().Changed("issue-date") {
		raw, _ := cmd.Flags().GetString("issue-date")
		date, err := ledger.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("invalid --issue-date: %w", err)
		}
		fixes.IssueDate = &date
	}

	return resolveReview(cmd, func(store *ledger.Store, docID, token string) error {
		return pipeline.CorrectReview(store, docID, token, fixes)
	}, "corrected")
}

func resolveReview(cmd *cobra.Command, apply func(*ledger.Store, string, string) error, verb string) error {
	log := logger.WithComponent("review")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ledgerPath, _ := cmd.Flags().GetString("ledger")
	if ledgerPath == "" {
		ledgerPath = cfg.LedgerFile
	}
	docID, _ := cmd.Flags().GetString("doc-id")
	token, _ := cmd.Flags().GetString("token")

	store, err := fixtures.Load(ledgerPath)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	if err := apply(store, docID, token); err != nil {
		return fmt.Errorf("review action failed for %s: %w", docID, err)
	}
	if err := fixtures.Save(ledgerPath, store); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}

	log.Info().
		Str("doc_id", docID).
		Str("ledger", ledgerPath).
		Msg("Document " + verb + " and re-queued for posting")
	return nil
}
