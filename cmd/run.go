package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"ledgerpipe/internal/config"
	"ledgerpipe/internal/fixtures"
	"ledgerpipe/internal/ledger"
	"ledgerpipe/internal/logger"
	"ledgerpipe/internal/oracle"
	"ledgerpipe/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ledger processing pipeline",
	Long: `Run validation, exception routing, posting and reconciliation over
the ledger file. Documents routed to human review stay REVIEW_PENDING
until resolved with 'ledgerpipe review'; they re-enter posting on a
later run.

Set OPENAI_API_KEY to enable the explanation, posting-verification and
fuzzy-matching capabilities; without it the pipeline uses offline
fallbacks.`,
	Example: `  # Process the default ledger file
  ledgerpipe run

  # Process a specific file without saving results
  ledgerpipe run --ledger books/2025-10.yaml --dry-run`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("ledger", "", "Path to the ledger YAML file (default: LEDGER_FILE)")
	runCmd.Flags().Bool("dry-run", false, "Process but don't save the ledger file")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("run")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ledgerPath, _ := cmd.Flags().GetString("ledger")
	if ledgerPath == "" {
		ledgerPath = cfg.LedgerFile
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	log.Info().
		Str("ledger", ledgerPath).
		Str("base_currency", cfg.BaseCurrency).
		Bool("dry_run", dryRun).
		Bool("oracles_enabled", cfg.OpenAIAPIKey != "").
		Msg("Starting ledger pipeline")

	store, err := fixtures.Load(ledgerPath)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	caps := oracle.NewSuite(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OracleTimeout)
	p := pipeline.New(store, caps, pipeline.Config{
		BaseCurrency:         cfg.BaseCurrency,
		DefaultReviewerEmail: cfg.DefaultReviewerEmail,
		ReviewBaseURL:        cfg.ReviewBaseURL,
		PaidEpsilon:          cfg.PaidEpsilon,
	})

	if err := p.Run(context.Background()); err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	logSummary(log, store)

	if dryRun {
		log.Info().Msg("Dry run mode: ledger file not saved")
		return nil
	}
	if err := fixtures.Save(ledgerPath, store); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}

	log.Info().Str("ledger", ledgerPath).Msg("Ledger saved")
	return nil
}

func logSummary(log zerolog.Logger, store *ledger.Store) {
	byStatus := make(map[string]int)
	for _, doc := range store.Documents {
		byStatus[doc.Status]++
	}

	event := log.Info().
		Int("documents", len(store.Documents)).
		Int("journal_entries", len(store.JournalEntries)).
		Int("ap_rows", len(store.AP)).
		Int("ar_rows", len(store.AR)).
		Int("audit_entries", len(store.AuditLog))
	for status, count := range byStatus {
		event = event.Int("status_"+status, count)
	}
	event.Msg("Pipeline run summary")
}
