// Package pipeline implements the ledger processing stages: currency
// enrichment, exception routing, double-entry posting and bank
// reconciliation. Stages run sequentially over one shared store and are
// idempotent against re-runs because document status is the processing
// guard. Failure isolation is per document and per bank row; no single
// failure aborts a stage.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"ledgerpipe/internal/ledger"
	"ledgerpipe/internal/logger"
	"ledgerpipe/internal/oracle"
)

// Audit actor names, one per stage.
const (
	actorValidation     = "ValidationEnricher"
	actorExceptionDesk  = "ExceptionDesk"
	actorPostingEngine  = "PostingEngine"
	actorReconciliation = "ReconciliationEngine"
	actorReviewDesk     = "ReviewDesk"
)

// Config carries the tunables the stages need.
type Config struct {
	BaseCurrency         string
	DefaultReviewerEmail string
	ReviewBaseURL        string
	PaidEpsilon          float64
}

// Pipeline composes the four stages over one store.
type Pipeline struct {
	enricher   *Enricher
	exceptions *ExceptionDesk
	posting    *PostingEngine
	reconciler *Reconciler
	log        zerolog.Logger
}

// New builds a pipeline over a store with the given capability suite.
func New(store *ledger.Store, caps oracle.Suite, cfg Config) *Pipeline {
	return &Pipeline{
		enricher:   NewEnricher(store, caps.Explainer, cfg.BaseCurrency),
		exceptions: NewExceptionDesk(store, caps.Explainer, cfg.DefaultReviewerEmail, cfg.ReviewBaseURL),
		posting:    NewPostingEngine(store, caps.Verifier),
		reconciler: NewReconciler(store, caps.Matcher, cfg.PaidEpsilon),
		log:        logger.WithComponent("pipeline"),
	}
}

// Run executes validation, exception routing, posting and reconciliation
// in order. Documents parked in REVIEW_PENDING re-enter at the posting
// stage on a later run, after the external review action returns them
// to ready.
func (p *Pipeline) Run(ctx context.Context) error {
	const op = "Pipeline.Run"

	p.log.Info().Msg("Starting ledger pipeline run")

	if err := p.enricher.Run(ctx); err != nil {
		return fmt.Errorf("%s: validation: %w", op, err)
	}
	if err := p.exceptions.Run(ctx); err != nil {
		return fmt.Errorf("%s: exception routing: %w", op, err)
	}
	if err := p.posting.Run(ctx); err != nil {
		return fmt.Errorf("%s: posting: %w", op, err)
	}
	if err := p.reconciler.Run(ctx); err != nil {
		return fmt.Errorf("%s: reconciliation: %w", op, err)
	}

	p.log.Info().Msg("Ledger pipeline run completed")
	return nil
}

// truncate caps a string at n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
