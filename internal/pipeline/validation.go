package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"ledgerpipe/internal/ledger"
	"ledgerpipe/internal/logger"
	"ledgerpipe/internal/oracle"
)

// recommendationLimit caps the remediation text carried in an exception
// status.
const recommendationLimit = 50

// Enricher computes base-currency amounts for ready documents via
// time-sliced FX lookup and flags currency exceptions. Read-only on
// FXRates; the only rejection reason is a missing rate.
type Enricher struct {
	store        *ledger.Store
	explainer    oracle.Explainer
	baseCurrency string
	log          zerolog.Logger
}

// NewEnricher creates the validation stage.
func NewEnricher(store *ledger.Store, explainer oracle.Explainer, baseCurrency string) *Enricher {
	return &Enricher{
		store:        store,
		explainer:    explainer,
		baseCurrency: baseCurrency,
		log:          logger.WithComponent("validation"),
	}
}

// Run enriches every ready document not yet carrying an FX rate. The
// rate marks enrichment; a zero base amount alone does not, so
// zero-total documents are not re-enriched on every run.
func (e *Enricher) Run(ctx context.Context) error {
	for i := range e.store.Documents {
		doc := &e.store.Documents[i]
		if doc.Status != ledger.StatusReady || doc.FXRate != 0 {
			continue
		}

		if doc.Currency == e.baseCurrency {
			doc.FXRate = 1
			doc.BaseAmountTotal = doc.Total
			continue
		}

		pair := doc.Currency + "/" + e.baseCurrency
		rate, ok := e.store.RateOn(pair, doc.IssueDate)
		if ok {
			doc.FXRate = rate
			doc.BaseAmountTotal = doc.Total * rate
			e.log.Debug().
				Str("doc_id", doc.ID).
				Str("pair", pair).
				Float64("rate", rate).
				Float64("base_total", doc.BaseAmountTotal).
				Msg("Enriched document with FX rate")
			continue
		}

		reason := fmt.Sprintf("No FX rate found for %s on %s. Base total cannot be calculated.",
			doc.Currency, doc.IssueDate)
		recommendation := e.explain(ctx, *doc, reason)

		doc.Status = ledger.ExceptionStatus("FX - " + truncate(strings.TrimPrefix(recommendation, "FIX: "), recommendationLimit))
		e.store.AppendAudit(actorValidation, "AI_EXCEPTION_ANALYSIS", doc.ID, recommendation)

		e.log.Warn().
			Str("doc_id", doc.ID).
			Str("doc_number", doc.DocNumber).
			Str("pair", pair).
			Str("issue_date", doc.IssueDate.String()).
			Msg("No FX rate on or before issue date, document flagged as exception")
	}
	return nil
}

func (e *Enricher) explain(ctx context.Context, doc ledger.Document, reason string) string {
	recommendation, err := e.explainer.Explain(ctx, doc, reason)
	if err != nil {
		e.log.Warn().
			Err(err).
			Str("doc_id", doc.ID).
			Msg("Explanation capability unavailable, using fallback")
		return oracle.FallbackRecommendation
	}
	return recommendation
}
