package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"ledgerpipe/internal/ledger"
	"ledgerpipe/internal/logger"
	"ledgerpipe/internal/oracle"
)

// ExceptionDesk narrates the root cause of each business exception,
// resolves a reviewer and parks the document in REVIEW_PENDING with
// resumable approve/correct actions. The external review action later
// returns the document to ready.
type ExceptionDesk struct {
	store           *ledger.Store
	explainer       oracle.Explainer
	defaultReviewer string
	reviewBaseURL   string
	log             zerolog.Logger
}

// NewExceptionDesk creates the exception routing stage.
func NewExceptionDesk(store *ledger.Store, explainer oracle.Explainer, defaultReviewer, reviewBaseURL string) *ExceptionDesk {
	return &ExceptionDesk{
		store:           store,
		explainer:       explainer,
		defaultReviewer: defaultReviewer,
		reviewBaseURL:   strings.TrimRight(reviewBaseURL, "/"),
		log:             logger.WithComponent("exception-desk"),
	}
}

// Run routes every exception document not already pending review.
func (d *ExceptionDesk) Run(ctx context.Context) error {
	for i := range d.store.Documents {
		doc := &d.store.Documents[i]
		if !ledger.IsException(doc.Status) {
			continue
		}

		reason := strings.TrimSpace(strings.TrimPrefix(doc.Status, "Exception:"))
		narrative := d.explain(ctx, *doc, doc.Status)
		d.store.AppendAudit(actorExceptionDesk, "AI_ROOT_CAUSE", doc.ID, narrative)

		reviewer := d.resolveReviewer(*doc)
		token := uuid.NewString()
		approveURL := fmt.Sprintf("%s/review/approve?doc_id=%s&key=%s", d.reviewBaseURL, doc.ID, token)
		correctURL := fmt.Sprintf("%s/correct?doc_id=%s&key=%s", d.reviewBaseURL, doc.ID, token)

		doc.ReviewerEmail = reviewer
		doc.ReviewURL = approveURL
		doc.ReviewToken = token
		doc.ExceptionSummary = fmt.Sprintf(
			"**Document**: %s\n**Counterparty**: %s\n**Reason**: %s\n**Analysis**: %s\n\n**Approve & Post**: %s\n**Needs Correction**: %s",
			doc.DocNumber, doc.CounterpartyID, reason, narrative, approveURL, correctURL)
		doc.Status = ledger.StatusReviewPending

		d.store.AppendAudit(actorExceptionDesk, "ROUTE_TO_HUMAN", doc.ID,
			fmt.Sprintf("Routed to %s for review.", reviewer))

		d.log.Info().
			Str("doc_id", doc.ID).
			Str("doc_number", doc.DocNumber).
			Str("reviewer", reviewer).
			Str("reason", reason).
			Msg("Document routed to human review")
	}
	return nil
}

// resolveReviewer looks up the counterparty email by counterparty type,
// falling back to the configured default address when the lookup fails
// or yields an empty value.
func (d *ExceptionDesk) resolveReviewer(doc ledger.Document) string {
	var cp *ledger.Counterparty
	switch doc.CounterpartyType {
	case ledger.CounterpartyVendor:
		cp = d.store.FindVendor(doc.CounterpartyID)
	case ledger.CounterpartyCustomer:
		cp = d.store.FindCustomer(doc.CounterpartyID)
	default:
		return d.defaultReviewer
	}
	if cp == nil || strings.TrimSpace(cp.Email) == "" {
		return d.defaultReviewer
	}
	return cp.Email
}

func (d *ExceptionDesk) explain(ctx context.Context, doc ledger.Document, status string) string {
	narrative, err := d.explainer.Explain(ctx, doc, status)
	if err != nil {
		d.log.Warn().
			Err(err).
			Str("doc_id", doc.ID).
			Msg("Explanation capability unavailable, using fallback")
		return oracle.FallbackRecommendation
	}
	return narrative
}
