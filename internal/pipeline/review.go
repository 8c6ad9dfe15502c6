package pipeline

import (
	"errors"
	"fmt"

	"ledgerpipe/internal/ledger"
)

// ErrReviewNotPending is returned when a resume action names a document
// that does not exist, is not in REVIEW_PENDING, or carries a different
// token. Duplicate resume calls fail with this error instead of
// silently succeeding.
var ErrReviewNotPending = errors.New("document not found or not pending review")

// FieldOverrides carries corrected field values applied by a reviewer.
// Nil fields are left untouched.
type FieldOverrides struct {
	Currency  *string
	FXRate    *float64
	Total     *float64
	IssueDate *ledger.Date
}

// ApproveReview resumes a REVIEW_PENDING document as-is, returning it
// to ready so the posting engine picks it up on the next run.
func ApproveReview(store *ledger.Store, docID, token string) error {
	doc, err := pendingDocument(store, docID, token)
	if err != nil {
		return err
	}

	doc.Status = ledger.StatusReady
	doc.ReviewToken = ""
	store.AppendAudit(actorReviewDesk, "REVIEW_APPROVED", docID, "Approved by reviewer; document re-queued.")
	return nil
}

// CorrectReview applies reviewer-supplied field overrides atomically
// and returns the document to ready. Changing the currency, issue date
// or total clears the FX rate and base amount so the next validation
// pass re-enriches; supplying an FX rate recomputes the base directly.
func CorrectReview(store *ledger.Store, docID, token string, fixes FieldOverrides) error {
	doc, err := pendingDocument(store, docID, token)
	if err != nil {
		return err
	}

	updated := *doc
	if fixes.Currency != nil {
		updated.Currency = *fixes.Currency
		updated.FXRate = 0
		updated.BaseAmountTotal = 0
	}
	if fixes.IssueDate != nil {
		updated.IssueDate = *fixes.IssueDate
		updated.FXRate = 0
		updated.BaseAmountTotal = 0
	}
	if fixes.Total != nil {
		updated.Total = *fixes.Total
		updated.FXRate = 0
		updated.BaseAmountTotal = 0
	}
	if fixes.FXRate != nil {
		updated.FXRate = *fixes.FXRate
		updated.BaseAmountTotal = updated.Total * updated.FXRate
	}
	updated.Status = ledger.StatusReady
	updated.ReviewToken = ""
	*doc = updated

	store.AppendAudit(actorReviewDesk, "REVIEW_CORRECTED", docID,
		fmt.Sprintf("Corrected by reviewer; document re-queued with fx_rate=%.6f total=%.2f.", doc.FXRate, doc.Total))
	return nil
}

func pendingDocument(store *ledger.Store, docID, token string) (*ledger.Document, error) {
	doc := store.FindDocument(docID)
	if doc == nil || doc.Status != ledger.StatusReviewPending {
		return nil, ErrReviewNotPending
	}
	if doc.ReviewToken == "" || doc.ReviewToken != token {
		return nil, ErrReviewNotPending
	}
	return doc, nil
}
