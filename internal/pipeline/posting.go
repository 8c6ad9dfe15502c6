package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"ledgerpipe/internal/ledger"
	"ledgerpipe/internal/logger"
	"ledgerpipe/internal/oracle"
)

// Control accounts used by the posting and reconciliation rules.
const (
	acctCashBank  = "1100"
	acctAR        = "1200"
	acctInputTax  = "1400"
	acctAP        = "2100"
	acctOutputTax = "2200"
	acctShipping  = "5300"
)

// balanceTolerance is the maximum debit/credit difference a document's
// journal batch may carry.
var balanceTolerance = decimal.NewFromFloat(1e-6)

// PostingEngine dispatches document-type-specific double-entry rules,
// writes journal entries and opens AP/AR subledger rows. A document's
// batch commits atomically or not at all; new rows accumulate locally
// and merge into the shared tables at one commit point.
type PostingEngine struct {
	store    *ledger.Store
	verifier oracle.Verifier
	log      zerolog.Logger
}

// NewPostingEngine creates the posting stage. A nil verifier disables
// the optional posting-safety check.
func NewPostingEngine(store *ledger.Store, verifier oracle.Verifier) *PostingEngine {
	return &PostingEngine{
		store:    store,
		verifier: verifier,
		log:      logger.WithComponent("posting"),
	}
}

// Run posts every ready document.
func (pe *PostingEngine) Run(ctx context.Context) error {
	var (
		newJournal []ledger.JournalEntry
		newAP      []ledger.SubledgerEntry
		newAR      []ledger.SubledgerEntry
	)

	for i := range pe.store.Documents {
		doc := &pe.store.Documents[i]
		if doc.Status != ledger.StatusReady {
			continue
		}

		// Informational documents carry no postings. Enforced here even
		// if an earlier stage should have filtered them; upstream
		// filtering is not guaranteed.
		if doc.DocType == ledger.DocTypeQuotation || doc.DocType == ledger.DocTypeSalesOrder {
			doc.Status = ledger.StatusSkipped
			pe.store.AppendAudit(actorPostingEngine, "SKIPPED_INFO_DOC", doc.ID,
				fmt.Sprintf("Document type '%s' is informational, skipping GL post.", doc.DocType))
			pe.log.Info().
				Str("doc_id", doc.ID).
				Str("doc_type", string(doc.DocType)).
				Msg("Skipped informational document")
			continue
		}

		lines := pe.store.LinesFor(doc.ID)
		batch, apRow, arRow, err := pe.buildBatch(*doc, lines)
		if err != nil {
			// Integrity fault: a document type with no posting rule must
			// never be marked posted without journals.
			pe.log.Error().
				Str("doc_id", doc.ID).
				Str("doc_type", string(doc.DocType)).
				Msg("No posting rule for document type")
			pe.store.AppendAudit(actorPostingEngine, "POSTING_FAULT", doc.ID, err.Error())
			doc.Status = ledger.ExceptionStatus(fmt.Sprintf("posting - no rule for doc_type %s", doc.DocType))
			continue
		}

		if diff, ok := balancedBatch(batch); !ok {
			// Integrity fault: imbalance is a programming or config
			// defect, not a business exception. The document stays
			// un-posted with its status unchanged.
			pe.log.Error().
				Str("doc_id", doc.ID).
				Str("doc_number", doc.DocNumber).
				Str("imbalance", diff.String()).
				Msg("CRITICAL: journal batch does not balance, batch discarded")
			pe.store.AppendAudit(actorPostingEngine, "POSTING_IMBALANCE", doc.ID,
				fmt.Sprintf("Journal batch imbalance of %s; posting aborted.", diff.String()))
			continue
		}

		if pe.verifier != nil && !pe.verify(ctx, *doc, lines) {
			doc.Status = ledger.ExceptionStatus("posting - GL verification rejected")
			pe.store.AppendAudit(actorPostingEngine, "VERIFY_REJECTED", doc.ID,
				"Posting-safety check rejected the proposed GL hints.")
			pe.log.Warn().
				Str("doc_id", doc.ID).
				Str("doc_number", doc.DocNumber).
				Msg("Posting rejected by verification capability")
			continue
		}

		newJournal = append(newJournal, batch...)
		if apRow != nil {
			newAP = append(newAP, *apRow)
		}
		if arRow != nil {
			newAR = append(newAR, *arRow)
		}
		doc.Status = ledger.StatusPosted
		pe.store.AppendAudit(actorPostingEngine, "POSTED", doc.ID,
			fmt.Sprintf("Created %d journal entries.", len(batch)))

		pe.log.Info().
			Str("doc_id", doc.ID).
			Str("doc_number", doc.DocNumber).
			Str("doc_type", string(doc.DocType)).
			Int("entries", len(batch)).
			Float64("base_total", doc.BaseAmountTotal).
			Msg("Document posted")
	}

	// Single commit point for all tables.
	pe.store.AppendJournal(newJournal...)
	pe.store.AP = append(pe.store.AP, newAP...)
	pe.store.AR = append(pe.store.AR, newAR...)
	return nil
}

// buildBatch produces the full journal batch plus any subledger row for
// one document. Returns an error for document types without a rule.
func (pe *PostingEngine) buildBatch(doc ledger.Document, lines []ledger.LineItem) ([]ledger.JournalEntry, *ledger.SubledgerEntry, *ledger.SubledgerEntry, error) {
	switch doc.DocType {
	case ledger.DocTypeInvoice, ledger.DocTypeUtilityBill:
		batch, ap := pe.vendorInvoiceBatch(doc, lines)
		return batch, ap, nil, nil
	case ledger.DocTypeSalesInvoice:
		batch, ar := pe.salesInvoiceBatch(doc, lines)
		return batch, nil, ar, nil
	case ledger.DocTypeCreditNote:
		batch, ap := pe.creditNoteBatch(doc, lines)
		return batch, ap, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("no posting rule for doc_type %q", doc.DocType)
	}
}

// vendorInvoiceBatch debits expense lines, input tax and shipping in
// base currency, credits Accounts Payable and opens an outstanding AP row.
func (pe *PostingEngine) vendorInvoiceBatch(doc ledger.Document, lines []ledger.LineItem) ([]ledger.JournalEntry, *ledger.SubledgerEntry) {
	var batch []ledger.JournalEntry
	fx := doc.FXRate

	for _, line := range lines {
		batch = append(batch, pe.entry(doc.IssueDate, doc.ID, line.LineNo,
			pe.accountCode(line.GLHint), line.LineTotal*fx, 0,
			"Expense for "+line.Description, fx, line.LineTotal))
	}
	if doc.TaxAmount > 0 {
		batch = append(batch, pe.entry(doc.IssueDate, doc.ID, 0,
			acctInputTax, doc.TaxAmount*fx, 0,
			doc.TaxLabel+" Input Tax", fx, doc.TaxAmount))
	}
	if doc.Shipping > 0 {
		batch = append(batch, pe.entry(doc.IssueDate, doc.ID, 0,
			acctShipping, doc.Shipping*fx, 0,
			"Shipping Expense", fx, doc.Shipping))
	}
	batch = append(batch, pe.entry(doc.IssueDate, doc.ID, 0,
		acctAP, 0, doc.BaseAmountTotal,
		"AP for "+doc.DocNumber, fx, doc.Total))

	ap := &ledger.SubledgerEntry{
		DocID:          doc.ID,
		CounterpartyID: doc.CounterpartyID,
		Total:          doc.BaseAmountTotal,
		AmountDue:      doc.BaseAmountTotal,
		DueDate:        doc.DueDate,
		Status:         ledger.SubledgerOutstanding,
	}
	return batch, ap
}

// salesInvoiceBatch credits revenue lines and output tax in document
// currency and debits Accounts Receivable. Sales are assumed to be
// base-currency denominated, so no FX conversion is applied.
func (pe *PostingEngine) salesInvoiceBatch(doc ledger.Document, lines []ledger.LineItem) ([]ledger.JournalEntry, *ledger.SubledgerEntry) {
	var batch []ledger.JournalEntry

	for _, line := range lines {
		batch = append(batch, pe.entry(doc.IssueDate, doc.ID, line.LineNo,
			pe.accountCode(line.GLHint), 0, line.LineTotal,
			"Sales for "+line.Description, 1, 0))
	}
	if doc.TaxAmount > 0 {
		batch = append(batch, pe.entry(doc.IssueDate, doc.ID, 0,
			acctOutputTax, 0, doc.TaxAmount,
			doc.TaxLabel+" Output Tax", 1, 0))
	}
	batch = append(batch, pe.entry(doc.IssueDate, doc.ID, 0,
		acctAR, doc.Total, 0,
		"AR for "+doc.DocNumber, 1, 0))

	ar := &ledger.SubledgerEntry{
		DocID:          doc.ID,
		CounterpartyID: doc.CounterpartyID,
		Total:          doc.Total,
		AmountDue:      doc.Total,
		DueDate:        doc.DueDate,
		Status:         ledger.SubledgerOutstanding,
	}
	return batch, ar
}

// creditNoteBatch reverses the expense lines and input tax of the
// referenced vendor invoice and debits Accounts Payable. The AP row
// carries the negative total plus the applies_to reference, to be
// netted against the original invoice by the reconciliation pre-pass.
func (pe *PostingEngine) creditNoteBatch(doc ledger.Document, lines []ledger.LineItem) ([]ledger.JournalEntry, *ledger.SubledgerEntry) {
	var batch []ledger.JournalEntry

	for _, line := range lines {
		batch = append(batch, pe.entry(doc.IssueDate, doc.ID, line.LineNo,
			pe.accountCode(line.GLHint), 0, math.Abs(line.LineTotal),
			"CN Reversal for "+line.Description, 1, line.LineTotal))
	}
	if doc.TaxAmount < 0 {
		batch = append(batch, pe.entry(doc.IssueDate, doc.ID, 0,
			acctInputTax, 0, math.Abs(doc.TaxAmount),
			doc.TaxLabel+" Input Tax Reversal", 1, doc.TaxAmount))
	}
	batch = append(batch, pe.entry(doc.IssueDate, doc.ID, 0,
		acctAP, math.Abs(doc.Total), 0,
		"AP reduction for "+doc.DocNumber, 1, doc.Total))

	ap := &ledger.SubledgerEntry{
		DocID:          doc.ID,
		CounterpartyID: doc.CounterpartyID,
		Total:          doc.Total,
		AmountDue:      doc.Total,
		DueDate:        doc.DueDate,
		Status:         ledger.SubledgerOutstanding,
		AppliesTo:      doc.AppliesTo,
	}
	return batch, ap
}

// entry builds one journal line, consuming the next id from the shared
// run-wide sequence.
func (pe *PostingEngine) entry(date ledger.Date, docID string, lineNo int, account string, debit, credit float64, memo string, fxRate, baseAmount float64) ledger.JournalEntry {
	return ledger.JournalEntry{
		JEID:       pe.store.NextJournalID(),
		Date:       date,
		DocID:      docID,
		LineNo:     lineNo,
		Account:    account,
		Debit:      debit,
		Credit:     credit,
		Memo:       memo,
		FXRate:     fxRate,
		BaseAmount: baseAmount,
	}
}

// accountCode resolves a GL hint against the chart of accounts. Unknown
// codes are posted as hinted but logged.
func (pe *PostingEngine) accountCode(hint ledger.Account) string {
	if pe.store.FindAccount(hint.Code) == nil {
		pe.log.Warn().
			Str("code", hint.Code).
			Str("name", hint.Name).
			Msg("GL hint code not in chart of accounts")
	}
	return hint.Code
}

// verify runs the optional posting-safety check. Capability failure
// degrades to the conservative fallback: reject.
func (pe *PostingEngine) verify(ctx context.Context, doc ledger.Document, lines []ledger.LineItem) bool {
	safe, err := pe.verifier.VerifyPosting(ctx, doc, lines)
	if err != nil {
		pe.log.Warn().
			Err(err).
			Str("doc_id", doc.ID).
			Msg("Verification capability unavailable, rejecting conservatively")
		return false
	}
	return safe
}

// balancedBatch checks that a document's batch balances within
// tolerance, returning the debit minus credit difference.
func balancedBatch(batch []ledger.JournalEntry) (decimal.Decimal, bool) {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, je := range batch {
		debit = debit.Add(decimal.NewFromFloat(je.Debit))
		credit = credit.Add(decimal.NewFromFloat(je.Credit))
	}
	diff := debit.Sub(credit)
	return diff, diff.Abs().LessThanOrEqual(balanceTolerance)
}
