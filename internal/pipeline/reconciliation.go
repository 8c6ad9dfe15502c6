package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"ledgerpipe/internal/ledger"
	"ledgerpipe/internal/logger"
	"ledgerpipe/internal/oracle"
)

// Reconciler nets credit notes against their referenced invoices, then
// matches bank feed rows to open subledger entries and posts balanced
// payment journals. Failure isolation is per bank row: malformed rows
// are skipped and logged, never aborting the batch.
type Reconciler struct {
	store       *ledger.Store
	matcher     oracle.Matcher
	paidEpsilon float64
	log         zerolog.Logger
}

// NewReconciler creates the reconciliation stage. paidEpsilon is the
// residual below which an open balance counts as paid.
func NewReconciler(store *ledger.Store, matcher oracle.Matcher, paidEpsilon float64) *Reconciler {
	return &Reconciler{
		store:       store,
		matcher:     matcher,
		paidEpsilon: paidEpsilon,
		log:         logger.WithComponent("reconciliation"),
	}
}

// Run executes the credit-note pre-pass and the bank feed main pass.
func (r *Reconciler) Run(ctx context.Context) error {
	r.applyCreditNotes()

	var newJournal []ledger.JournalEntry
	for _, txn := range r.store.BankFeed {
		date, err := ledger.ParseDate(txn.Date)
		if err != nil {
			r.log.Warn().
				Str("date", txn.Date).
				Str("memo", txn.Memo).
				Msg("Skipping bank transaction with unparseable date")
			r.store.AppendAudit(actorReconciliation, "ERROR", "N/A",
				fmt.Sprintf("Bank txn skipped, invalid date %q. Memo: %s", txn.Date, txn.Memo))
			continue
		}
		if txn.Amount == 0 {
			continue
		}

		doc := r.resolveDocument(ctx, txn)
		if doc == nil {
			r.log.Info().
				Str("guess_doc_number", txn.GuessDocNumber).
				Str("memo", txn.Memo).
				Msg("Bank transaction unmatched, requires manual review")
			r.store.AppendAudit(actorReconciliation, "UNMATCHED", "N/A",
				fmt.Sprintf("Bank txn failed direct and fuzzy match. Memo: %s", txn.Memo))
			continue
		}

		if txn.Amount < 0 {
			newJournal = append(newJournal, r.settle(r.store.FindAP(doc.ID), *doc, date, txn.Amount)...)
		} else {
			newJournal = append(newJournal, r.settle(r.store.FindAR(doc.ID), *doc, date, txn.Amount)...)
		}
	}

	// Single commit point for the payment journals.
	r.store.AppendJournal(newJournal...)
	return nil
}

// applyCreditNotes nets each outstanding credit-note AP row against the
// invoice it references. The cleared_applied status makes the
// adjustment one-time and non-repeatable.
func (r *Reconciler) applyCreditNotes() {
	for i := range r.store.AP {
		cn := &r.store.AP[i]
		if cn.Status != ledger.SubledgerOutstanding || cn.AppliesTo == "" {
			continue
		}

		target := r.store.FindDocumentByNumber(cn.AppliesTo)
		if target == nil {
			r.log.Warn().
				Str("credit_note", cn.DocID).
				Str("applies_to", cn.AppliesTo).
				Msg("Credit note references an unknown invoice")
			continue
		}
		inv := r.store.FindAP(target.ID)
		if inv == nil {
			r.log.Warn().
				Str("credit_note", cn.DocID).
				Str("invoice", target.ID).
				Msg("Referenced invoice has no AP row")
			continue
		}

		// cn.Total is negative, reducing the invoice balance.
		inv.AmountDue = decimal.NewFromFloat(inv.AmountDue).
			Add(decimal.NewFromFloat(cn.Total)).
			InexactFloat64()
		cn.Status = ledger.SubledgerClearedApplied

		r.store.AppendAudit(actorReconciliation, "CN_APPLIED", cn.DocID,
			fmt.Sprintf("Applied %.2f to %s; new amount due %.2f.", cn.Total, cn.AppliesTo, inv.AmountDue))
		r.log.Info().
			Str("credit_note", cn.DocID).
			Str("invoice", cn.AppliesTo).
			Float64("adjustment", cn.Total).
			Float64("new_amount_due", inv.AmountDue).
			Msg("Credit note netted against invoice")
	}
}

// resolveDocument matches a bank transaction to a document by exact
// doc_number, then via the fuzzy-matching capability over open
// subledger rows. Matching failure degrades to no match.
func (r *Reconciler) resolveDocument(ctx context.Context, txn ledger.BankTransaction) *ledger.Document {
	// An empty guess must not exact-match documents without a number.
	guess := strings.TrimSpace(txn.GuessDocNumber)
	if guess != "" {
		if doc := r.store.FindDocumentByNumber(guess); doc != nil {
			return doc
		}
	}

	open := r.openItems(txn.Amount < 0)
	suggestion, err := r.matcher.SuggestMatch(ctx, txn, open)
	if err != nil {
		r.log.Warn().
			Err(err).
			Str("memo", txn.Memo).
			Msg("Matching capability unavailable, treating as unmatched")
		return nil
	}
	if suggestion == "" {
		return nil
	}

	doc := r.store.FindDocumentByNumber(suggestion)
	if doc != nil {
		r.log.Info().
			Str("suggestion", suggestion).
			Str("memo", txn.Memo).
			Msg("Fuzzy match suggested document")
	}
	return doc
}

// openItems collects the outstanding and partially paid rows of the
// relevant subledger as matching candidates.
func (r *Reconciler) openItems(payable bool) []oracle.OpenItem {
	rows := r.store.AR
	if payable {
		rows = r.store.AP
	}

	var open []oracle.OpenItem
	for _, row := range rows {
		if row.Status != ledger.SubledgerOutstanding && row.Status != ledger.SubledgerPartialPaid {
			continue
		}
		doc := r.store.FindDocument(row.DocID)
		if doc == nil {
			continue
		}
		open = append(open, oracle.OpenItem{
			DocNumber: doc.DocNumber,
			AmountDue: row.AmountDue,
			DueDate:   row.DueDate,
		})
	}
	return open
}

// settle posts a balanced payment pair against an open subledger row
// and reduces its balance. Negative amounts pay AP, positive amounts
// collect AR.
func (r *Reconciler) settle(row *ledger.SubledgerEntry, doc ledger.Document, date ledger.Date, amount float64) []ledger.JournalEntry {
	if row == nil || row.AmountDue <= r.paidEpsilon {
		r.log.Debug().
			Str("doc_id", doc.ID).
			Float64("amount", amount).
			Msg("Matched document has no open balance, nothing to settle")
		return nil
	}

	var (
		drAccount, crAccount string
		memo                 string
		action               string
	)
	if amount < 0 {
		drAccount, crAccount = acctAP, acctCashBank
		memo = "Payment for " + doc.DocNumber
		action = "CLEARED_AP"
	} else {
		drAccount, crAccount = acctCashBank, acctAR
		memo = "Collection for " + doc.DocNumber
		action = "CLEARED_AR"
	}

	paid := math.Abs(amount)
	pair := []ledger.JournalEntry{
		{
			JEID:       r.store.NextJournalID(),
			Date:       date,
			DocID:      doc.ID,
			Account:    drAccount,
			Debit:      paid,
			Memo:       memo,
			FXRate:     1,
			BaseAmount: paid,
		},
		{
			JEID:       r.store.NextJournalID(),
			Date:       date,
			DocID:      doc.ID,
			Account:    crAccount,
			Credit:     paid,
			Memo:       memo,
			FXRate:     1,
			BaseAmount: paid,
		},
	}

	row.AmountDue = decimal.NewFromFloat(row.AmountDue).
		Sub(decimal.NewFromFloat(paid)).
		InexactFloat64()
	if row.AmountDue <= r.paidEpsilon {
		row.Status = ledger.SubledgerPaid
	} else {
		row.Status = ledger.SubledgerPartialPaid
	}

	r.store.AppendAudit(actorReconciliation, action, doc.ID,
		fmt.Sprintf("Matched bank transaction of %.2f. Status updated to %s.", paid, row.Status))
	r.log.Info().
		Str("doc_id", doc.ID).
		Str("doc_number", doc.DocNumber).
		Float64("amount", paid).
		Float64("amount_due", row.AmountDue).
		Str("status", row.Status).
		Msg("Bank transaction settled against subledger")

	return pair
}
