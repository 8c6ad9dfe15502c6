package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ledgerpipe/internal/ledger"
	"ledgerpipe/internal/oracle"
)

// Capability test doubles. A zero-value stub behaves like the offline
// fallback of its capability.

type stubExplainer struct {
	recommendation string
	err            error
}

func (s stubExplainer) Explain(context.Context, ledger.Document, string) (string, error) {
	return s.recommendation, s.err
}

type stubVerifier struct {
	safe bool
	err  error
}

func (s stubVerifier) VerifyPosting(context.Context, ledger.Document, []ledger.LineItem) (bool, error) {
	return s.safe, s.err
}

type stubMatcher struct {
	suggestion string
	err        error
}

func (s stubMatcher) SuggestMatch(context.Context, ledger.BankTransaction, []oracle.OpenItem) (string, error) {
	return s.suggestion, s.err
}

func testChart() []ledger.Account {
	return []ledger.Account{
		{Code: "1100", Name: "Cash/Bank"},
		{Code: "1200", Name: "Accounts Receivable"},
		{Code: "1400", Name: "SST Input Tax"},
		{Code: "2100", Name: "Accounts Payable"},
		{Code: "2200", Name: "SST Output Tax"},
		{Code: "4000", Name: "Sales Revenue"},
		{Code: "5000", Name: "Consulting Expense"},
		{Code: "5300", Name: "Shipping Expense"},
	}
}

func vendorInvoiceDoc() ledger.Document {
	return ledger.Document{
		ID:               "DOC-INV-0001",
		DocType:          ledger.DocTypeInvoice,
		DocNumber:        "INV-2025-00123",
		CounterpartyID:   "V-001",
		CounterpartyType: ledger.CounterpartyVendor,
		IssueDate:        ledger.NewDate(2025, time.October, 1),
		DueDate:          ledger.NewDate(2025, time.October, 31),
		Currency:         "MYR",
		Subtotal:         1000,
		TaxLabel:         "SST",
		TaxRate:          0.08,
		TaxAmount:        80,
		Shipping:         20,
		Total:            1100,
		FXRate:           1,
		BaseAmountTotal:  1100,
		Status:           ledger.StatusReady,
	}
}

func vendorInvoiceLine() ledger.LineItem {
	return ledger.LineItem{
		DocumentID:  "DOC-INV-0001",
		LineNo:      1,
		Description: "Consulting services",
		Qty:         1,
		UnitPrice:   1000,
		LineTotal:   1000,
		GLHint:      ledger.Account{Code: "5000", Name: "Consulting Expense"},
	}
}

func auditActions(store *ledger.Store, docID string) []string {
	var actions []string
	for _, entry := range store.AuditLog {
		if entry.DocID == docID {
			actions = append(actions, entry.Action)
		}
	}
	return actions
}

// TestPipelineEndToEnd runs the full stage sequence twice: the first run
// posts and settles a domestic invoice and parks a foreign one pending
// review; after a reviewer supplies the missing FX rate, the second run
// posts the corrected document.
func TestPipelineEndToEnd(t *testing.T) {
	store := ledger.NewStore()
	store.ChartOfAccounts = testChart()
	store.Vendors = []ledger.Counterparty{
		{ID: "V-001", Name: "Acme Consulting", Email: "billing@acme.example"},
		{ID: "V-002", Name: "PT Nusantara", Email: "ap@nusantara.example"},
	}
	store.Documents = []ledger.Document{
		vendorInvoiceDoc(),
		{
			ID:               "DOC-INV-0002",
			DocType:          ledger.DocTypeInvoice,
			DocNumber:        "INV-ID-7788",
			CounterpartyID:   "V-002",
			CounterpartyType: ledger.CounterpartyVendor,
			IssueDate:        ledger.NewDate(2025, time.October, 3),
			DueDate:          ledger.NewDate(2025, time.November, 2),
			Currency:         "IDR",
			Subtotal:         5000000,
			Total:            5000000,
			Status:           ledger.StatusReady,
		},
	}
	store.LineItems = []ledger.LineItem{
		vendorInvoiceLine(),
		{
			DocumentID:  "DOC-INV-0002",
			LineNo:      1,
			Description: "Freight services",
			Qty:         1,
			UnitPrice:   5000000,
			LineTotal:   5000000,
			GLHint:      ledger.Account{Code: "5000", Name: "Consulting Expense"},
		},
	}
	store.BankFeed = []ledger.BankTransaction{
		{Date: "2025-10-15", Amount: -1100, Memo: "TRF ACME INV-2025-00123", GuessDocNumber: "INV-2025-00123"},
	}

	caps := oracle.Suite{
		Explainer: stubExplainer{recommendation: "FIX: Add an IDR/MYR rate on or before 2025-10-03."},
		Verifier:  stubVerifier{safe: true},
		Matcher:   stubMatcher{},
	}
	cfg := Config{
		BaseCurrency:         "MYR",
		DefaultReviewerEmail: "accounting.lead@yourcompany.com",
		ReviewBaseURL:        "https://review.example.com/webhook",
		PaidEpsilon:          0.01,
	}

	require.NoError(t, New(store, caps, cfg).Run(context.Background()))

	// Domestic invoice: posted and fully settled by the bank feed.
	domestic := store.FindDocument("DOC-INV-0001")
	require.NotNil(t, domestic)
	assert.Equal(t, ledger.StatusPosted, domestic.Status)
	ap := store.FindAP("DOC-INV-0001")
	require.NotNil(t, ap)
	assert.Equal(t, ledger.SubledgerPaid, ap.Status)
	assert.InDelta(t, 0, ap.AmountDue, 1e-9)

	// Foreign invoice: no rate, routed to the vendor contact for review.
	foreign := store.FindDocument("DOC-INV-0002")
	require.NotNil(t, foreign)
	assert.Equal(t, ledger.StatusReviewPending, foreign.Status)
	assert.Equal(t, "ap@nusantara.example", foreign.ReviewerEmail)
	require.NotEmpty(t, foreign.ReviewToken)
	assert.Contains(t, foreign.ExceptionSummary, "INV-ID-7788")

	// Reviewer supplies the rate; the next run posts the document.
	rate := 0.0003
	require.NoError(t, CorrectReview(store, "DOC-INV-0002", foreign.ReviewToken, FieldOverrides{FXRate: &rate}))
	require.NoError(t, New(store, caps, cfg).Run(context.Background()))

	foreign = store.FindDocument("DOC-INV-0002")
	assert.Equal(t, ledger.StatusPosted, foreign.Status)
	foreignAP := store.FindAP("DOC-INV-0002")
	require.NotNil(t, foreignAP)
	assert.Equal(t, ledger.SubledgerOutstanding, foreignAP.Status)
	assert.InDelta(t, 1500, foreignAP.AmountDue, 1e-9)

	// Re-runs do not double-post: document statuses guard every stage.
	journalCount := len(store.JournalEntries)
	require.NoError(t, New(store, caps, cfg).Run(context.Background()))
	assert.Len(t, store.JournalEntries, journalCount)
}
