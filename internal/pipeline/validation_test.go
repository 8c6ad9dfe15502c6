package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ledgerpipe/internal/ledger"
	"ledgerpipe/internal/oracle"
)

func TestEnricherBaseCurrencyDocument(t *testing.T) {
	store := ledger.NewStore()
	doc := vendorInvoiceDoc()
	doc.FXRate = 0
	doc.BaseAmountTotal = 0
	store.Documents = []ledger.Document{doc}

	enricher := NewEnricher(store, stubExplainer{}, "MYR")
	require.NoError(t, enricher.Run(context.Background()))

	got := store.FindDocument(doc.ID)
	assert.Equal(t, ledger.StatusReady, got.Status)
	assert.Equal(t, 1.0, got.FXRate)
	assert.Equal(t, 1100.0, got.BaseAmountTotal)
}

func TestEnricherForeignCurrencyWithRate(t *testing.T) {
	store := ledger.NewStore()
	store.Documents = []ledger.Document{{
		ID:        "DOC-1",
		DocType:   ledger.DocTypeInvoice,
		IssueDate: ledger.NewDate(2025, time.October, 10),
		Currency:  "USD",
		Total:     200,
		Status:    ledger.StatusReady,
	}}
	store.FXRates = []ledger.FXRate{
		{Pair: "USD/MYR", Date: ledger.NewDate(2025, time.October, 1), Rate: 4.20},
		{Pair: "USD/MYR", Date: ledger.NewDate(2025, time.October, 20), Rate: 4.50},
	}

	enricher := NewEnricher(store, stubExplainer{}, "MYR")
	require.NoError(t, enricher.Run(context.Background()))

	got := store.FindDocument("DOC-1")
	assert.Equal(t, ledger.StatusReady, got.Status)
	assert.Equal(t, 4.20, got.FXRate)
	assert.InDelta(t, 840, got.BaseAmountTotal, 1e-9)
}

func TestEnricherMissingRateFlagsException(t *testing.T) {
	store := ledger.NewStore()
	store.Documents = []ledger.Document{{
		ID:        "DOC-1",
		DocType:   ledger.DocTypeInvoice,
		DocNumber: "INV-ID-7788",
		IssueDate: ledger.NewDate(2025, time.October, 3),
		Currency:  "IDR",
		Total:     5000000,
		Status:    ledger.StatusReady,
	}}

	long := "FIX: Add an IDR/MYR rate dated on or before the issue date to the reference table."
	enricher := NewEnricher(store, stubExplainer{recommendation: long}, "MYR")
	require.NoError(t, enricher.Run(context.Background()))

	got := store.FindDocument("DOC-1")
	require.True(t, ledger.IsException(got.Status))
	assert.True(t, strings.HasPrefix(got.Status, "Exception: FX - "), got.Status)

	// The FIX: prefix is stripped and the remainder capped at 50 runes.
	reason := strings.TrimPrefix(got.Status, "Exception: FX - ")
	assert.Equal(t, "Add an IDR/MYR rate dated on or before the issue d", reason)
	assert.Equal(t, 0.0, got.BaseAmountTotal)

	require.Len(t, store.AuditLog, 1)
	assert.Equal(t, "AI_EXCEPTION_ANALYSIS", store.AuditLog[0].Action)
	assert.Equal(t, long, store.AuditLog[0].Details)
}

func TestEnricherExplainerFailureFallsBack(t *testing.T) {
	store := ledger.NewStore()
	store.Documents = []ledger.Document{{
		ID:        "DOC-1",
		DocType:   ledger.DocTypeInvoice,
		IssueDate: ledger.NewDate(2025, time.October, 3),
		Currency:  "IDR",
		Total:     100,
		Status:    ledger.StatusReady,
	}}

	enricher := NewEnricher(store, stubExplainer{err: errors.New("api down")}, "MYR")
	require.NoError(t, enricher.Run(context.Background()))

	got := store.FindDocument("DOC-1")
	require.True(t, ledger.IsException(got.Status))
	assert.Contains(t, got.Status, truncate(oracle.FallbackRecommendation, recommendationLimit))
}

func TestEnricherLeavesOtherStatusesAlone(t *testing.T) {
	store := ledger.NewStore()
	store.Documents = []ledger.Document{
		{ID: "DOC-1", Currency: "IDR", Total: 100, Status: ledger.StatusPosted},
		{ID: "DOC-2", Currency: "IDR", Total: 100, Status: ledger.StatusExtracted},
		{ID: "DOC-3", Currency: "IDR", Total: 100, Status: ledger.StatusReviewPending},
	}

	enricher := NewEnricher(store, stubExplainer{}, "MYR")
	require.NoError(t, enricher.Run(context.Background()))

	for _, doc := range store.Documents {
		assert.Equal(t, 0.0, doc.BaseAmountTotal, doc.ID)
		assert.False(t, ledger.IsException(doc.Status), doc.ID)
	}
	assert.Empty(t, store.AuditLog)
}

func TestEnricherZeroTotalEnrichedOnce(t *testing.T) {
	store := ledger.NewStore()
	store.Documents = []ledger.Document{{
		ID:       "DOC-1",
		DocType:  ledger.DocTypeCreditNote,
		Currency: "MYR",
		Total:    0,
		Status:   ledger.StatusReady,
	}}

	enricher := NewEnricher(store, stubExplainer{}, "MYR")
	require.NoError(t, enricher.Run(context.Background()))

	got := store.FindDocument("DOC-1")
	assert.Equal(t, 1.0, got.FXRate, "the rate marks the document as enriched")
	assert.Equal(t, 0.0, got.BaseAmountTotal)

	// A zero total must not make the document look unprocessed again.
	require.NoError(t, enricher.Run(context.Background()))
	assert.Equal(t, 1.0, store.FindDocument("DOC-1").FXRate)
	assert.Empty(t, store.AuditLog)
}

func TestEnricherSkipsAlreadyEnriched(t *testing.T) {
	store := ledger.NewStore()
	doc := vendorInvoiceDoc()
	doc.FXRate = 0.25 // already enriched on a previous run
	doc.BaseAmountTotal = 275
	store.Documents = []ledger.Document{doc}

	enricher := NewEnricher(store, stubExplainer{}, "MYR")
	require.NoError(t, enricher.Run(context.Background()))

	got := store.FindDocument(doc.ID)
	assert.Equal(t, 0.25, got.FXRate)
	assert.Equal(t, 275.0, got.BaseAmountTotal)
}
