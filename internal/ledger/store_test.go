package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextJournalIDContinuesFromMax(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.ReplaceTable("JournalEntries", []JournalEntry{
		{JEID: "JE-0003"},
		{JEID: "JE-0007"},
		{JEID: "JE-0001"},
	}))

	assert.Equal(t, "JE-0008", store.NextJournalID())
	assert.Equal(t, "JE-0009", store.NextJournalID())
}

func TestNextJournalIDEmptyStore(t *testing.T) {
	store := NewStore()
	assert.Equal(t, "JE-0001", store.NextJournalID())
	assert.Equal(t, "JE-0002", store.NextJournalID())
}

func TestReplaceTableResetsSequence(t *testing.T) {
	store := NewStore()
	assert.Equal(t, "JE-0001", store.NextJournalID())

	require.NoError(t, store.ReplaceTable("JournalEntries", []JournalEntry{{JEID: "JE-0042"}}))
	assert.Equal(t, "JE-0043", store.NextJournalID())
}

func TestReplaceTableErrors(t *testing.T) {
	store := NewStore()

	err := store.ReplaceTable("Nope", []Document{})
	assert.ErrorIs(t, err, ErrUnknownTable)

	err = store.ReplaceTable("Documents", []FXRate{})
	assert.ErrorIs(t, err, ErrTableType)
}

func TestRateOnPicksLatestOnOrBefore(t *testing.T) {
	store := NewStore()
	store.FXRates = []FXRate{
		{Pair: "IDR/MYR", Date: NewDate(2025, time.September, 1), Rate: 0.00028},
		{Pair: "IDR/MYR", Date: NewDate(2025, time.October, 1), Rate: 0.00030},
		{Pair: "IDR/MYR", Date: NewDate(2025, time.November, 1), Rate: 0.00032},
		{Pair: "USD/MYR", Date: NewDate(2025, time.October, 1), Rate: 4.20},
	}

	rate, ok := store.RateOn("IDR/MYR", NewDate(2025, time.October, 15))
	require.True(t, ok)
	assert.Equal(t, 0.00030, rate)

	// Exact date counts.
	rate, ok = store.RateOn("IDR/MYR", NewDate(2025, time.October, 1))
	require.True(t, ok)
	assert.Equal(t, 0.00030, rate)

	// Nothing on or before the target.
	_, ok = store.RateOn("IDR/MYR", NewDate(2025, time.August, 1))
	assert.False(t, ok)

	// Unknown pair.
	_, ok = store.RateOn("EUR/MYR", NewDate(2025, time.October, 15))
	assert.False(t, ok)
}

func TestFindHelpers(t *testing.T) {
	store := NewStore()
	store.Documents = []Document{
		{ID: "DOC-1", DocNumber: "INV-100"},
		{ID: "DOC-2", DocNumber: "INV-200"},
	}
	store.LineItems = []LineItem{
		{DocumentID: "DOC-1", LineNo: 1},
		{DocumentID: "DOC-2", LineNo: 1},
		{DocumentID: "DOC-1", LineNo: 2},
	}
	store.Vendors = []Counterparty{{ID: "V-1", Email: "ap@vendor.example"}}

	require.NotNil(t, store.FindDocument("DOC-1"))
	assert.Nil(t, store.FindDocument("DOC-9"))
	require.NotNil(t, store.FindDocumentByNumber("INV-200"))
	assert.Nil(t, store.FindDocumentByNumber("INV-999"))

	assert.Len(t, store.LinesFor("DOC-1"), 2)
	assert.Empty(t, store.LinesFor("DOC-9"))

	require.NotNil(t, store.FindVendor("V-1"))
	assert.Nil(t, store.FindVendor("V-2"))
}

func TestAppendAudit(t *testing.T) {
	store := NewStore()
	store.AppendAudit("PostingEngine", "POSTED", "DOC-1", "Created 4 journal entries.")

	require.Len(t, store.AuditLog, 1)
	entry := store.AuditLog[0]
	assert.Equal(t, "PostingEngine", entry.Actor)
	assert.Equal(t, "POSTED", entry.Action)
	assert.Equal(t, "DOC-1", entry.DocID)
	assert.False(t, entry.Timestamp.IsZero())
}
