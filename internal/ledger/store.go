package ledger

import (
	"fmt"
	"sync"
	"time"
)

// Store owns all named tables for one pipeline run. Stage logic operates
// on typed rows; the whole-table replace semantics live at this boundary.
//
// The journal id sequence is shared process-wide for the run and is the
// only piece of state guarded for concurrent use. Stages themselves are
// single-writer: workers must accumulate rows locally and merge through
// one commit point.
type Store struct {
	Documents       []Document
	LineItems       []LineItem
	JournalEntries  []JournalEntry
	AP              []SubledgerEntry
	AR              []SubledgerEntry
	FXRates         []FXRate
	ChartOfAccounts []Account
	Vendors         []Counterparty
	Customers       []Counterparty
	BankFeed        []BankTransaction
	AuditLog        []AuditEntry

	mu      sync.Mutex
	jeSeq   int
	seqInit bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// ReplaceTable replaces the named table with the given rows.
func (s *Store) ReplaceTable(name string, rows interface{}) error {
	const op = "ReplaceTable"

	assign := func(ok bool) error {
		if !ok {
			return fmt.Errorf("%s: table %q: %w", op, name, ErrTableType)
		}
		return nil
	}

	switch name {
	case "Documents":
		v, ok := rows.([]Document)
		if err := assign(ok); err != nil {
			return err
		}
		s.Documents = v
	case "LineItems":
		v, ok := rows.([]LineItem)
		if err := assign(ok); err != nil {
			return err
		}
		s.LineItems = v
	case "JournalEntries":
		v, ok := rows.([]JournalEntry)
		if err := assign(ok); err != nil {
			return err
		}
		s.JournalEntries = v
		s.mu.Lock()
		s.seqInit = false
		s.mu.Unlock()
	case "AP":
		v, ok := rows.([]SubledgerEntry)
		if err := assign(ok); err != nil {
			return err
		}
		s.AP = v
	case "AR":
		v, ok := rows.([]SubledgerEntry)
		if err := assign(ok); err != nil {
			return err
		}
		s.AR = v
	case "FXRates":
		v, ok := rows.([]FXRate)
		if err := assign(ok); err != nil {
			return err
		}
		s.FXRates = v
	case "ChartOfAccounts":
		v, ok := rows.([]Account)
		if err := assign(ok); err != nil {
			return err
		}
		s.ChartOfAccounts = v
	case "Vendors":
		v, ok := rows.([]Counterparty)
		if err := assign(ok); err != nil {
			return err
		}
		s.Vendors = v
	case "Customers":
		v, ok := rows.([]Counterparty)
		if err := assign(ok); err != nil {
			return err
		}
		s.Customers = v
	case "BankFeed":
		v, ok := rows.([]BankTransaction)
		if err := assign(ok); err != nil {
			return err
		}
		s.BankFeed = v
	case "AuditLog":
		v, ok := rows.([]AuditEntry)
		if err := assign(ok); err != nil {
			return err
		}
		s.AuditLog = v
	default:
		return fmt.Errorf("%s: %q: %w", op, name, ErrUnknownTable)
	}

	return nil
}

// NextJournalID hands out the next id of the run-wide monotonic journal
// sequence, continuing from the highest id already stored.
func (s *Store) NextJournalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seqInit {
		s.jeSeq = s.maxJournalSeq()
		s.seqInit = true
	}
	s.jeSeq++
	return fmt.Sprintf("JE-%04d", s.jeSeq)
}

func (s *Store) maxJournalSeq() int {
	max := 0
	for _, je := range s.JournalEntries {
		var n int
		if _, err := fmt.Sscanf(je.JEID, "JE-%d", &n); err == nil && n > max {
			max = n
		}
	}
	return max
}

// AppendJournal merges locally accumulated journal entries into the
// shared table. Single commit point per stage.
func (s *Store) AppendJournal(entries ...JournalEntry) {
	s.JournalEntries = append(s.JournalEntries, entries...)
}

// AppendAudit appends one immutable action record.
func (s *Store) AppendAudit(actor, action, docID, details string) {
	s.AuditLog = append(s.AuditLog, AuditEntry{
		Timestamp: time.Now(),
		Actor:     actor,
		Action:    action,
		DocID:     docID,
		Details:   details,
	})
}

// FindDocument returns the document with the given id, or nil.
func (s *Store) FindDocument(id string) *Document {
	for i := range s.Documents {
		if s.Documents[i].ID == id {
			return &s.Documents[i]
		}
	}
	return nil
}

// FindDocumentByNumber returns the document with the given doc_number,
// or nil.
func (s *Store) FindDocumentByNumber(number string) *Document {
	for i := range s.Documents {
		if s.Documents[i].DocNumber == number {
			return &s.Documents[i]
		}
	}
	return nil
}

// LinesFor returns the line items belonging to a document.
func (s *Store) LinesFor(docID string) []LineItem {
	var lines []LineItem
	for _, li := range s.LineItems {
		if li.DocumentID == docID {
			lines = append(lines, li)
		}
	}
	return lines
}

// FindAccount resolves an account code against the chart of accounts,
// or nil when the code is unknown.
func (s *Store) FindAccount(code string) *Account {
	for i := range s.ChartOfAccounts {
		if s.ChartOfAccounts[i].Code == code {
			return &s.ChartOfAccounts[i]
		}
	}
	return nil
}

// FindVendor returns the vendor master record with the given id, or nil.
func (s *Store) FindVendor(id string) *Counterparty {
	for i := range s.Vendors {
		if s.Vendors[i].ID == id {
			return &s.Vendors[i]
		}
	}
	return nil
}

// FindCustomer returns the customer master record with the given id, or nil.
func (s *Store) FindCustomer(id string) *Counterparty {
	for i := range s.Customers {
		if s.Customers[i].ID == id {
			return &s.Customers[i]
		}
	}
	return nil
}

// FindAP returns the AP subledger row for a document, or nil.
func (s *Store) FindAP(docID string) *SubledgerEntry {
	for i := range s.AP {
		if s.AP[i].DocID == docID {
			return &s.AP[i]
		}
	}
	return nil
}

// FindAR returns the AR subledger row for a document, or nil.
func (s *Store) FindAR(docID string) *SubledgerEntry {
	for i := range s.AR {
		if s.AR[i].DocID == docID {
			return &s.AR[i]
		}
	}
	return nil
}

// RateOn returns the most recent FX rate for a pair with date <= the
// target date, time-sliced lookup over the read-only reference series.
func (s *Store) RateOn(pair string, on Date) (float64, bool) {
	var (
		best  FXRate
		found bool
	)
	for _, r := range s.FXRates {
		if r.Pair != pair || r.Date.After(on.Time) {
			continue
		}
		if !found || r.Date.After(best.Date.Time) {
			best = r
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return best.Rate, true
}

// JournalFor returns all journal entries posted for a document.
func (s *Store) JournalFor(docID string) []JournalEntry {
	var entries []JournalEntry
	for _, je := range s.JournalEntries {
		if je.DocID == docID {
			entries = append(entries, je)
		}
	}
	return entries
}
