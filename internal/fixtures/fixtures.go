// Package fixtures loads and saves the ledger store as one YAML bundle
// keyed by table name. Saving after a run keeps REVIEW_PENDING
// documents durable until the external review action resumes them.
package fixtures

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"ledgerpipe/internal/ledger"
)

// Bundle mirrors the store's named tables on disk.
type Bundle struct {
	Documents       []ledger.Document        `yaml:"documents"`
	LineItems       []ledger.LineItem        `yaml:"line_items"`
	JournalEntries  []ledger.JournalEntry    `yaml:"journal_entries"`
	AP              []ledger.SubledgerEntry  `yaml:"ap"`
	AR              []ledger.SubledgerEntry  `yaml:"ar"`
	FXRates         []ledger.FXRate          `yaml:"fx_rates"`
	ChartOfAccounts []ledger.Account         `yaml:"chart_of_accounts"`
	Vendors         []ledger.Counterparty    `yaml:"vendors"`
	Customers       []ledger.Counterparty    `yaml:"customers"`
	BankFeed        []ledger.BankTransaction `yaml:"bank_feed"`
	AuditLog        []ledger.AuditEntry      `yaml:"audit_log"`
}

// tables maps bundle fields to store table names.
func (b *Bundle) tables() map[string]interface{} {
	return map[string]interface{}{
		"Documents":       b.Documents,
		"LineItems":       b.LineItems,
		"JournalEntries":  b.JournalEntries,
		"AP":              b.AP,
		"AR":              b.AR,
		"FXRates":         b.FXRates,
		"ChartOfAccounts": b.ChartOfAccounts,
		"Vendors":         b.Vendors,
		"Customers":       b.Customers,
		"BankFeed":        b.BankFeed,
		"AuditLog":        b.AuditLog,
	}
}

// Load reads a bundle file and builds a store from it.
func Load(path string) (*ledger.Store, error) {
	const op = "Load"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read ledger file: %w", op, err)
	}

	var bundle Bundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("%s: failed to parse ledger file: %w", op, err)
	}

	store := ledger.NewStore()
	for name, rows := range bundle.tables() {
		if err := store.ReplaceTable(name, rows); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return store, nil
}

// Save writes the store's tables back to a bundle file.
func Save(path string, store *ledger.Store) error {
	const op = "Save"

	bundle := Bundle{
		Documents:       store.Documents,
		LineItems:       store.LineItems,
		JournalEntries:  store.JournalEntries,
		AP:              store.AP,
		AR:              store.AR,
		FXRates:         store.FXRates,
		ChartOfAccounts: store.ChartOfAccounts,
		Vendors:         store.Vendors,
		Customers:       store.Customers,
		BankFeed:        store.BankFeed,
		AuditLog:        store.AuditLog,
	}

	data, err := yaml.Marshal(&bundle)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal ledger: %w", op, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%s: failed to write ledger file: %w", op, err)
	}
	return nil
}
