package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DocType identifies the kind of source document flowing through the pipeline.
type DocType string

const (
	DocTypeInvoice       DocType = "invoice"
	DocTypeSalesInvoice  DocType = "sales_invoice"
	DocTypeBill          DocType = "bill"
	DocTypeUtilityBill   DocType = "utility_bill"
	DocTypeCreditNote    DocType = "credit_note"
	DocTypeQuotation     DocType = "quotation"
	DocTypeSalesOrder    DocType = "SO"
	DocTypePurchaseOrder DocType = "PO"
	DocTypeOther         DocType = "other"
)

// Document status vocabulary. A document moves
// extracted -> ready -> {posted | skipped | Exception: <reason>},
// and Exception -> REVIEW_PENDING -> ready via the review resume contract.
const (
	StatusExtracted     = "extracted"
	StatusReady         = "ready"
	StatusPosted        = "posted"
	StatusSkipped       = "skipped"
	StatusReviewPending = "REVIEW_PENDING"
)

// Subledger row status vocabulary.
const (
	SubledgerOutstanding    = "outstanding"
	SubledgerPartialPaid    = "partial_paid"
	SubledgerPaid           = "paid"
	SubledgerClearedApplied = "cleared_applied"
)

// Counterparty types.
const (
	CounterpartyVendor   = "vendor"
	CounterpartyCustomer = "customer"
)

// ExceptionStatus builds an exception status string from a reason.
func ExceptionStatus(reason string) string {
	return "Exception: " + reason
}

// IsException reports whether a status marks a document as a business
// exception that has not yet been routed to human review.
func IsException(status string) bool {
	return strings.Contains(status, "Exception") && status != StatusReviewPending
}

var dateLayouts = []string{"2006-01-02", "02/01/2006"}

// Date is a calendar date without a time-of-day component. The zero
// value means unknown.
type Date struct {
	time.Time
}

// NewDate builds a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in ISO (2006-01-02) or day-first (02/01/2006)
// layout.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{t}, nil
		}
	}
	return Date{}, fmt.Errorf("unparseable date %q", s)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// MarshalJSON renders the date in ISO layout.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// MarshalYAML renders the date in ISO layout.
func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts an empty string or any supported date layout.
func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Account is one row of the chart of accounts.
type Account struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Document is an accounting source document owned by the pipeline run.
type Document struct {
	ID               string  `yaml:"id"`
	DocType          DocType `yaml:"doc_type"`
	DocNumber        string  `yaml:"doc_number"`
	CounterpartyID   string  `yaml:"counterparty_id"`
	CounterpartyType string  `yaml:"counterparty_type"`
	IssueDate        Date    `yaml:"issue_date"`
	DueDate          Date    `yaml:"due_date"`
	Currency         string  `yaml:"currency"`
	Subtotal         float64 `yaml:"subtotal"`
	TaxLabel         string  `yaml:"tax_label"`
	TaxRate          float64 `yaml:"tax_rate"`
	TaxAmount        float64 `yaml:"tax_amount"`
	Shipping         float64 `yaml:"shipping"`
	Total            float64 `yaml:"total"`
	FXRate           float64 `yaml:"fx_rate"`
	BaseAmountTotal  float64 `yaml:"base_amount_total"`
	AmountDue        float64 `yaml:"amount_due"`
	Status           string  `yaml:"status"`
	Confidence       float64 `yaml:"confidence"`

	// AppliesTo holds the doc_number of the invoice a credit note nets
	// against during reconciliation.
	AppliesTo string `yaml:"applies_to,omitempty"`

	// Review routing state, populated when the document is handed to a
	// human reviewer.
	ReviewerEmail    string `yaml:"reviewer_email,omitempty"`
	ReviewURL        string `yaml:"review_url,omitempty"`
	ReviewToken      string `yaml:"review_token,omitempty"`
	ExceptionSummary string `yaml:"exception_summary,omitempty"`
}

// LineItem is one extracted line of a document. Immutable once created.
type LineItem struct {
	DocumentID  string  `yaml:"document_id"`
	LineNo      int     `yaml:"line_no"`
	Description string  `yaml:"description"`
	Qty         float64 `yaml:"qty"`
	UnitPrice   float64 `yaml:"unit_price"`
	LineTotal   float64 `yaml:"line_total"`
	GLHint      Account `yaml:"gl_hint"`
}

// JournalEntry is a single debit-or-credit line of a double-entry
// posting. Entries for one document must balance. Append-only.
type JournalEntry struct {
	JEID       string  `yaml:"je_id"`
	Date       Date    `yaml:"date"`
	DocID      string  `yaml:"doc_id"`
	LineNo     int     `yaml:"line_no"`
	Account    string  `yaml:"account"`
	Debit      float64 `yaml:"debit"`
	Credit     float64 `yaml:"credit"`
	Memo       string  `yaml:"memo"`
	FXRate     float64 `yaml:"fx_rate"`
	BaseAmount float64 `yaml:"base_amount"`
}

// SubledgerEntry is one AP or AR row tracking an open balance.
// AmountDue is monotonically non-increasing except for the one-time
// credit-note netting adjustment.
type SubledgerEntry struct {
	DocID          string  `yaml:"doc_id"`
	CounterpartyID string  `yaml:"counterparty_id"`
	Total          float64 `yaml:"total"`
	AmountDue      float64 `yaml:"amount_due"`
	DueDate        Date    `yaml:"due_date"`
	Status         string  `yaml:"status"`
	AppliesTo      string  `yaml:"applies_to,omitempty"`
	LastReminderAt string  `yaml:"last_reminder_at,omitempty"`
}

// FXRate is one row of the read-only currency reference series.
type FXRate struct {
	Pair string  `yaml:"pair"` // e.g. "IDR/MYR"
	Date Date    `yaml:"date"`
	Rate float64 `yaml:"rate"`
}

// Counterparty is a vendor or customer master record.
type Counterparty struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// BankTransaction is one bank feed row. The date stays raw so that
// malformed rows survive loading and can be skipped individually.
type BankTransaction struct {
	Date           string  `yaml:"date"`
	Amount         float64 `yaml:"amount"` // negative = outgoing, positive = incoming
	Memo           string  `yaml:"memo"`
	GuessDocNumber string  `yaml:"guess_doc_number"`
}

// AuditEntry is one immutable action record. Append-only.
type AuditEntry struct {
	Timestamp time.Time `yaml:"timestamp"`
	Actor     string    `yaml:"actor"`
	Action    string    `yaml:"action"`
	DocID     string    `yaml:"doc_id"`
	Details   string    `yaml:"details"`
}
