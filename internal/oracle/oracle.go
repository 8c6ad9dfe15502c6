// Package oracle defines the external decision-making capabilities the
// pipeline consults: exception explanation, posting verification and
// bank-transaction matching. Every capability is synchronous with a
// bounded timeout and one documented fallback, so pipeline liveness
// never depends on external availability.
package oracle

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"ledgerpipe/internal/ledger"
)

// FallbackRecommendation is used when the Explainer is unavailable.
const FallbackRecommendation = "Manual review required; automated analysis unavailable."

// Explainer produces a short remediation recommendation for a document
// stuck on a business exception. Fallback on failure: FallbackRecommendation.
type Explainer interface {
	Explain(ctx context.Context, doc ledger.Document, reason string) (string, error)
}

// Verifier answers whether a document's proposed GL postings are safe
// to commit. Fallback on failure: reject (unsafe).
type Verifier interface {
	VerifyPosting(ctx context.Context, doc ledger.Document, lines []ledger.LineItem) (bool, error)
}

// OpenItem is one outstanding or partially paid subledger row offered
// to the Matcher as a candidate.
type OpenItem struct {
	DocNumber string      `json:"doc_number"`
	AmountDue float64     `json:"amount_due"`
	DueDate   ledger.Date `json:"due_date"`
}

// Matcher suggests the doc_number of the open item a bank transaction
// settles, or "" when nothing matches. Fallback on failure: no match.
type Matcher interface {
	SuggestMatch(ctx context.Context, txn ledger.BankTransaction, open []OpenItem) (string, error)
}

// Suite bundles the three capabilities consumed by the pipeline stages.
type Suite struct {
	Explainer Explainer
	Verifier  Verifier
	Matcher   Matcher
}

// NewSuite builds the capability suite. Without an API key all three
// capabilities run in offline mode: explanations degrade to a static
// placeholder, verification approves and matching finds nothing.
func NewSuite(apiKey, model string, timeout time.Duration) Suite {
	if apiKey == "" {
		off := offline{}
		return Suite{Explainer: off, Verifier: off, Matcher: off}
	}
	client := NewChatClient(openai.NewClient(apiKey), model, timeout)
	return Suite{Explainer: client, Verifier: client, Matcher: client}
}

type offline struct{}

func (offline) Explain(context.Context, ledger.Document, string) (string, error) {
	return "Manual review required (offline mode).", nil
}

func (offline) VerifyPosting(context.Context, ledger.Document, []ledger.LineItem) (bool, error) {
	return true, nil
}

func (offline) SuggestMatch(context.Context, ledger.BankTransaction, []OpenItem) (string, error) {
	return "", nil
}
