package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"ledgerpipe/internal/ledger"
	"ledgerpipe/internal/logger"
)

// ChatClient implements all three capabilities against the OpenAI chat
// completion API. Each call is bounded by the configured timeout.
type ChatClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewChatClient creates a ChatClient with a per-call timeout.
func NewChatClient(client *openai.Client, model string, timeout time.Duration) *ChatClient {
	return &ChatClient{
		client:  client,
		model:   model,
		timeout: timeout,
		log:     logger.WithComponent("oracle-openai"),
	}
}

// Explain asks for a single concise remediation recommendation for a
// document that failed a business rule.
func (c *ChatClient) Explain(ctx context.Context, doc ledger.Document, reason string) (string, error) {
	const op = "Explain"

	snapshot, err := json.MarshalIndent(documentSnapshot(doc), "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal document snapshot: %w", op, err)
	}

	prompt := fmt.Sprintf(`You are a senior accounting analyst. Analyze the document data and the error to determine the root cause and suggest the required manual action. The output MUST be a single, concise recommendation prefixed with 'FIX: '. Do not add any other text.
The fix should be highly specific to the missing data (e.g., 'FIX: Look up 2025-10-05 IDR/MYR rate').

Error: %s
Document Data:
%s`, reason, snapshot)

	response, err := c.complete(ctx, prompt, 0.0, 300)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return stripFences(response), nil
}

// VerifyPosting asks whether the proposed GL hints are safe to post.
// Only clearly and dangerously wrong hints should be rejected.
func (c *ChatClient) VerifyPosting(ctx context.Context, doc ledger.Document, lines []ledger.LineItem) (bool, error) {
	const op = "VerifyPosting"

	var lineData []map[string]interface{}
	for _, line := range lines {
		lineData = append(lineData, map[string]interface{}{
			"description": line.Description,
			"gl_code":     line.GLHint.Code,
			"gl_name":     line.GLHint.Name,
		})
	}
	linesJSON, err := json.MarshalIndent(lineData, "", "  ")
	if err != nil {
		return false, fmt.Errorf("%s: failed to marshal line items: %w", op, err)
	}

	prompt := fmt.Sprintf(`You are an expert auditor. Review the following proposed General Ledger (GL) hints for a document. Determine if any GL hint is HIGHLY INAPPROPRIATE for the document type and description.
Output only the word 'FALSE' if a GL hint is clearly and dangerously wrong (e.g., using a Revenue account for an Expense). Otherwise, output 'TRUE' to approve the posting. The vast majority of hints should be TRUE.

Document Type: %s, Counterparty Type: %s
Proposed Line Items:
%s`, doc.DocType, doc.CounterpartyType, linesJSON)

	response, err := c.complete(ctx, prompt, 0.0, 50)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	verified := parseVerification(response)
	c.log.Debug().
		Str("doc_id", doc.ID).
		Bool("verified", verified).
		Msg("Received posting verification result")
	return verified, nil
}

// SuggestMatch asks for the best matching doc_number for a bank
// transaction among the open subledger items.
func (c *ChatClient) SuggestMatch(ctx context.Context, txn ledger.BankTransaction, open []OpenItem) (string, error) {
	const op = "SuggestMatch"

	if len(open) == 0 {
		return "", nil
	}

	openJSON, err := json.MarshalIndent(open, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal open items: %w", op, err)
	}

	prompt := fmt.Sprintf(`Bank Transaction: Date=%s, Amount=%.2f, Memo='%s'.
Outstanding Documents:
%s
Identify the single best matching 'doc_number' from the list, considering amount, memo hints and due date. If no good match is found (e.g., amount mismatch > 1%%), respond with 'UNMATCHED'. Respond with the doc_number or UNMATCHED only.`, txn.Date, txn.Amount, txn.Memo, openJSON)

	response, err := c.complete(ctx, prompt, 0.1, 100)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	result := stripFences(response)
	if result == "UNMATCHED" || result == "NONE" || result == "" {
		return "", nil
	}
	c.log.Debug().
		Str("memo", txn.Memo).
		Str("suggestion", result).
		Msg("Received fuzzy match suggestion")
	return result, nil
}

// complete sends one prompt and returns the trimmed response text.
func (c *ChatClient) complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	const op = "complete"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s: chat completion request failed: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no response choices", op)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// parseVerification interprets a TRUE/FALSE verdict, approving unless
// the response explicitly and exclusively says FALSE.
func parseVerification(response string) bool {
	upper := strings.ToUpper(stripFences(response))
	return strings.Contains(upper, "TRUE") || !strings.Contains(upper, "FALSE")
}

// stripFences removes markdown code fences some models wrap answers in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

// documentSnapshot flattens the fields worth showing an analyst.
func documentSnapshot(doc ledger.Document) map[string]interface{} {
	return map[string]interface{}{
		"id":                doc.ID,
		"doc_type":          doc.DocType,
		"doc_number":        doc.DocNumber,
		"counterparty_id":   doc.CounterpartyID,
		"counterparty_type": doc.CounterpartyType,
		"issue_date":        doc.IssueDate.String(),
		"due_date":          doc.DueDate.String(),
		"currency":          doc.Currency,
		"subtotal":          doc.Subtotal,
		"tax_amount":        doc.TaxAmount,
		"shipping":          doc.Shipping,
		"total":             doc.Total,
		"status":            doc.Status,
	}
}
