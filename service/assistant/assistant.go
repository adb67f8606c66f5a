package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/metrics"
)

// Assistant offers receipt parsing and finance chat on top of a Completer.
type Assistant struct {
	completer Completer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func New(c Completer, m *metrics.Metrics, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		completer: c,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// ParseReceipt asks the model to split receipt among names and validates
// the answer. An untrustworthy answer is a *ParseError.
func (a *Assistant) ParseReceipt(ctx context.Context, receipt string, names []string) (*ReceiptSplit, error) {
	receipt = strings.TrimSpace(receipt)
	if receipt == "" {
		return nil, chain.NewValidationError("receipt", "receipt text is required")
	}
	var cleaned []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return nil, chain.NewValidationError("participants", "at least one participant name is required")
	}

	text, err := a.completer.Complete(ctx, buildReceiptPrompt(receipt, cleaned), receiptTemperature)
	if err != nil {
		a.metrics.RecordAssistantRequest("parse_receipt", err)
		a.logger.ErrorContext(ctx, "receipt completion failed", "error", err)
		return nil, err
	}
	split, err := ParseReceiptResponse(text)
	a.metrics.RecordAssistantRequest("parse_receipt", err)
	if err != nil {
		a.logger.WarnContext(ctx, "unusable receipt response", "error", err)
		return nil, err
	}
	a.logger.InfoContext(ctx, "parsed receipt",
		"total", split.TotalAmount.String(),
		"participants", len(split.Participants))
	return split, nil
}

// Ask answers a personal-finance question.
func (a *Assistant) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", chain.NewValidationError("question", "question is required")
	}
	answer, err := a.completer.Complete(ctx, buildChatPrompt(question, a.now()), chatTemperature)
	a.metrics.RecordAssistantRequest("ask", err)
	if err != nil {
		a.logger.ErrorContext(ctx, "chat completion failed", "error", err)
		return "", err
	}
	return answer, nil
}
