package server

import (
	"log/slog"
	"net/http"

	"github.com/brojonat/shardpay/service/assistant"
	"github.com/brojonat/shardpay/service/split"
)

type parseReceiptRequest struct {
	Receipt string   `json:"receipt"`
	Names   []string `json:"names"`
	// Apply writes the suggested total and shares onto the bill.
	Apply bool `json:"apply"`
}

type parseReceiptResponse struct {
	Suggestion *assistant.ReceiptSplit `json:"suggestion"`
	Bill       *split.View             `json:"bill,omitempty"`
}

// handleParseReceipt asks the model for a share split of a receipt. When
// no names are given the bill's participants are used.
// POST /api/v1/receipts/parse
func handleParseReceipt(a AssistantService, bill *split.Bill, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			writeError(w, "assistant is not configured", http.StatusServiceUnavailable)
			return
		}
		var req parseReceiptRequest
		if !decodeJSON(w, r, logger, &req) {
			return
		}

		names := req.Names
		if len(names) == 0 {
			for _, p := range bill.View().Participants {
				if p.Name != "" {
					names = append(names, p.Name)
				}
			}
		}

		suggestion, err := a.ParseReceipt(r.Context(), req.Receipt, names)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}

		resp := parseReceiptResponse{Suggestion: suggestion}
		if req.Apply {
			if err := bill.ApplyShares(suggestion.TotalAmount, suggestion.Shares()); err != nil {
				writeDomainError(w, r, logger, err)
				return
			}
			v := bill.View()
			resp.Bill = &v
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

// POST /api/v1/assistant/ask
func handleAsk(a AssistantService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			writeError(w, "assistant is not configured", http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Question string `json:"question"`
		}
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		answer, err := a.Ask(r.Context(), req.Question)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, map[string]string{"answer": answer}, http.StatusOK)
	})
}
