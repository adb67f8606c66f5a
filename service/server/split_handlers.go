package server

import (
	"log/slog"
	"net/http"

	"github.com/brojonat/shardpay/service/split"
	"github.com/brojonat/shardpay/service/temporal"
	"github.com/shopspring/decimal"
)

// GET /api/v1/split
func handleGetBill(bill *split.Bill) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, bill.View(), http.StatusOK)
	})
}

// PUT /api/v1/split/total
func handleSetTotal(bill *split.Bill, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TotalAmount decimal.Decimal `json:"total_amount"`
		}
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		if err := bill.SetTotal(req.TotalAmount); err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, bill.View(), http.StatusOK)
	})
}

// POST /api/v1/split/participants
func handleAddParticipant(bill *split.Bill, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name          string   `json:"name"`
			WalletAddress string   `json:"wallet_address"`
			Share         *float64 `json:"share"`
		}
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		share := 1.0
		if req.Share != nil {
			share = *req.Share
		}
		p, err := bill.Add(req.Name, req.WalletAddress, share)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		logger.DebugContext(r.Context(), "participant added", "participant", p.ID)
		writeJSON(w, map[string]interface{}{
			"participant": p,
			"bill":        bill.View(),
		}, http.StatusCreated)
	})
}

// PATCH /api/v1/split/participants/{id}
func handleUpdateParticipant(bill *split.Bill, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var u split.ParticipantUpdate
		if !decodeJSON(w, r, logger, &u) {
			return
		}
		if err := bill.Update(r.PathValue("id"), u); err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, bill.View(), http.StatusOK)
	})
}

// DELETE /api/v1/split/participants/{id}
func handleRemoveParticipant(bill *split.Bill, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := bill.Remove(r.PathValue("id")); err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, bill.View(), http.StatusOK)
	})
}

type dispatchResponse struct {
	Outcomes []split.Outcome `json:"outcomes"`
	Bill     split.View      `json:"bill"`
}

// handleDispatch pays each participant in order. Leg failures are reported
// per participant; the request itself succeeds once the dispatch ran.
// POST /api/v1/split/dispatch
func handleDispatch(bill *split.Bill, d *split.Dispatcher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcomes, err := d.Dispatch(txContext(r), bill)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, dispatchResponse{Outcomes: outcomes, Bill: bill.View()}, http.StatusOK)
	})
}

// handleSettle runs the split through the durable settlement workflow and
// records the outcomes on the bill.
// POST /api/v1/split/settle
func handleSettle(bill *split.Bill, d *split.Dispatcher, settler temporal.Settler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if settler == nil {
			writeError(w, "durable settlement is not configured", http.StatusServiceUnavailable)
			return
		}

		legs := temporal.LegsFromView(bill.View())
		result, err := settler.SettleSplit(txContext(r), temporal.SplitSettlementInput{Legs: legs})
		if err != nil {
			logger.ErrorContext(r.Context(), "split settlement failed", "legs", len(legs), "error", err)
			writeError(w, "settlement failed: "+err.Error(), http.StatusBadGateway)
			return
		}

		outcomes := temporal.Outcomes(result)
		d.Settle(bill, outcomes)
		logger.InfoContext(r.Context(), "split settled",
			"succeeded", result.Succeeded,
			"failed", result.Failed,
		)
		writeJSON(w, dispatchResponse{Outcomes: outcomes, Bill: bill.View()}, http.StatusOK)
	})
}
