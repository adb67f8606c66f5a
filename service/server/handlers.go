package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/db"
	"github.com/brojonat/shardpay/service/txn"
)

// handleGetNetwork returns the network the wallet must be on.
// GET /api/v1/network
func handleGetNetwork(ws WalletService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ws.Network()
		writeJSON(w, map[string]interface{}{
			"chain_id":     n.ChainID,
			"chain_id_hex": n.ChainIDHex(),
			"name":         n.Name,
			"currency":     n.Currency,
			"rpc_url":      n.RPCURL,
			"explorer_url": n.ExplorerURL,
		}, http.StatusOK)
	})
}

// handleEnsureNetwork switches (or adds then switches) the wallet to the
// expected network.
// POST /api/v1/network/ensure
func handleEnsureNetwork(ws WalletService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ws.EnsureChain(r.Context()); err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, sessionToResponse(ws.Session(), ws.Network()), http.StatusOK)
	})
}

// GET /api/v1/session
func handleGetSession(ws WalletService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sessionToResponse(ws.Session(), ws.Network()), http.StatusOK)
	})
}

// handleConnect prompts the wallet for an account.
// POST /api/v1/session/connect
func handleConnect(ws WalletService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := ws.Connect(r.Context())
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		logger.InfoContext(r.Context(), "wallet connected", "address", s.Address.Hex(), "chain_id", s.ChainID)
		writeJSON(w, sessionToResponse(s, ws.Network()), http.StatusOK)
	})
}

// POST /api/v1/session/disconnect
func handleDisconnect(ws WalletService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.Disconnect()
		logger.InfoContext(r.Context(), "wallet disconnected")
		writeJSON(w, sessionToResponse(ws.Session(), ws.Network()), http.StatusOK)
	})
}

// handleRefreshBalance re-reads the balance. A failed read keeps the stale
// balance and is reported as a warning on the session.
// POST /api/v1/session/refresh
func handleRefreshBalance(ws WalletService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ws.RefreshBalance(r.Context()); err != nil {
			logger.WarnContext(r.Context(), "balance refresh failed", "error", err)
			if status, _ := statusForError(err); status == http.StatusConflict {
				writeDomainError(w, r, logger, err)
				return
			}
		}
		writeJSON(w, sessionToResponse(ws.Session(), ws.Network()), http.StatusOK)
	})
}

// handleSubmitPayment sends native currency with an optional memo.
// POST /api/v1/payments
func handleSubmitPayment(p PaymentSubmitter, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			To     string `json:"to"`
			Amount string `json:"amount"`
			Memo   string `json:"memo"`
		}
		if !decodeJSON(w, r, logger, &req) {
			return
		}

		rec, err := p.Submit(txContext(r), txn.Request{
			Kind:   txn.KindPayment,
			To:     strings.TrimSpace(req.To),
			Amount: req.Amount,
			Memo:   req.Memo,
		})
		if err == nil {
			logger.InfoContext(r.Context(), "payment confirmed",
				"to", req.To,
				"amount", req.Amount,
				"tx_hash", *rec.ReceiptHash,
			)
		}
		writeTxResult(w, r, logger, rec, err)
	})
}

// handleListTransactions lists the activity journal.
// GET /api/v1/transactions?address=&kind=&search=&limit=&offset=
func handleListTransactions(journal TransactionLister, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			writeError(w, "transaction history is not configured", http.StatusServiceUnavailable)
			return
		}
		query := r.URL.Query()

		address := query.Get("address")
		if address != "" {
			if _, err := chain.ValidateAddress(address); err != nil {
				writeDomainError(w, r, logger, err)
				return
			}
		}

		kind := query.Get("kind")
		if kind != "" && !txn.Kind(kind).Valid() {
			writeError(w, "invalid kind: must be one of payment, split, deposit, withdraw, goal_update, micro_save_toggle", http.StatusBadRequest)
			return
		}

		limit := int32(db.DefaultListLimit)
		if limitStr := query.Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil {
				writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsed < 1 {
				writeError(w, "limit must be at least 1", http.StatusBadRequest)
				return
			}
			if parsed > db.MaxListLimit {
				writeError(w, "limit cannot exceed "+strconv.Itoa(db.MaxListLimit), http.StatusBadRequest)
				return
			}
			limit = int32(parsed)
		}

		offset := int32(0)
		if offsetStr := query.Get("offset"); offsetStr != "" {
			parsed, err := strconv.Atoi(offsetStr)
			if err != nil {
				writeError(w, "invalid offset parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsed < 0 {
				writeError(w, "offset cannot be negative", http.StatusBadRequest)
				return
			}
			offset = int32(parsed)
		}

		records, err := journal.ListTransactions(r.Context(), db.ListTransactionsParams{
			Address: address,
			Kind:    kind,
			Search:  query.Get("search"),
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}

		logger.DebugContext(r.Context(), "transactions listed", "address", address, "count", len(records))
		writeJSON(w, map[string]interface{}{
			"transactions": records,
			"count":        len(records),
			"limit":        limit,
			"offset":       offset,
		}, http.StatusOK)
	})
}
