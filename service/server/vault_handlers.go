package server

import (
	"log/slog"
	"net/http"
)

type vaultResponse struct {
	Summary interface{} `json:"summary"`
	Recent  interface{} `json:"recent"`
}

// GET /api/v1/vault
func handleGetVault(v VaultService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, vaultResponse{Summary: v.Summary(), Recent: v.Recent()}, http.StatusOK)
	})
}

// handleRefreshVault re-reads the vault for the connected wallet. A failed
// read keeps the last known values and reports the failure.
// POST /api/v1/vault/refresh
func handleRefreshVault(v VaultService, ws WalletService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := ws.Session()
		if !s.Connected() {
			writeError(w, "Connect a wallet first", http.StatusConflict)
			return
		}
		summary, err := v.Refresh(r.Context(), s.Address)
		if err != nil {
			status, msg := statusForError(err)
			logger.WarnContext(r.Context(), "vault refresh failed", "address", s.Address.Hex(), "error", err)
			writeJSON(w, map[string]interface{}{
				"error":   msg,
				"summary": summary,
			}, status)
			return
		}
		writeJSON(w, vaultResponse{Summary: summary, Recent: v.Recent()}, http.StatusOK)
	})
}

type amountRequest struct {
	Amount string `json:"amount"`
	Memo   string `json:"memo"`
}

// POST /api/v1/vault/goal
func handleSetGoal(v VaultService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req amountRequest
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		rec, err := v.SetGoal(txContext(r), req.Amount)
		writeTxResult(w, r, logger, rec, err)
	})
}

// POST /api/v1/vault/deposit
func handleDeposit(v VaultService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req amountRequest
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		rec, err := v.Deposit(txContext(r), req.Amount, req.Memo)
		writeTxResult(w, r, logger, rec, err)
	})
}

// POST /api/v1/vault/withdraw
func handleWithdraw(v VaultService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req amountRequest
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		rec, err := v.Withdraw(txContext(r), req.Amount)
		writeTxResult(w, r, logger, rec, err)
	})
}

// POST /api/v1/vault/micro-save
func handleSetMicroSave(v VaultService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		if req.Enabled == nil {
			writeError(w, "enabled is required", http.StatusBadRequest)
			return
		}
		rec, err := v.SetMicroSave(txContext(r), *req.Enabled)
		writeTxResult(w, r, logger, rec, err)
	})
}
