package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brojonat/shardpay/service/assistant"
	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/db"
	"github.com/brojonat/shardpay/service/split"
	"github.com/brojonat/shardpay/service/txn"
)

const maxRequestBodySize = 1 << 20 // 1MB

// statusForError maps a typed failure to an HTTP status and the message
// shown to the user.
func statusForError(err error) (int, string) {
	var ve *chain.ValidationError
	var pe *assistant.ParseError
	var ce *chain.ContractCallError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, chain.Describe(err)
	case errors.Is(err, chain.ErrProviderMissing):
		return http.StatusServiceUnavailable, chain.Describe(err)
	case errors.Is(err, chain.ErrUserRejected):
		return http.StatusForbidden, chain.Describe(err)
	case errors.Is(err, chain.ErrNotConnected):
		return http.StatusConflict, chain.Describe(err)
	case errors.Is(err, chain.ErrWrongNetwork), errors.Is(err, chain.ErrUnrecognizedChain):
		return http.StatusConflict, chain.Describe(err)
	case errors.Is(err, chain.ErrConfirmationTimeout):
		return http.StatusGatewayTimeout, chain.Describe(err)
	case errors.Is(err, chain.ErrReverted):
		return http.StatusUnprocessableEntity, chain.Describe(err)
	case errors.As(err, &ce):
		return http.StatusBadGateway, chain.Describe(err)
	case errors.Is(err, split.ErrDispatchInProgress):
		return http.StatusConflict, err.Error()
	case errors.Is(err, split.ErrParticipantNotFound), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &pe):
		return http.StatusUnprocessableEntity, "Could not parse the receipt. Please try again or enter the details manually."
	case errors.Is(err, assistant.ErrEmptyResponse):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{"error": message}, statusCode)
}

// writeDomainError maps err and logs unexpected failures.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, msg := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, msg, status)
}

// txResponse carries a transaction record and, on failure, the error.
type txResponse struct {
	Record *txn.Record `json:"record,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// writeTxResult reports a submission. A record is included even on
// failure when the transaction was broadcast.
func writeTxResult(w http.ResponseWriter, r *http.Request, logger *slog.Logger, rec *txn.Record, err error) {
	if err == nil {
		writeJSON(w, txResponse{Record: rec}, http.StatusOK)
		return
	}
	status, msg := statusForError(err)
	if status >= http.StatusInternalServerError && rec == nil {
		logger.ErrorContext(r.Context(), "transaction failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, txResponse{Record: rec, Error: msg}, status)
}

// txContext is the context for on-chain work started by a request. It keeps
// the request's values but not its cancellation: once broadcast, a
// transaction runs to confirmation or to the submitter's timeout even if
// the client goes away.
func txContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// decodeJSON reads a size-limited JSON body into dst. It writes the error
// response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.DebugContext(r.Context(), "failed to decode request", "path", r.URL.Path, "error", err)
		if strings.Contains(err.Error(), "http: request body too large") {
			writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
		return false
	}
	return true
}
