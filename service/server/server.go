package server

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/brojonat/shardpay/service/assistant"
	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/db"
	"github.com/brojonat/shardpay/service/metrics"
	"github.com/brojonat/shardpay/service/split"
	"github.com/brojonat/shardpay/service/temporal"
	"github.com/brojonat/shardpay/service/txn"
	"github.com/brojonat/shardpay/service/vault"
	"github.com/brojonat/shardpay/service/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WalletService is the session capability the API exposes. *wallet.Manager
// implements it.
type WalletService interface {
	Network() chain.Network
	Session() wallet.Session
	Connect(ctx context.Context) (wallet.Session, error)
	Disconnect()
	RefreshBalance(ctx context.Context) error
	EnsureChain(ctx context.Context) error
}

// PaymentSubmitter submits single transactions. *txn.Submitter implements it.
type PaymentSubmitter interface {
	Submit(ctx context.Context, req txn.Request) (*txn.Record, error)
}

// VaultService is the savings vault capability. *vault.Synchronizer
// implements it.
type VaultService interface {
	Summary() vault.Summary
	Recent() []txn.Record
	Refresh(ctx context.Context, address common.Address) (vault.Summary, error)
	SetGoal(ctx context.Context, amount string) (*txn.Record, error)
	Deposit(ctx context.Context, amount, memo string) (*txn.Record, error)
	Withdraw(ctx context.Context, amount string) (*txn.Record, error)
	SetMicroSave(ctx context.Context, enabled bool) (*txn.Record, error)
}

// AssistantService is the AI helper. *assistant.Assistant implements it.
type AssistantService interface {
	ParseReceipt(ctx context.Context, receipt string, names []string) (*assistant.ReceiptSplit, error)
	Ask(ctx context.Context, question string) (string, error)
}

// TransactionLister reads the activity journal. *db.Store implements it.
type TransactionLister interface {
	ListTransactions(ctx context.Context, params db.ListTransactionsParams) ([]*txn.Record, error)
}

// Dependencies are the components the server routes to. Wallet, Payments,
// Vault, Bill and Dispatcher are required; the rest disable their routes
// when nil.
type Dependencies struct {
	Wallet     WalletService
	Payments   PaymentSubmitter
	Vault      VaultService
	Bill       *split.Bill
	Dispatcher *split.Dispatcher

	Settler   temporal.Settler
	Assistant AssistantService
	Journal   TransactionLister
	Stream    *SSEPublisher

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Server is the ShardPay HTTP API.
type Server struct {
	addr   string
	deps   Dependencies
	logger *slog.Logger
	server *http.Server
}

// New creates a server listening on addr.
func New(addr string, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{
		addr:   addr,
		deps:   deps,
		logger: deps.Logger,
	}
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	d := s.deps
	logger := s.logger
	mux := http.NewServeMux()

	route := func(pattern string, h http.Handler) {
		if d.Metrics != nil {
			h = metrics.HTTPMetricsMiddleware(d.Metrics, pattern)(h)
		}
		mux.Handle(pattern, h)
	}

	// Wallet session
	route("GET /api/v1/network", handleGetNetwork(d.Wallet))
	route("POST /api/v1/network/ensure", handleEnsureNetwork(d.Wallet, logger))
	route("GET /api/v1/session", handleGetSession(d.Wallet))
	route("POST /api/v1/session/connect", handleConnect(d.Wallet, logger))
	route("POST /api/v1/session/disconnect", handleDisconnect(d.Wallet, logger))
	route("POST /api/v1/session/refresh", handleRefreshBalance(d.Wallet, logger))

	// Payments
	route("POST /api/v1/payments", handleSubmitPayment(d.Payments, logger))

	// Vault
	route("GET /api/v1/vault", handleGetVault(d.Vault))
	route("POST /api/v1/vault/refresh", handleRefreshVault(d.Vault, d.Wallet, logger))
	route("POST /api/v1/vault/goal", handleSetGoal(d.Vault, logger))
	route("POST /api/v1/vault/deposit", handleDeposit(d.Vault, logger))
	route("POST /api/v1/vault/withdraw", handleWithdraw(d.Vault, logger))
	route("POST /api/v1/vault/micro-save", handleSetMicroSave(d.Vault, logger))

	// Split bill
	route("GET /api/v1/split", handleGetBill(d.Bill))
	route("PUT /api/v1/split/total", handleSetTotal(d.Bill, logger))
	route("POST /api/v1/split/participants", handleAddParticipant(d.Bill, logger))
	route("PATCH /api/v1/split/participants/{id}", handleUpdateParticipant(d.Bill, logger))
	route("DELETE /api/v1/split/participants/{id}", handleRemoveParticipant(d.Bill, logger))
	route("POST /api/v1/split/dispatch", handleDispatch(d.Bill, d.Dispatcher, logger))
	route("POST /api/v1/split/settle", handleSettle(d.Bill, d.Dispatcher, d.Settler, logger))

	// Assistant
	route("POST /api/v1/receipts/parse", handleParseReceipt(d.Assistant, d.Bill, logger))
	route("POST /api/v1/assistant/ask", handleAsk(d.Assistant, logger))

	// Activity history
	route("GET /api/v1/transactions", handleListTransactions(d.Journal, logger))

	if d.Stream != nil {
		mux.Handle("GET /api/v1/stream/transactions/{address}", handleStreamTransactions(d.Stream, d.Metrics, logger))
		mux.Handle("GET /api/v1/stream/transactions", handleStreamTransactions(d.Stream, d.Metrics, logger))
		logger.Info("SSE streaming endpoints enabled")
	} else {
		logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if d.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Submissions wait for confirmation and SSE streams stay open, so
		// there is no write timeout.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.deps.Stream != nil {
		s.deps.Stream.Close()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// sessionResponse is the JSON form of a wallet session.
type sessionResponse struct {
	State          string `json:"state"`
	Address        string `json:"address,omitempty"`
	DisplayAddress string `json:"display_address,omitempty"`
	ChainID        uint64 `json:"chain_id,omitempty"`
	Balance        string `json:"balance,omitempty"`
	DisplayBalance string `json:"display_balance,omitempty"`
	Currency       string `json:"currency"`
	Epoch          uint64 `json:"epoch"`
	BalanceWarning string `json:"balance_warning,omitempty"`
	OnNetwork      bool   `json:"on_network"`
}

func sessionToResponse(s wallet.Session, n chain.Network) sessionResponse {
	resp := sessionResponse{
		State:          string(s.State),
		Currency:       n.Currency.Symbol,
		Epoch:          s.Epoch,
		BalanceWarning: s.BalanceWarning,
	}
	if !s.Connected() {
		return resp
	}
	resp.Address = s.Address.Hex()
	resp.DisplayAddress = s.DisplayAddress()
	resp.ChainID = s.ChainID
	resp.OnNetwork = s.ChainID == n.ChainID
	if s.Balance != nil {
		resp.Balance = chain.FormatAmount(new(big.Int).Set(s.Balance), n.Currency.Decimals)
		resp.DisplayBalance = s.DisplayBalance(n.Currency.Decimals)
	}
	return resp
}
