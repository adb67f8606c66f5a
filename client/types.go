package client

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session is the server's wallet session.
type Session struct {
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

// Connected reports whether the session has an account.
func (s *Session) Connected() bool {
	return s.State == "connected"
}

// Network describes the chain the server transacts on.
type Network struct {
	ChainID     uint64 `json:"chain_id"`
	ChainIDHex  string `json:"chain_id_hex"`
	Name        string `json:"name"`
	RPCURL      string `json:"rpc_url"`
	ExplorerURL string `json:"explorer_url"`
	Currency    struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals int32  `json:"decimals"`
	} `json:"currency"`
}

// Transaction is a submitted transaction record.
type Transaction struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	Amount       string     `json:"amount"`
	Currency     string     `json:"currency"`
	From         string     `json:"from"`
	Counterparty *string    `json:"counterparty,omitempty"`
	Memo         *string    `json:"memo,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	Status       string     `json:"status"`
	ReceiptHash  *string    `json:"receipt_hash,omitempty"`
	ChainID      uint64     `json:"chain_id"`
	BlockNumber  uint64     `json:"block_number,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	ExplorerURL  string     `json:"explorer_url,omitempty"`
}

// VaultSummary is the derived view of the connected wallet's vault.
type VaultSummary struct {
	Address          string          `json:"address,omitempty"`
	ChainID          uint64          `json:"chain_id,omitempty"`
	Goal             decimal.Decimal `json:"goal"`
	Saved            decimal.Decimal `json:"saved"`
	ProgressPct      float64         `json:"progress_pct"`
	MicroSaveEnabled bool            `json:"micro_save_enabled"`
	IsLoading        bool            `json:"is_loading"`
	LastError        string          `json:"last_error,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at,omitempty"`
}

// Vault is the vault summary with recent vault transactions.
type Vault struct {
	Summary VaultSummary  `json:"summary"`
	Recent  []Transaction `json:"recent"`
}

// Participant is one payee of the split bill.
type Participant struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	WalletAddress string          `json:"wallet_address,omitempty"`
	Share         float64         `json:"share"`
	OwedAmount    decimal.Decimal `json:"owed_amount"`
	PaymentStatus string          `json:"payment_status"`
	LastError     string          `json:"last_error,omitempty"`
	LastTxHash    string          `json:"last_tx_hash,omitempty"`
}

// Bill is the split bill.
type Bill struct {
	TotalAmount  decimal.Decimal `json:"total_amount"`
	TotalShares  float64         `json:"total_shares"`
	Participants []Participant   `json:"participants"`
}

// ParticipantUpdate carries the fields to change. Nil fields are left alone.
type ParticipantUpdate struct {
	Name          *string  `json:"name,omitempty"`
	WalletAddress *string  `json:"wallet_address,omitempty"`
	Share         *float64 `json:"share,omitempty"`
}

// Outcome is the result of one participant's payment.
type Outcome struct {
	ParticipantID string       `json:"participant_id"`
	Name          string       `json:"name"`
	Status        string       `json:"status"`
	Submitted     bool         `json:"submitted"`
	Record        *Transaction `json:"record,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// DispatchResult lists leg outcomes and the bill after the dispatch.
type DispatchResult struct {
	Outcomes []Outcome `json:"outcomes"`
	Bill     Bill      `json:"bill"`
}

// ShareSuggestion is one participant's suggested share of a receipt.
type ShareSuggestion struct {
	Name      string  `json:"name"`
	Share     float64 `json:"share"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// ReceiptSplit is a suggested split of a receipt.
type ReceiptSplit struct {
	TotalAmount  decimal.Decimal   `json:"total_amount"`
	Participants []ShareSuggestion `json:"participants"`
}

// ReceiptResult is the suggestion and, when applied, the updated bill.
type ReceiptResult struct {
	Suggestion *ReceiptSplit `json:"suggestion"`
	Bill       *Bill         `json:"bill,omitempty"`
}

// TransactionEvent is a settled transaction delivered over the stream.
type TransactionEvent struct {
	ID            string     `json:"id"`
	Hash          string     `json:"hash"`
	ChainID       uint64     `json:"chain_id"`
	BlockNumber   uint64     `json:"block_number,omitempty"`
	WalletAddress string     `json:"wallet_address"`
	Counterparty  *string    `json:"counterparty,omitempty"`
	Kind          string     `json:"kind"`
	Status        string     `json:"status"`
	Amount        string     `json:"amount,omitempty"`
	Currency      string     `json:"currency"`
	Memo          string     `json:"memo,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	ExplorerURL   string     `json:"explorer_url,omitempty"`
	PublishedAt   time.Time  `json:"published_at"`
}

// ListTransactionsOptions filters the transaction history.
type ListTransactionsOptions struct {
	Address string
	Kind    string
	Search  string
	Limit   int
	Offset  int
}
