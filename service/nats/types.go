package nats

import (
	"strings"
	"time"

	"github.com/brojonat/shardpay/service/txn"
)

// TransactionEvent is a settled transaction as published to NATS on
// "txns.{wallet_address}".
type TransactionEvent struct {
	ID          string `json:"id"`
	Hash        string `json:"hash"`
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number,omitempty"`

	// WalletAddress is the signing wallet, lowercased.
	WalletAddress string  `json:"wallet_address"`
	Counterparty  *string `json:"counterparty,omitempty"`

	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Amount   string `json:"amount,omitempty"`
	Currency string `json:"currency"`
	Memo     string `json:"memo,omitempty"`

	SubmittedAt time.Time  `json:"submitted_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ExplorerURL string     `json:"explorer_url,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// FromRecord converts a transaction record to an event.
func FromRecord(rec txn.Record) *TransactionEvent {
	event := &TransactionEvent{
		ID:            rec.ID,
		ChainID:       rec.ChainID,
		BlockNumber:   rec.BlockNumber,
		WalletAddress: strings.ToLower(rec.From),
		Counterparty:  rec.Counterparty,
		Kind:          string(rec.Kind),
		Status:        string(rec.Status),
		Amount:        rec.Amount,
		Currency:      rec.Currency,
		SubmittedAt:   rec.SubmittedAt,
		ConfirmedAt:   rec.ConfirmedAt,
		ExplorerURL:   rec.ExplorerURL,
		PublishedAt:   time.Now().UTC(),
	}
	if rec.ReceiptHash != nil {
		event.Hash = *rec.ReceiptHash
	}
	if rec.Memo != nil {
		event.Memo = *rec.Memo
	}
	return event
}

// Subject returns the subject events for address are published on.
func Subject(address string) string {
	return "txns." + strings.ToLower(address)
}
