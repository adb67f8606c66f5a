package txn

import (
	"time"
)

// Kind identifies what a transaction does.
type Kind string

const (
	KindPayment         Kind = "payment"
	KindSplit           Kind = "split"
	KindDeposit         Kind = "deposit"
	KindWithdraw        Kind = "withdraw"
	KindGoalUpdate      Kind = "goal_update"
	KindMicroSaveToggle Kind = "micro_save_toggle"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPayment, KindSplit, KindDeposit, KindWithdraw, KindGoalUpdate, KindMicroSaveToggle:
		return true
	}
	return false
}

// TransfersValue reports whether the kind moves native currency to a
// recipient rather than calling the vault.
func (k Kind) TransfersValue() bool {
	return k == KindPayment || k == KindSplit
}

// NeedsAmount reports whether the kind carries a user-supplied amount.
func (k Kind) NeedsAmount() bool {
	return k != KindMicroSaveToggle
}

// Status is the confirmation state of a transaction.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Record is the normalized result of a submission. It starts Pending and is
// immutable once it reaches Success or Failed.
type Record struct {
	ID           string     `json:"id"`
	Kind         Kind       `json:"kind"`
	Amount       string     `json:"amount"`
	Currency     string     `json:"currency"`
	From         string     `json:"from"`
	Counterparty *string    `json:"counterparty,omitempty"`
	Memo         *string    `json:"memo,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	Status       Status     `json:"status"`
	ReceiptHash  *string    `json:"receipt_hash,omitempty"`
	ChainID      uint64     `json:"chain_id"`
	BlockNumber  uint64     `json:"block_number,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	ExplorerURL  string     `json:"explorer_url,omitempty"`
}

// Settled reports whether the chain has decided the outcome.
func (r Record) Settled() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
