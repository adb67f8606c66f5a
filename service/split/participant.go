package split

import (
	"fmt"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/txn"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus tracks one participant's payment. Only the Dispatcher
// changes it.
type PaymentStatus string

const (
	StatusIdle       PaymentStatus = "idle"
	StatusProcessing PaymentStatus = "processing"
	StatusSuccess    PaymentStatus = "success"
	StatusError      PaymentStatus = "error"
)

// Participant is one payee of a split bill. OwedAmount is derived from
// Share and the bill total.
type Participant struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	WalletAddress string          `json:"wallet_address,omitempty"`
	Share         float64         `json:"share"`
	OwedAmount    decimal.Decimal `json:"owed_amount"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	LastError     string          `json:"last_error,omitempty"`
	LastTxHash    string          `json:"last_tx_hash,omitempty"`
}

// NewParticipant creates an idle participant with a fresh id.
func NewParticipant(name, walletAddress string, share float64) Participant {
	return Participant{
		ID:            uuid.NewString(),
		Name:          name,
		WalletAddress: walletAddress,
		Share:         share,
		OwedAmount:    decimal.Zero,
		PaymentStatus: StatusIdle,
	}
}

// CheckEligibility reports why p cannot be paid, or nil. It never touches
// the network.
func CheckEligibility(p Participant) error {
	if p.WalletAddress == "" {
		return chain.NewValidationError("wallet_address", fmt.Sprintf("missing wallet address for %s", p.displayName()))
	}
	if _, err := chain.ValidateAddress(p.WalletAddress); err != nil {
		return chain.NewValidationError("wallet_address", fmt.Sprintf("invalid wallet address for %s", p.displayName()))
	}
	if p.OwedAmount.Sign() <= 0 {
		return chain.NewValidationError("owed_amount", fmt.Sprintf("invalid amount for %s", p.displayName()))
	}
	return nil
}

// PaymentRequest builds the transaction that pays p's share.
func PaymentRequest(p Participant) txn.Request {
	return txn.Request{
		Kind:   txn.KindSplit,
		To:     p.WalletAddress,
		Amount: p.OwedAmount.StringFixed(Places),
		Memo:   fmt.Sprintf("Payment for %s's share of the bill", p.displayName()),
	}
}

func (p Participant) displayName() string {
	if p.Name == "" {
		return "a participant"
	}
	return p.Name
}
