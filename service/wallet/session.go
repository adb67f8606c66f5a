package wallet

import (
	"math/big"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/ethereum/go-ethereum/common"
)

// State is the connection state of a wallet session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Session is a snapshot of the active wallet connection. Address, ChainID and
// Balance are zero values while disconnected.
type Session struct {
	Address common.Address `json:"address"`
	ChainID uint64         `json:"chain_id"`
	Balance *big.Int       `json:"balance"`
	State   State          `json:"state"`

	// Epoch increases on every identity change (connect, disconnect,
	// account switch, chain switch). Readers compare epochs to discard
	// results computed against an older session.
	Epoch uint64 `json:"epoch"`

	// BalanceWarning is set when the last balance refresh failed and
	// Balance is stale.
	BalanceWarning string `json:"balance_warning,omitempty"`
}

// Connected reports whether the session has an active account.
func (s Session) Connected() bool {
	return s.State == StateConnected
}

// DisplayAddress is the truncated form of Address, or "" when disconnected.
func (s Session) DisplayAddress() string {
	if !s.Connected() {
		return ""
	}
	return chain.TruncateAddress(s.Address.Hex())
}

// DisplayBalance renders Balance at four decimal places.
func (s Session) DisplayBalance(decimals int32) string {
	if s.Balance == nil {
		return ""
	}
	return chain.DisplayAmount(s.Balance, decimals)
}

func (s Session) clone() Session {
	if s.Balance != nil {
		s.Balance = new(big.Int).Set(s.Balance)
	}
	return s
}
