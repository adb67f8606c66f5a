package wallet

import (
	"context"
	"math/big"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/ethereum/go-ethereum/common"
)

// TxRequest is a transaction handed to the wallet for signing and broadcast.
type TxRequest struct {
	From  common.Address
	To    *common.Address
	Value *big.Int
	Data  []byte
}

// EventHandler receives provider notifications. Either field may be nil.
type EventHandler struct {
	AccountsChanged func(accounts []common.Address)
	ChainChanged    func(chainID uint64)
}

// Provider is the capability surface of an injected wallet (EIP-1193).
// Implementations translate user refusals into chain.ErrUserRejected and
// unknown chains into chain.ErrUnrecognizedChain.
type Provider interface {
	// RequestAccounts prompts the user for account access.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Accounts returns already-authorized accounts without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (uint64, error)
	Balance(ctx context.Context, address common.Address) (*big.Int, error)
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, network chain.Network) error
	// Subscribe registers h and returns the function that releases it.
	Subscribe(h EventHandler) (unsubscribe func())
}
