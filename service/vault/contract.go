package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ABI is the external method surface of the savings vault.
const ABI = `[
	{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getUserBalance","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getGoal","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"setGoal","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"toggleMicroSave","stateMutability":"nonpayable","inputs":[{"name":"enabled","type":"bool"}],"outputs":[]},
	{"type":"function","name":"getMicroSaveStatus","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

// Method names.
const (
	MethodDeposit            = "deposit"
	MethodWithdraw           = "withdraw"
	MethodGetUserBalance     = "getUserBalance"
	MethodGetGoal            = "getGoal"
	MethodSetGoal            = "setGoal"
	MethodToggleMicroSave    = "toggleMicroSave"
	MethodGetMicroSaveStatus = "getMicroSaveStatus"
)

var errEmptyResult = errors.New("empty result (is the vault deployed on this chain?)")

// Caller performs read-only contract calls. *chain.Client implements it.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Contract binds the vault ABI to a deployed address. All amounts cross
// this boundary as integer base units.
type Contract struct {
	abi     abi.ABI
	address common.Address
	caller  Caller
}

// ParseABI returns the parsed vault ABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(ABI))
}

// NewContract binds the vault at address.
func NewContract(address common.Address, caller Caller) (*Contract, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse vault abi: %w", err)
	}
	return &Contract{abi: parsed, address: address, caller: caller}, nil
}

// Address returns the vault address.
func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, &chain.ContractCallError{Method: method, Err: err}
	}
	out, err := c.caller.Call(ctx, c.address, data)
	if err != nil {
		return nil, &chain.ContractCallError{Method: method, Err: err}
	}
	if len(out) == 0 {
		return nil, &chain.ContractCallError{Method: method, Err: errEmptyResult}
	}
	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, &chain.ContractCallError{Method: method, Err: err}
	}
	if len(values) != 1 {
		return nil, &chain.ContractCallError{Method: method, Err: fmt.Errorf("expected 1 output, got %d", len(values))}
	}
	return values, nil
}

func (c *Contract) callUint(ctx context.Context, method string, user common.Address) (*big.Int, error) {
	values, err := c.call(ctx, method, user)
	if err != nil {
		return nil, err
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, &chain.ContractCallError{Method: method, Err: fmt.Errorf("unexpected output type %T", values[0])}
	}
	return v, nil
}

// UserBalance returns the amount user has saved, in base units.
func (c *Contract) UserBalance(ctx context.Context, user common.Address) (*big.Int, error) {
	return c.callUint(ctx, MethodGetUserBalance, user)
}

// Goal returns user's savings goal, in base units.
func (c *Contract) Goal(ctx context.Context, user common.Address) (*big.Int, error) {
	return c.callUint(ctx, MethodGetGoal, user)
}

// MicroSaveStatus reports whether user has micro-save enabled.
func (c *Contract) MicroSaveStatus(ctx context.Context, user common.Address) (bool, error) {
	values, err := c.call(ctx, MethodGetMicroSaveStatus, user)
	if err != nil {
		return false, err
	}
	v, ok := values[0].(bool)
	if !ok {
		return false, &chain.ContractCallError{Method: MethodGetMicroSaveStatus, Err: fmt.Errorf("unexpected output type %T", values[0])}
	}
	return v, nil
}

// PackDeposit encodes deposit(amount).
func (c *Contract) PackDeposit(amount *big.Int) ([]byte, error) {
	return c.abi.Pack(MethodDeposit, amount)
}

// PackWithdraw encodes withdraw(amount).
func (c *Contract) PackWithdraw(amount *big.Int) ([]byte, error) {
	return c.abi.Pack(MethodWithdraw, amount)
}

// PackSetGoal encodes setGoal(amount).
func (c *Contract) PackSetGoal(amount *big.Int) ([]byte, error) {
	return c.abi.Pack(MethodSetGoal, amount)
}

// PackToggleMicroSave encodes toggleMicroSave(enabled).
func (c *Contract) PackToggleMicroSave(enabled bool) ([]byte, error) {
	return c.abi.Pack(MethodToggleMicroSave, enabled)
}
