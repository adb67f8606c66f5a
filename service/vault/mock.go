package vault

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// MockVault is an in-memory vault contract. HandleCall answers eth_call
// reads (see chain.MockRPC.SetCallHandler) and Apply executes writes sent
// through a mock wallet.
type MockVault struct {
	mu       sync.Mutex
	abi      abi.ABI
	balances map[common.Address]*big.Int
	goals    map[common.Address]*big.Int
	micro    map[common.Address]bool
	readErr  error
	reads    int
}

// NewMockVault creates an empty vault.
func NewMockVault() *MockVault {
	parsed, err := ParseABI()
	if err != nil {
		panic(err)
	}
	return &MockVault{
		abi:      parsed,
		balances: make(map[common.Address]*big.Int),
		goals:    make(map[common.Address]*big.Int),
		micro:    make(map[common.Address]bool),
	}
}

// HandleCall executes a read-only call.
func (v *MockVault) HandleCall(msg ethereum.CallMsg) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reads++
	if v.readErr != nil {
		return nil, v.readErr
	}
	method, args, err := v.decode(msg.Data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case MethodGetUserBalance:
		return method.Outputs.Pack(v.get(v.balances, args[0].(common.Address)))
	case MethodGetGoal:
		return method.Outputs.Pack(v.get(v.goals, args[0].(common.Address)))
	case MethodGetMicroSaveStatus:
		return method.Outputs.Pack(v.micro[args[0].(common.Address)])
	}
	return nil, fmt.Errorf("%s is not a view method", method.Name)
}

// Apply executes a state-changing call made by from. An error means the
// transaction reverts.
func (v *MockVault) Apply(from common.Address, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	method, args, err := v.decode(data)
	if err != nil {
		return err
	}

	switch method.Name {
	case MethodDeposit:
		v.balances[from] = new(big.Int).Add(v.get(v.balances, from), args[0].(*big.Int))
	case MethodWithdraw:
		bal := v.get(v.balances, from)
		amount := args[0].(*big.Int)
		if bal.Cmp(amount) < 0 {
			return errors.New("insufficient vault balance")
		}
		v.balances[from] = new(big.Int).Sub(bal, amount)
	case MethodSetGoal:
		v.goals[from] = new(big.Int).Set(args[0].(*big.Int))
	case MethodToggleMicroSave:
		v.micro[from] = args[0].(bool)
	default:
		return fmt.Errorf("%s is a view method", method.Name)
	}
	return nil
}

func (v *MockVault) decode(data []byte) (*abi.Method, []any, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("calldata too short")
	}
	method, err := v.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

func (v *MockVault) get(m map[common.Address]*big.Int, a common.Address) *big.Int {
	if b, ok := m[a]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// SetBalance sets user's saved amount.
func (v *MockVault) SetBalance(user common.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[user] = new(big.Int).Set(amount)
}

// SetGoal sets user's goal.
func (v *MockVault) SetGoal(user common.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.goals[user] = new(big.Int).Set(amount)
}

// SetMicroSave sets user's micro-save flag.
func (v *MockVault) SetMicroSave(user common.Address, enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.micro[user] = enabled
}

// SetReadError makes every read fail with err.
func (v *MockVault) SetReadError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.readErr = err
}

// Reads returns how many read calls were served.
func (v *MockVault) Reads() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reads
}
