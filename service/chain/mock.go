package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MockRPC is an in-memory RPCClient for tests. Receipts are registered by
// hand; until then a transaction looks pending.
type MockRPC struct {
	mu sync.Mutex

	chainID     uint64
	blockNumber uint64
	balances    map[common.Address]*big.Int
	receipts    map[common.Hash]*types.Receipt
	logs        []types.Log
	errs        map[string]error
	calls       map[string]int
	callHandler func(msg ethereum.CallMsg) ([]byte, error)
}

// NewMockRPC creates a mock node for chainID.
func NewMockRPC(chainID uint64) *MockRPC {
	return &MockRPC{
		chainID:     chainID,
		blockNumber: 100,
		balances:    make(map[common.Address]*big.Int),
		receipts:    make(map[common.Hash]*types.Receipt),
		errs:        make(map[string]error),
		calls:       make(map[string]int),
	}
}

func (m *MockRPC) begin(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.errs[method]
}

func (m *MockRPC) ChainID(ctx context.Context) (*big.Int, error) {
	if err := m.begin("eth_chainId"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).SetUint64(m.chainID), nil
}

func (m *MockRPC) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if err := m.begin("eth_getBalance"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (m *MockRPC) BlockNumber(ctx context.Context) (uint64, error) {
	if err := m.begin("eth_blockNumber"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blockNumber, nil
}

func (m *MockRPC) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if err := m.begin("eth_getLogs"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Log
	for _, l := range m.logs {
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *MockRPC) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	if err := m.begin("eth_getTransactionByHash"); err != nil {
		return nil, false, err
	}
	return nil, false, ethereum.NotFound
}

func (m *MockRPC) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := m.begin("eth_getTransactionReceipt"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (m *MockRPC) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := m.begin("eth_getBlockByNumber"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := new(big.Int).SetUint64(m.blockNumber)
	if number != nil {
		n = new(big.Int).Set(number)
	}
	return &types.Header{Number: n, Time: 1700000000 + n.Uint64()*6}, nil
}

func (m *MockRPC) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := m.begin("eth_call"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	h := m.callHandler
	m.mu.Unlock()
	if h == nil {
		return nil, ethereum.NotFound
	}
	return h(msg)
}

// SetReceipt mines hash in the next block with the given outcome.
func (m *MockRPC) SetReceipt(hash common.Hash, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockNumber++
	status := types.ReceiptStatusFailed
	if success {
		status = types.ReceiptStatusSuccessful
	}
	m.receipts[hash] = &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(m.blockNumber),
		GasUsed:     21000,
	}
}

// SetBalance sets the native balance of account.
func (m *MockRPC) SetBalance(account common.Address, balance *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = new(big.Int).Set(balance)
}

// SetCallHandler installs the function answering eth_call.
func (m *MockRPC) SetCallHandler(fn func(msg ethereum.CallMsg) ([]byte, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callHandler = fn
}

// AddLog appends a log returned by FilterLogs.
func (m *MockRPC) AddLog(l types.Log) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
}

// SetError makes method fail with err. A nil err clears it.
func (m *MockRPC) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
		return
	}
	m.errs[method] = err
}

// Calls returns how many times method was invoked.
func (m *MockRPC) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

var _ RPCClient = (*MockRPC)(nil)
