package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MockProvider is an in-memory Provider for tests. Errors can be injected
// per operation and events emitted by hand.
type MockProvider struct {
	mu sync.Mutex

	accounts    []common.Address
	authorized  bool
	chainID     uint64
	knownChains map[uint64]bool
	balances    map[balanceKey]*big.Int

	requestErr error
	balanceErr error
	sendErr    error
	switchErr  error
	addErr     error

	// OnSend, if set, is called for every accepted transaction after it
	// is assigned a hash.
	OnSend func(hash common.Hash, tx TxRequest)

	sent       []TxRequest
	addedChain []chain.Network
	calls      map[string]int
	handlers   map[int]EventHandler
	nextID     int
}

// NewMockProvider creates a provider on chainID exposing accounts once the
// user grants access. chainID is the only chain it initially knows.
func NewMockProvider(chainID uint64, accounts ...common.Address) *MockProvider {
	return &MockProvider{
		accounts:    accounts,
		chainID:     chainID,
		knownChains: map[uint64]bool{chainID: true},
		balances:    make(map[balanceKey]*big.Int),
		calls:       make(map[string]int),
		handlers:    make(map[int]EventHandler),
	}
}

func (p *MockProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["eth_requestAccounts"]++
	if p.requestErr != nil {
		return nil, p.requestErr
	}
	p.authorized = true
	return append([]common.Address(nil), p.accounts...), nil
}

func (p *MockProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["eth_accounts"]++
	if !p.authorized {
		return nil, nil
	}
	return append([]common.Address(nil), p.accounts...), nil
}

func (p *MockProvider) ChainID(ctx context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["eth_chainId"]++
	return p.chainID, nil
}

func (p *MockProvider) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["eth_getBalance"]++
	if p.balanceErr != nil {
		return nil, p.balanceErr
	}
	if b, ok := p.balances[balanceKey{p.chainID, address}]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (p *MockProvider) SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error) {
	p.mu.Lock()
	p.calls["eth_sendTransaction"]++
	if p.sendErr != nil {
		err := p.sendErr
		p.mu.Unlock()
		return common.Hash{}, err
	}
	p.sent = append(p.sent, tx)
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%d:%s", len(p.sent), tx.From.Hex())))
	onSend := p.OnSend
	p.mu.Unlock()

	if onSend != nil {
		onSend(hash, tx)
	}
	return hash, nil
}

func (p *MockProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["wallet_switchEthereumChain"]++
	if p.switchErr != nil {
		return p.switchErr
	}
	if !p.knownChains[chainID] {
		return chain.ErrUnrecognizedChain
	}
	p.chainID = chainID
	return nil
}

func (p *MockProvider) AddChain(ctx context.Context, network chain.Network) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["wallet_addEthereumChain"]++
	if p.addErr != nil {
		return p.addErr
	}
	p.knownChains[network.ChainID] = true
	p.addedChain = append(p.addedChain, network)
	return nil
}

func (p *MockProvider) Subscribe(h EventHandler) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = h
	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}
}

type balanceKey struct {
	chainID uint64
	address common.Address
}

// SetBalance sets the balance of address on the provider's current chain.
func (p *MockProvider) SetBalance(address common.Address, balance *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[balanceKey{p.chainID, address}] = new(big.Int).Set(balance)
}

// SetBalanceOn sets the balance of address on a specific chain.
func (p *MockProvider) SetBalanceOn(chainID uint64, address common.Address, balance *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[balanceKey{chainID, address}] = new(big.Int).Set(balance)
}

// SetAccounts replaces the accounts the wallet exposes.
func (p *MockProvider) SetAccounts(accounts ...common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = accounts
}

// SetChainID moves the wallet to chainID without emitting an event.
func (p *MockProvider) SetChainID(chainID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chainID = chainID
	p.knownChains[chainID] = true
}

// ForgetChain makes the wallet treat chainID as unknown.
func (p *MockProvider) ForgetChain(chainID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.knownChains, chainID)
}

func (p *MockProvider) SetRequestError(err error) { p.setErr(&p.requestErr, err) }
func (p *MockProvider) SetBalanceError(err error) { p.setErr(&p.balanceErr, err) }
func (p *MockProvider) SetSendError(err error)    { p.setErr(&p.sendErr, err) }
func (p *MockProvider) SetSwitchError(err error)  { p.setErr(&p.switchErr, err) }
func (p *MockProvider) SetAddError(err error)     { p.setErr(&p.addErr, err) }

func (p *MockProvider) setErr(dst *error, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*dst = err
}

// EmitAccountsChanged delivers an accountsChanged event to all subscribers.
func (p *MockProvider) EmitAccountsChanged(accounts ...common.Address) {
	p.mu.Lock()
	p.accounts = accounts
	handlers := p.snapshotHandlers()
	p.mu.Unlock()
	for _, h := range handlers {
		if h.AccountsChanged != nil {
			h.AccountsChanged(accounts)
		}
	}
}

// EmitChainChanged moves the wallet to chainID and notifies subscribers.
func (p *MockProvider) EmitChainChanged(chainID uint64) {
	p.mu.Lock()
	p.chainID = chainID
	p.knownChains[chainID] = true
	handlers := p.snapshotHandlers()
	p.mu.Unlock()
	for _, h := range handlers {
		if h.ChainChanged != nil {
			h.ChainChanged(chainID)
		}
	}
}

func (p *MockProvider) snapshotHandlers() []EventHandler {
	out := make([]EventHandler, 0, len(p.handlers))
	for _, h := range p.handlers {
		out = append(out, h)
	}
	return out
}

// Calls returns how many times method was invoked.
func (p *MockProvider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// Sent returns the transactions accepted so far.
func (p *MockProvider) Sent() []TxRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TxRequest(nil), p.sent...)
}

// AddedChains returns the networks passed to AddChain.
func (p *MockProvider) AddedChains() []chain.Network {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]chain.Network(nil), p.addedChain...)
}

// Subscribers returns the number of live subscriptions.
func (p *MockProvider) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers)
}

var _ Provider = (*MockProvider)(nil)
