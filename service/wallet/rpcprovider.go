package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 provider error codes.
const (
	codeUserRejected      = 4001
	codeUnauthorized      = 4100
	codeUnrecognizedChain = 4902
)

// RPCProvider is a Provider backed by a JSON-RPC endpoint that speaks the
// EIP-1193 method set (a wallet bridge or a dev node with unlocked accounts).
// It has no push channel, so account and chain changes are detected by
// polling while at least one subscriber is registered.
type RPCProvider struct {
	client       *rpc.Client
	pollInterval time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger

	mu       sync.Mutex
	handlers map[int]EventHandler
	nextID   int
	stopPoll context.CancelFunc
}

// DialProvider connects to a wallet JSON-RPC endpoint. A connection failure
// is reported as chain.ErrProviderMissing.
func DialProvider(ctx context.Context, url string, pollInterval time.Duration, m *metrics.Metrics, logger *slog.Logger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, &chain.ProviderMissingError{InstallURL: chain.MetaMaskInstallURL, Err: err}
	}
	return NewRPCProvider(client, pollInterval, m, logger), nil
}

// NewRPCProvider wraps an existing rpc client.
func NewRPCProvider(client *rpc.Client, pollInterval time.Duration, m *metrics.Metrics, logger *slog.Logger) *RPCProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &RPCProvider{
		client:       client,
		pollInterval: pollInterval,
		metrics:      m,
		logger:       logger,
		handlers:     make(map[int]EventHandler),
	}
}

func (p *RPCProvider) call(ctx context.Context, result any, method string, args ...any) error {
	err := p.client.CallContext(ctx, result, method, args...)
	if err != nil {
		p.logger.DebugContext(ctx, "wallet rpc call failed", "method", method, "error", err)
	}
	return mapProviderError(method, err)
}

// mapProviderError translates EIP-1193 error codes into the chain error
// taxonomy. Transport failures mean the provider is unreachable.
func mapProviderError(method string, err error) error {
	if err == nil {
		return nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected, codeUnauthorized:
			return fmt.Errorf("%s: %w: %s", method, chain.ErrUserRejected, rpcErr.Error())
		case codeUnrecognizedChain:
			return fmt.Errorf("%s: %w: %s", method, chain.ErrUnrecognizedChain, rpcErr.Error())
		}
		return fmt.Errorf("%s: %w", method, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", method, err)
	}
	return &chain.ProviderMissingError{InstallURL: chain.MetaMaskInstallURL, Err: fmt.Errorf("%s: %w", method, err)}
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.call(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (p *RPCProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.call(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (p *RPCProvider) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := p.call(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (p *RPCProvider) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	var bal hexutil.Big
	if err := p.call(ctx, &bal, "eth_getBalance", address, "latest"); err != nil {
		return nil, err
	}
	return bal.ToInt(), nil
}

type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

func (p *RPCProvider) SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error) {
	args := sendTxArgs{From: tx.From, To: tx.To, Data: tx.Data}
	if tx.Value != nil {
		args.Value = (*hexutil.Big)(tx.Value)
	}
	var hash common.Hash
	if err := p.call(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

type switchChainArgs struct {
	ChainID string `json:"chainId"`
}

func (p *RPCProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	var res json.RawMessage
	return p.call(ctx, &res, "wallet_switchEthereumChain", switchChainArgs{ChainID: hexutil.EncodeUint64(chainID)})
}

type addChainArgs struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    nativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

type nativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

func (p *RPCProvider) AddChain(ctx context.Context, network chain.Network) error {
	args := addChainArgs{
		ChainID:   network.ChainIDHex(),
		ChainName: network.Name,
		NativeCurrency: nativeCurrency{
			Name:     network.Currency.Name,
			Symbol:   network.Currency.Symbol,
			Decimals: network.Currency.Decimals,
		},
		RPCURLs: []string{network.RPCURL},
	}
	if network.ExplorerURL != "" {
		args.BlockExplorerURLs = []string{network.ExplorerURL}
	}
	var res json.RawMessage
	return p.call(ctx, &res, "wallet_addEthereumChain", args)
}

// Subscribe registers h. The first subscriber starts the poller and the
// last one to leave stops it. Unsubscribing never blocks.
func (p *RPCProvider) Subscribe(h EventHandler) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = h
	if p.stopPoll == nil {
		ctx, cancel := context.WithCancel(context.Background())
		p.stopPoll = cancel
		go p.poll(ctx)
	}
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.handlers, id)
			if len(p.handlers) == 0 && p.stopPoll != nil {
				p.stopPoll()
				p.stopPoll = nil
			}
		})
	}
}

func (p *RPCProvider) poll(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	var (
		primed       bool
		lastAccounts []common.Address
		lastChain    uint64
	)

	for {
		readCtx, cancel := context.WithTimeout(ctx, p.pollInterval)
		accounts, accErr := p.Accounts(readCtx)
		chainID, chainErr := p.ChainID(readCtx)
		cancel()

		if ctx.Err() != nil {
			return
		}

		if accErr == nil && chainErr == nil {
			if primed {
				if !sameAccounts(accounts, lastAccounts) {
					p.emit(func(h EventHandler) {
						if h.AccountsChanged != nil {
							h.AccountsChanged(accounts)
						}
					})
				}
				if chainID != lastChain {
					p.emit(func(h EventHandler) {
						if h.ChainChanged != nil {
							h.ChainChanged(chainID)
						}
					})
				}
			}
			primed = true
			lastAccounts = accounts
			lastChain = chainID
		} else {
			p.logger.Debug("wallet poll failed", "accounts_error", accErr, "chain_error", chainErr)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *RPCProvider) emit(fn func(EventHandler)) {
	p.mu.Lock()
	handlers := make([]EventHandler, 0, len(p.handlers))
	for _, h := range p.handlers {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()
	for _, h := range handlers {
		fn(h)
	}
}

// Close stops polling and closes the underlying client.
func (p *RPCProvider) Close() {
	p.mu.Lock()
	if p.stopPoll != nil {
		p.stopPoll()
		p.stopPoll = nil
	}
	p.handlers = make(map[int]EventHandler)
	p.mu.Unlock()
	p.client.Close()
}

func sameAccounts(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var _ Provider = (*RPCProvider)(nil)
