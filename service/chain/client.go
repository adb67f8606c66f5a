package chain

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/brojonat/shardpay/service/metrics"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RPCClient is the subset of chain RPC operations the application needs.
// *ethclient.Client satisfies it; tests substitute a fake.
type RPCClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client wraps an RPCClient with logging and metrics.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // label for metrics, usually the network name
}

// NewClient creates a chain client. If m is nil no metrics are recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

func (c *Client) observe(ctx context.Context, method string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, ethereum.NotFound) {
		status = "error"
		c.logger.WarnContext(ctx, "chain rpc call failed",
			"method", method,
			"endpoint", c.endpoint,
			"error", err,
		)
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
	}
}

// ChainID returns the chain id reported by the RPC node.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	start := time.Now()
	id, err := c.rpc.ChainID(ctx)
	c.observe(ctx, "eth_chainId", start, err)
	if err != nil {
		return 0, err
	}
	return id.Uint64(), nil
}

// Balance returns the latest native balance of address in base units.
func (c *Client) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	start := time.Now()
	bal, err := c.rpc.BalanceAt(ctx, address, nil)
	c.observe(ctx, "eth_getBalance", start, err)
	return bal, err
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	start := time.Now()
	n, err := c.rpc.BlockNumber(ctx)
	c.observe(ctx, "eth_blockNumber", start, err)
	return n, err
}

// Logs returns the logs matching q.
func (c *Client) Logs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	start := time.Now()
	logs, err := c.rpc.FilterLogs(ctx, q)
	c.observe(ctx, "eth_getLogs", start, err)
	return logs, err
}

// Transaction returns a transaction by hash and whether it is still pending.
func (c *Client) Transaction(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	start := time.Now()
	tx, pending, err := c.rpc.TransactionByHash(ctx, hash)
	c.observe(ctx, "eth_getTransactionByHash", start, err)
	return tx, pending, err
}

// Receipt returns the receipt of a mined transaction. It returns
// ethereum.NotFound while the transaction is pending.
func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	start := time.Now()
	r, err := c.rpc.TransactionReceipt(ctx, hash)
	c.observe(ctx, "eth_getTransactionReceipt", start, err)
	return r, err
}

// Block returns the header of block number (nil for latest).
func (c *Client) Block(ctx context.Context, number *big.Int) (*types.Header, error) {
	start := time.Now()
	h, err := c.rpc.HeaderByNumber(ctx, number)
	c.observe(ctx, "eth_getBlockByNumber", start, err)
	return h, err
}

// Call executes a read-only contract call against the latest block.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	start := time.Now()
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	c.observe(ctx, "eth_call", start, err)
	return out, err
}
