package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/brojonat/shardpay/service/metrics"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(rpc RPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(rpc, "test", metrics.NewMetrics(prometheus.NewRegistry()), logger)
}

func TestClient_Balance(t *testing.T) {
	rpc := NewMockRPC(8080)
	addr := common.HexToAddress("0x01")
	rpc.SetBalance(addr, big.NewInt(5))
	c := newTestClient(rpc)

	bal, err := c.Balance(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bal.Int64())

	rpc.SetError("eth_getBalance", errors.New("node down"))
	_, err = c.Balance(context.Background(), addr)
	assert.EqualError(t, err, "node down")
}

func TestClient_ChainIDAndBlock(t *testing.T) {
	rpc := NewMockRPC(8080)
	c := newTestClient(rpc)

	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(8080), id)

	n, err := c.BlockNumber(context.Background())
	require.NoError(t, err)

	h, err := c.Block(context.Background(), new(big.Int).SetUint64(n))
	require.NoError(t, err)
	assert.Equal(t, n, h.Number.Uint64())
	assert.NotZero(t, h.Time)
}

func TestClient_ReceiptPendingIsNotFound(t *testing.T) {
	hash := common.HexToHash("0xabc")
	rpc := NewMockRPC(8080)
	c := newTestClient(rpc)

	_, err := c.Receipt(context.Background(), hash)
	assert.ErrorIs(t, err, ethereum.NotFound)

	rpc.SetReceipt(hash, true)
	r, err := c.Receipt(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, r.Status)
	assert.Equal(t, 2, rpc.Calls("eth_getTransactionReceipt"))
}

func TestClient_Call(t *testing.T) {
	rpc := NewMockRPC(8080)
	var got ethereum.CallMsg
	rpc.SetCallHandler(func(msg ethereum.CallMsg) ([]byte, error) {
		got = msg
		return []byte{0x01}, nil
	})
	c := newTestClient(rpc)
	to := common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

	out, err := c.Call(context.Background(), to, []byte{0xde, 0xad})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, out)
	require.NotNil(t, got.To)
	assert.Equal(t, to, *got.To)
	assert.Equal(t, []byte{0xde, 0xad}, got.Data)
}

func TestClient_Logs(t *testing.T) {
	rpc := NewMockRPC(8080)
	vault := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	rpc.AddLog(types.Log{Address: vault, BlockNumber: 7})
	rpc.AddLog(types.Log{Address: common.HexToAddress("0x01"), BlockNumber: 8})
	c := newTestClient(rpc)

	logs, err := c.Logs(context.Background(), ethereum.FilterQuery{Addresses: []common.Address{vault}})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, uint64(7), logs[0].BlockNumber)
}

func TestNetwork(t *testing.T) {
	assert.Equal(t, "0x1f90", ShardeumSphinx.ChainIDHex())
	assert.Equal(t, "https://explorer-sphinx.shardeum.org/transaction/0xabc", ShardeumSphinx.TxURL("0xabc"))
	assert.Equal(t, "", Network{}.TxURL("0xabc"))
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, Describe(&ProviderMissingError{InstallURL: MetaMaskInstallURL}), "metamask.io")
	assert.Equal(t, "amount must be a number", Describe(NewValidationError("amount", "amount must be a number")))
	assert.Contains(t, Describe(&ContractCallError{Method: "getGoal", Err: errors.New("execution reverted")}), "getGoal")
	assert.Contains(t, Describe(ErrConfirmationTimeout), "outcome is unknown")
	assert.True(t, errors.Is(&ProviderMissingError{InstallURL: "x"}, ErrProviderMissing))
}
