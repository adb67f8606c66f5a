package wallet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newTestManager(p Provider) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(p, chain.ShardeumSphinx, nil, logger)
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestConnect_NoProvider(t *testing.T) {
	m := newTestManager(nil)

	_, err := m.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrProviderMissing)

	var pm *chain.ProviderMissingError
	require.ErrorAs(t, err, &pm)
	assert.Equal(t, chain.MetaMaskInstallURL, pm.InstallURL)
	assert.Equal(t, StateDisconnected, m.Session().State)
}

func TestConnect_Success(t *testing.T) {
	p := NewMockProvider(8080, alice)
	p.SetBalance(alice, ether(3))
	m := newTestManager(p)

	s, err := m.Connect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateConnected, s.State)
	assert.Equal(t, alice, s.Address)
	assert.Equal(t, uint64(8080), s.ChainID)
	assert.Equal(t, 0, ether(3).Cmp(s.Balance))
	assert.Empty(t, s.BalanceWarning)
	assert.Equal(t, 1, p.Subscribers())
}

func TestConnect_UserRejected(t *testing.T) {
	p := NewMockProvider(8080, alice)
	p.SetRequestError(chain.ErrUserRejected)
	m := newTestManager(p)

	s, err := m.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrUserRejected)
	assert.Equal(t, StateDisconnected, s.State)
	assert.Equal(t, 0, p.Subscribers())
}

func TestConnect_NoAccountsIsRejection(t *testing.T) {
	p := NewMockProvider(8080)
	m := newTestManager(p)

	_, err := m.Connect(context.Background())
	assert.ErrorIs(t, err, chain.ErrUserRejected)
	assert.False(t, m.Session().Connected())
}

func TestDisconnectThenConnect_MatchesFreshConnection(t *testing.T) {
	ctx := context.Background()

	fresh := NewMockProvider(8080, alice)
	fresh.SetBalance(alice, ether(1))
	freshSession, err := newTestManager(fresh).Connect(ctx)
	require.NoError(t, err)

	p := NewMockProvider(8080, alice)
	p.SetBalance(alice, ether(1))
	p.SetBalanceOn(31337, alice, ether(99))
	m := newTestManager(p)

	_, err = m.Connect(ctx)
	require.NoError(t, err)
	p.EmitChainChanged(31337)
	require.Equal(t, 0, ether(99).Cmp(m.Session().Balance))

	m.Disconnect()
	disconnected := m.Session()
	assert.Equal(t, StateDisconnected, disconnected.State)
	assert.Nil(t, disconnected.Balance)
	assert.Zero(t, disconnected.ChainID)
	assert.Equal(t, common.Address{}, disconnected.Address)
	assert.Equal(t, 0, p.Subscribers())

	p.SetChainID(8080)
	again, err := m.Connect(ctx)
	require.NoError(t, err)

	assert.Equal(t, freshSession.State, again.State)
	assert.Equal(t, freshSession.Address, again.Address)
	assert.Equal(t, freshSession.ChainID, again.ChainID)
	assert.Equal(t, 0, freshSession.Balance.Cmp(again.Balance))
	assert.Equal(t, freshSession.BalanceWarning, again.BalanceWarning)
	assert.Equal(t, 1, p.Subscribers(), "reconnect must not leave duplicate subscriptions")
}

func TestAccountsChanged(t *testing.T) {
	p := NewMockProvider(8080, alice, bob)
	p.SetBalance(bob, ether(7))
	m := newTestManager(p)
	_, err := m.Connect(context.Background())
	require.NoError(t, err)
	before := m.Session().Epoch

	p.EmitAccountsChanged(bob)
	s := m.Session()
	assert.Equal(t, bob, s.Address)
	assert.Equal(t, 0, ether(7).Cmp(s.Balance))
	assert.Greater(t, s.Epoch, before)

	p.EmitAccountsChanged()
	assert.Equal(t, StateDisconnected, m.Session().State)
	assert.Equal(t, 0, p.Subscribers())
}

func TestChainChanged_InvalidatesBalance(t *testing.T) {
	p := NewMockProvider(8080, alice)
	p.SetBalance(alice, ether(5))
	p.SetBalanceOn(31337, alice, ether(1))
	m := newTestManager(p)
	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []Session
	m.OnChange(func(s Session) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	p.EmitChainChanged(31337)

	s := m.Session()
	assert.Equal(t, uint64(31337), s.ChainID)
	assert.Equal(t, 0, ether(1).Cmp(s.Balance))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	// the first notification after a chain change carries no balance from the old chain
	assert.Nil(t, seen[0].Balance)
	assert.Equal(t, uint64(31337), seen[0].ChainID)
}

func TestRefreshBalance_FailureKeepsConnection(t *testing.T) {
	p := NewMockProvider(8080, alice)
	p.SetBalance(alice, ether(2))
	m := newTestManager(p)
	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	p.SetBalanceError(errors.New("rpc unavailable"))
	err = m.RefreshBalance(context.Background())
	require.Error(t, err)

	s := m.Session()
	assert.True(t, s.Connected())
	assert.Equal(t, 0, ether(2).Cmp(s.Balance), "stale balance is kept")
	assert.Contains(t, s.BalanceWarning, "rpc unavailable")

	p.SetBalanceError(nil)
	require.NoError(t, m.RefreshBalance(context.Background()))
	assert.Empty(t, m.Session().BalanceWarning)
}

func TestEnsureChain(t *testing.T) {
	ctx := context.Background()

	t.Run("already on network", func(t *testing.T) {
		p := NewMockProvider(8080, alice)
		m := newTestManager(p)
		_, err := m.Connect(ctx)
		require.NoError(t, err)

		require.NoError(t, m.EnsureChain(ctx))
		assert.Equal(t, 0, p.Calls("wallet_switchEthereumChain"))
	})

	t.Run("known chain is switched", func(t *testing.T) {
		p := NewMockProvider(1, alice)
		p.SetChainID(8080)
		p.SetChainID(1)
		m := newTestManager(p)
		_, err := m.Connect(ctx)
		require.NoError(t, err)

		require.NoError(t, m.EnsureChain(ctx))
		assert.Equal(t, uint64(8080), m.Session().ChainID)
		assert.Empty(t, p.AddedChains())
	})

	t.Run("unknown chain is added then switched", func(t *testing.T) {
		p := NewMockProvider(1, alice)
		m := newTestManager(p)
		_, err := m.Connect(ctx)
		require.NoError(t, err)

		require.NoError(t, m.EnsureChain(ctx))
		assert.Equal(t, uint64(8080), m.Session().ChainID)
		require.Len(t, p.AddedChains(), 1)
		assert.Equal(t, chain.ShardeumSphinx, p.AddedChains()[0])
		assert.Equal(t, 2, p.Calls("wallet_switchEthereumChain"))
	})

	t.Run("add chain failure is wrong network", func(t *testing.T) {
		p := NewMockProvider(1, alice)
		p.SetAddError(chain.ErrUserRejected)
		m := newTestManager(p)
		_, err := m.Connect(ctx)
		require.NoError(t, err)

		err = m.EnsureChain(ctx)
		assert.ErrorIs(t, err, chain.ErrWrongNetwork)
		assert.ErrorIs(t, err, chain.ErrUserRejected)
		assert.Equal(t, uint64(1), m.Session().ChainID)
	})

	t.Run("switch rejected is wrong network", func(t *testing.T) {
		p := NewMockProvider(1, alice)
		p.SetSwitchError(chain.ErrUserRejected)
		m := newTestManager(p)
		_, err := m.Connect(ctx)
		require.NoError(t, err)

		assert.ErrorIs(t, m.EnsureChain(ctx), chain.ErrWrongNetwork)
	})

	t.Run("not connected", func(t *testing.T) {
		m := newTestManager(NewMockProvider(8080, alice))
		assert.ErrorIs(t, m.EnsureChain(ctx), chain.ErrNotConnected)
	})
}

func TestSendTransaction(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvider(8080, alice)
	m := newTestManager(p)

	_, err := m.SendTransaction(ctx, TxRequest{To: &bob, Value: ether(1)})
	assert.ErrorIs(t, err, chain.ErrNotConnected)
	assert.Equal(t, 0, p.Calls("eth_sendTransaction"))

	_, err = m.Connect(ctx)
	require.NoError(t, err)

	hash, err := m.SendTransaction(ctx, TxRequest{To: &bob, Value: ether(1)})
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)

	sent := p.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, alice, sent[0].From)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvider(8080, alice)
	m := newTestManager(p)

	ok, err := m.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "nothing authorized yet")

	_, err = m.Connect(ctx)
	require.NoError(t, err)

	m2 := newTestManager(p)
	ok, err = m2.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, alice, m2.Session().Address)
	assert.Equal(t, 1, p.Calls("eth_requestAccounts"), "restore never prompts")
}

func TestSessionDisplay(t *testing.T) {
	bal, _ := new(big.Int).SetString("1234567890123456789", 10)
	s := Session{
		Address: common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"),
		Balance: bal,
		State:   StateConnected,
	}
	assert.Equal(t, "0x5aAe...eAed", s.DisplayAddress())
	assert.Equal(t, "1.2346", s.DisplayBalance(18))
	assert.Equal(t, "1234567890123456789", s.Balance.String())
}
