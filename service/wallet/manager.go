package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/metrics"
	"github.com/ethereum/go-ethereum/common"
)

// Manager owns the wallet session. It is the only writer of Session; every
// other component reads snapshots via Session or OnChange.
type Manager struct {
	provider Provider
	network  chain.Network
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// eventTimeout bounds the work done in response to a provider event.
	eventTimeout time.Duration

	mu          sync.Mutex
	session     Session
	unsubscribe func()
	listeners   map[int]func(Session)
	nextID      int
}

// NewManager creates a session manager for network. A nil provider is
// allowed and makes Connect fail with chain.ErrProviderMissing.
func NewManager(provider Provider, network chain.Network, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		provider:     provider,
		network:      network,
		metrics:      m,
		logger:       logger,
		eventTimeout: 30 * time.Second,
		session:      Session{State: StateDisconnected},
		listeners:    make(map[int]func(Session)),
	}
}

// Network returns the network the manager keeps the wallet on.
func (m *Manager) Network() chain.Network {
	return m.network
}

// Session returns a copy of the current session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.clone()
}

// OnChange registers fn to be called with a snapshot after every session
// change. The returned function removes it.
func (m *Manager) OnChange(fn func(Session)) (remove func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Connect prompts the wallet for account access and populates the session.
func (m *Manager) Connect(ctx context.Context) (Session, error) {
	if m.provider == nil {
		return m.Session(), &chain.ProviderMissingError{InstallURL: chain.MetaMaskInstallURL}
	}

	epoch := m.update(func(s *Session) {
		*s = Session{State: StateConnecting, Epoch: s.Epoch + 1}
	})

	accounts, err := m.provider.RequestAccounts(ctx)
	m.metrics.RecordProviderRequest("eth_requestAccounts", err)
	if err == nil && len(accounts) == 0 {
		err = fmt.Errorf("no accounts returned: %w", chain.ErrUserRejected)
	}
	if err != nil {
		m.resetIf(epoch)
		m.logger.WarnContext(ctx, "wallet connection failed", "error", err)
		return m.Session(), fmt.Errorf("failed to request accounts: %w", err)
	}

	return m.establish(ctx, epoch, accounts[0])
}

// Restore re-attaches to an account the wallet has already authorized,
// without prompting. It reports whether a session was restored.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	if m.provider == nil {
		return false, nil
	}
	accounts, err := m.provider.Accounts(ctx)
	m.metrics.RecordProviderRequest("eth_accounts", err)
	if err != nil {
		return false, fmt.Errorf("failed to read authorized accounts: %w", err)
	}
	if len(accounts) == 0 {
		return false, nil
	}

	epoch := m.update(func(s *Session) {
		*s = Session{State: StateConnecting, Epoch: s.Epoch + 1}
	})
	if _, err := m.establish(ctx, epoch, accounts[0]); err != nil {
		return false, err
	}
	return true, nil
}

// establish finishes a connection attempt started at epoch.
func (m *Manager) establish(ctx context.Context, epoch uint64, account common.Address) (Session, error) {
	chainID, err := m.provider.ChainID(ctx)
	m.metrics.RecordProviderRequest("eth_chainId", err)
	if err != nil {
		m.resetIf(epoch)
		return m.Session(), fmt.Errorf("failed to read chain id: %w", err)
	}

	unsubscribe := m.provider.Subscribe(EventHandler{
		AccountsChanged: m.onAccountsEvent,
		ChainChanged:    m.onChainEvent,
	})

	m.mu.Lock()
	if m.session.Epoch != epoch {
		m.mu.Unlock()
		unsubscribe()
		return m.Session(), fmt.Errorf("connection superseded: %w", chain.ErrNotConnected)
	}
	previous := m.unsubscribe
	m.unsubscribe = unsubscribe
	m.session = Session{
		Address: account,
		ChainID: chainID,
		State:   StateConnected,
		Epoch:   epoch + 1,
	}
	m.mu.Unlock()
	if previous != nil {
		previous()
	}
	m.metrics.RecordSessionTransition(string(StateConnected))
	m.notify()

	m.logger.InfoContext(ctx, "wallet connected",
		"address", account.Hex(),
		"chain_id", chainID,
	)

	_ = m.RefreshBalance(ctx)
	return m.Session(), nil
}

// Disconnect resets the session. The provider has no programmatic
// disconnect, so only local state and the event subscription are released.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	wasConnected := m.session.State != StateDisconnected
	m.session = Session{State: StateDisconnected, Epoch: m.session.Epoch + 1}
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	if wasConnected {
		m.metrics.RecordSessionTransition(string(StateDisconnected))
		m.logger.Info("wallet disconnected")
	}
	m.notify()
}

// HandleAccountsChanged applies an accountsChanged notification. An empty
// list means the user revoked access and the session is torn down.
func (m *Manager) HandleAccountsChanged(ctx context.Context, accounts []common.Address) {
	if len(accounts) == 0 {
		m.Disconnect()
		return
	}

	m.mu.Lock()
	if m.session.State != StateConnected || m.session.Address == accounts[0] {
		m.mu.Unlock()
		return
	}
	m.session.Address = accounts[0]
	m.session.Balance = nil
	m.session.BalanceWarning = ""
	m.session.Epoch++
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "wallet account changed", "address", accounts[0].Hex())
	m.notify()
	_ = m.RefreshBalance(ctx)
}

// HandleChainChanged invalidates every piece of chain-dependent state and
// re-derives the session from the provider.
func (m *Manager) HandleChainChanged(ctx context.Context, chainID uint64) {
	m.mu.Lock()
	if m.session.State != StateConnected || m.session.ChainID == chainID {
		m.mu.Unlock()
		return
	}
	m.session.ChainID = chainID
	m.session.Balance = nil
	m.session.BalanceWarning = ""
	m.session.Epoch++
	epoch := m.session.Epoch
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "wallet chain changed", "chain_id", chainID)
	m.notify()

	accounts, err := m.provider.Accounts(ctx)
	m.metrics.RecordProviderRequest("eth_accounts", err)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to re-read accounts after chain change", "error", err)
	} else if len(accounts) == 0 {
		m.Disconnect()
		return
	} else {
		m.mu.Lock()
		if m.session.Epoch == epoch && m.session.Address != accounts[0] {
			m.session.Address = accounts[0]
			m.session.Epoch++
		}
		m.mu.Unlock()
	}
	_ = m.RefreshBalance(ctx)
}

// RefreshBalance re-reads the native balance. Failure leaves the previous
// balance in place, records a warning on the session and keeps the
// connection alive.
func (m *Manager) RefreshBalance(ctx context.Context) error {
	snap := m.Session()
	if !snap.Connected() {
		return chain.ErrNotConnected
	}

	bal, err := m.provider.Balance(ctx, snap.Address)
	m.metrics.RecordProviderRequest("eth_getBalance", err)

	m.mu.Lock()
	if m.session.Epoch != snap.Epoch {
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "discarding balance read for superseded session")
		return nil
	}
	if err != nil {
		m.session.BalanceWarning = fmt.Sprintf("balance may be out of date: %v", err)
	} else {
		m.session.Balance = bal
		m.session.BalanceWarning = ""
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.WarnContext(ctx, "failed to refresh balance",
			"address", snap.Address.Hex(),
			"error", err,
		)
	}
	m.notify()
	if err != nil {
		return fmt.Errorf("failed to refresh balance: %w", err)
	}
	return nil
}

// EnsureChain moves the wallet onto the manager's network. If the wallet
// does not know the network it is added first and the switch retried.
// Failure of the remediation is reported as chain.ErrWrongNetwork.
func (m *Manager) EnsureChain(ctx context.Context) error {
	snap := m.Session()
	if !snap.Connected() {
		return chain.ErrNotConnected
	}
	if snap.ChainID == m.network.ChainID {
		return nil
	}

	m.logger.InfoContext(ctx, "switching wallet network",
		"from_chain_id", snap.ChainID,
		"to_chain_id", m.network.ChainID,
	)

	err := m.provider.SwitchChain(ctx, m.network.ChainID)
	m.metrics.RecordNetworkRemediation("switch", err)
	if errors.Is(err, chain.ErrUnrecognizedChain) {
		addErr := m.provider.AddChain(ctx, m.network)
		m.metrics.RecordNetworkRemediation("add", addErr)
		if addErr != nil {
			return fmt.Errorf("%w: add chain %s: %w", chain.ErrWrongNetwork, m.network.ChainIDHex(), addErr)
		}
		err = m.provider.SwitchChain(ctx, m.network.ChainID)
		m.metrics.RecordNetworkRemediation("switch", err)
	}
	if err != nil {
		return fmt.Errorf("%w: switch to %s: %w", chain.ErrWrongNetwork, m.network.ChainIDHex(), err)
	}

	current, err := m.provider.ChainID(ctx)
	m.metrics.RecordProviderRequest("eth_chainId", err)
	if err != nil {
		return fmt.Errorf("%w: %w", chain.ErrWrongNetwork, err)
	}
	if current != m.network.ChainID {
		return fmt.Errorf("%w: wallet reports chain %d", chain.ErrWrongNetwork, current)
	}

	m.HandleChainChanged(ctx, current)
	return nil
}

// SendTransaction asks the wallet to sign and broadcast tx from the active
// account.
func (m *Manager) SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error) {
	snap := m.Session()
	if !snap.Connected() {
		return common.Hash{}, chain.ErrNotConnected
	}
	tx.From = snap.Address
	if tx.Value == nil {
		tx.Value = new(big.Int)
	}

	hash, err := m.provider.SendTransaction(ctx, tx)
	m.metrics.RecordProviderRequest("eth_sendTransaction", err)
	if err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// Close releases the provider subscription and all listeners.
func (m *Manager) Close() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.listeners = make(map[int]func(Session))
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Manager) onAccountsEvent(accounts []common.Address) {
	ctx, cancel := context.WithTimeout(context.Background(), m.eventTimeout)
	defer cancel()
	m.HandleAccountsChanged(ctx, accounts)
}

func (m *Manager) onChainEvent(chainID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.eventTimeout)
	defer cancel()
	m.HandleChainChanged(ctx, chainID)
}

// update mutates the session under the lock, notifies, and returns the new epoch.
func (m *Manager) update(fn func(*Session)) uint64 {
	m.mu.Lock()
	fn(&m.session)
	epoch := m.session.Epoch
	m.mu.Unlock()
	m.notify()
	return epoch
}

// resetIf returns to Disconnected unless another transition already happened.
func (m *Manager) resetIf(epoch uint64) {
	m.mu.Lock()
	if m.session.Epoch != epoch {
		m.mu.Unlock()
		return
	}
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.session = Session{State: StateDisconnected, Epoch: epoch + 1}
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	m.notify()
}

func (m *Manager) notify() {
	m.mu.Lock()
	snap := m.session.clone()
	fns := make([]func(Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
