package vault

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/metrics"
	"github.com/brojonat/shardpay/service/txn"
	"github.com/brojonat/shardpay/service/wallet"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// DefaultDepositMemo is used when a deposit has no memo.
const DefaultDepositMemo = "Manual deposit"

// maxRecent is how many vault transactions are remembered.
const maxRecent = 10

// Sessions is the read side of the wallet session. *wallet.Manager
// implements it.
type Sessions interface {
	Session() wallet.Session
	OnChange(fn func(wallet.Session)) (remove func())
}

// Submitter executes vault transactions. *txn.Submitter implements it.
type Submitter interface {
	Submit(ctx context.Context, req txn.Request) (*txn.Record, error)
}

// Synchronizer keeps a consistent Summary of the active account's vault.
type Synchronizer struct {
	contract  *Contract
	sessions  Sessions
	submitter Submitter
	decimals  int32
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// refreshTimeout bounds refreshes started by session changes.
	refreshTimeout time.Duration

	mu        sync.Mutex
	summary   Summary
	loaded    bool
	inflight  int
	recent    []txn.Record
	listeners map[int]func(Summary)
	nextID    int
}

// NewSynchronizer creates a synchronizer reading contract for the account
// in sessions.
func NewSynchronizer(contract *Contract, sessions Sessions, submitter Submitter, decimals int32, m *metrics.Metrics, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		contract:       contract,
		sessions:       sessions,
		submitter:      submitter,
		decimals:       decimals,
		metrics:        m,
		logger:         logger,
		refreshTimeout: 30 * time.Second,
		listeners:      make(map[int]func(Summary)),
	}
}

// Summary returns the last published summary.
func (s *Synchronizer) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Recent returns the most recent vault transactions, newest first.
func (s *Synchronizer) Recent() []txn.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]txn.Record, len(s.recent))
	copy(out, s.recent)
	return out
}

// OnChange registers fn to receive every published summary.
func (s *Synchronizer) OnChange(fn func(Summary)) (remove func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Watch re-derives the summary whenever the session identity changes.
// The returned function stops watching.
func (s *Synchronizer) Watch() (stop func()) {
	var mu sync.Mutex
	lastEpoch := s.sessions.Session().Epoch

	return s.sessions.OnChange(func(sess wallet.Session) {
		mu.Lock()
		changed := sess.Epoch != lastEpoch
		lastEpoch = sess.Epoch
		mu.Unlock()
		if !changed {
			return
		}

		s.reset()
		if !sess.Connected() {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
			defer cancel()
			_, _ = s.Refresh(ctx, sess.Address)
		}()
	})
}

// reset drops every value derived from a previous identity.
func (s *Synchronizer) reset() {
	s.mu.Lock()
	s.summary = Summary{IsLoading: s.inflight > 0}
	s.loaded = false
	s.recent = nil
	s.mu.Unlock()
	s.publish()
}

// Refresh reads balance, goal and micro-save flag for address and
// publishes them together. A zero address resets the summary without any
// read. If the session changes while the reads are in flight their result
// is discarded. On failure the last-known values are kept.
func (s *Synchronizer) Refresh(ctx context.Context, address common.Address) (Summary, error) {
	if address == (common.Address{}) {
		s.mu.Lock()
		s.summary = Summary{}
		s.loaded = false
		s.mu.Unlock()
		s.publish()
		return s.Summary(), nil
	}

	issued := s.sessions.Session()

	s.mu.Lock()
	s.inflight++
	s.summary.IsLoading = true
	s.mu.Unlock()
	s.publish()

	var (
		saved, goal *big.Int
		micro       bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		saved, err = s.contract.UserBalance(gctx, address)
		return err
	})
	g.Go(func() error {
		var err error
		goal, err = s.contract.Goal(gctx, address)
		return err
	})
	g.Go(func() error {
		var err error
		micro, err = s.contract.MicroSaveStatus(gctx, address)
		return err
	})
	err := g.Wait()

	current := s.sessions.Session()

	s.mu.Lock()
	s.inflight--
	if current.Epoch != issued.Epoch {
		s.summary.IsLoading = s.inflight > 0
		s.mu.Unlock()
		s.metrics.RecordVaultReadDiscarded()
		s.logger.DebugContext(ctx, "discarding vault read for superseded session",
			"address", address.Hex(),
			"issued_chain_id", issued.ChainID,
			"current_chain_id", current.ChainID,
		)
		s.publish()
		return s.Summary(), nil
	}

	if err != nil {
		if !s.loaded {
			s.summary = Summary{}
		}
		s.summary.IsLoading = s.inflight > 0
		s.summary.LastError = chain.Describe(err)
		s.mu.Unlock()

		s.metrics.RecordVaultRefresh(err)
		s.logger.WarnContext(ctx, "vault refresh failed", "address", address.Hex(), "error", err)
		s.publish()
		return s.Summary(), err
	}

	savedDec := chain.FromBaseUnits(saved, s.decimals)
	goalDec := chain.FromBaseUnits(goal, s.decimals)
	s.summary = Summary{
		Address:          address.Hex(),
		ChainID:          current.ChainID,
		Goal:             goalDec,
		Saved:            savedDec,
		ProgressPct:      Progress(savedDec, goalDec),
		MicroSaveEnabled: micro,
		IsLoading:        s.inflight > 0,
		UpdatedAt:        time.Now().UTC(),
	}
	s.loaded = true
	s.mu.Unlock()

	s.metrics.RecordVaultRefresh(nil)
	s.publish()
	return s.Summary(), nil
}

// SetGoal updates the savings goal and re-reads the vault.
func (s *Synchronizer) SetGoal(ctx context.Context, amount string) (*txn.Record, error) {
	return s.mutate(ctx, txn.Request{
		Kind:   txn.KindGoalUpdate,
		Amount: amount,
		Method: MethodSetGoal,
		Encode: s.contract.PackSetGoal,
	})
}

// Deposit moves amount into the vault and re-reads it.
func (s *Synchronizer) Deposit(ctx context.Context, amount, memo string) (*txn.Record, error) {
	if memo == "" {
		memo = DefaultDepositMemo
	}
	return s.mutate(ctx, txn.Request{
		Kind:   txn.KindDeposit,
		Amount: amount,
		Memo:   memo,
		Method: MethodDeposit,
		Encode: s.contract.PackDeposit,
	})
}

// Withdraw moves amount out of the vault and re-reads it.
func (s *Synchronizer) Withdraw(ctx context.Context, amount string) (*txn.Record, error) {
	return s.mutate(ctx, txn.Request{
		Kind:   txn.KindWithdraw,
		Amount: amount,
		Method: MethodWithdraw,
		Encode: s.contract.PackWithdraw,
	})
}

// SetMicroSave sets the micro-save flag and re-reads the vault.
func (s *Synchronizer) SetMicroSave(ctx context.Context, enabled bool) (*txn.Record, error) {
	return s.mutate(ctx, txn.Request{
		Kind:   txn.KindMicroSaveToggle,
		Method: MethodToggleMicroSave,
		Encode: func(*big.Int) ([]byte, error) {
			return s.contract.PackToggleMicroSave(enabled)
		},
	})
}

// mutate submits req against the vault. Only a confirmed success triggers
// a refresh; the refresh always re-reads even if the call's result seems
// to encode the new state.
func (s *Synchronizer) mutate(ctx context.Context, req txn.Request) (*txn.Record, error) {
	req.To = s.contract.Address().Hex()

	rec, err := s.submitter.Submit(ctx, req)
	if rec != nil {
		s.remember(*rec)
	}
	if err != nil {
		return rec, err
	}
	if rec == nil || rec.Status != txn.StatusSuccess {
		return rec, errors.New("vault transaction did not succeed")
	}

	if _, refreshErr := s.Refresh(ctx, s.sessions.Session().Address); refreshErr != nil {
		s.logger.WarnContext(ctx, "vault refresh after mutation failed",
			"kind", req.Kind,
			"tx_hash", rec.ID,
			"error", refreshErr,
		)
	}
	return rec, nil
}

func (s *Synchronizer) remember(rec txn.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.recent {
		if r.ID == rec.ID {
			s.recent[i] = rec
			return
		}
	}
	s.recent = append([]txn.Record{rec}, s.recent...)
	if len(s.recent) > maxRecent {
		s.recent = s.recent[:maxRecent]
	}
}

func (s *Synchronizer) publish() {
	s.mu.Lock()
	snap := s.summary
	fns := make([]func(Summary), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
