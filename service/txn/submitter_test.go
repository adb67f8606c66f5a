package txn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	payer     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	recipient = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	vaultAddr = "0x0000000000000000000000000000000000000abc"
)

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) SaveTransaction(ctx context.Context, rec Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishTransaction(ctx context.Context, rec Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

type harness struct {
	provider  *wallet.MockProvider
	rpc       *chain.MockRPC
	manager   *wallet.Manager
	submitter *Submitter
}

// newHarness wires a connected wallet whose transactions are mined
// immediately with the outcome returned by mined.
func newHarness(t *testing.T, walletChain uint64, mined func(wallet.TxRequest) bool, opts ...Option) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rpc := chain.NewMockRPC(8080)
	provider := wallet.NewMockProvider(walletChain, payer)
	if mined != nil {
		provider.OnSend = func(hash common.Hash, tx wallet.TxRequest) {
			rpc.SetReceipt(hash, mined(tx))
		}
	}
	manager := wallet.NewManager(provider, chain.ShardeumSphinx, nil, logger)
	_, err := manager.Connect(context.Background())
	require.NoError(t, err)

	opts = append([]Option{WithConfirmation(time.Second, 5*time.Millisecond)}, opts...)
	submitter := NewSubmitter(manager, chain.NewClient(rpc, "test", nil, logger), nil, logger, opts...)
	return &harness{provider: provider, rpc: rpc, manager: manager, submitter: submitter}
}

func alwaysSucceed(wallet.TxRequest) bool { return true }

func TestSubmit_InvalidInputNeverReachesWallet(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{name: "negative amount", req: Request{Kind: KindPayment, To: recipient, Amount: "-5"}, field: "amount"},
		{name: "non numeric amount", req: Request{Kind: KindPayment, To: recipient, Amount: "abc"}, field: "amount"},
		{name: "zero amount", req: Request{Kind: KindPayment, To: recipient, Amount: "0"}, field: "amount"},
		{name: "bad recipient", req: Request{Kind: KindPayment, To: "0x123", Amount: "1"}, field: "to"},
		{name: "missing recipient", req: Request{Kind: KindSplit, Amount: "1"}, field: "to"},
		{name: "unknown kind", req: Request{Kind: "refund", To: recipient, Amount: "1"}, field: "kind"},
		{name: "vault call without encoder", req: Request{Kind: KindDeposit, To: vaultAddr, Amount: "1"}, field: "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// wallet sits on the wrong chain so any network step would be visible
			h := newHarness(t, 1, alwaysSucceed)

			rec, err := h.submitter.Submit(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, rec)

			var ve *chain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)

			assert.Equal(t, 0, h.provider.Calls("eth_sendTransaction"))
			assert.Equal(t, 0, h.provider.Calls("wallet_switchEthereumChain"))
		})
	}
}

func TestSubmit_PaymentSuccess(t *testing.T) {
	journal := &mockJournal{}
	journal.On("SaveTransaction", mock.Anything, mock.MatchedBy(func(r Record) bool {
		return r.Status == StatusSuccess
	})).Return(nil).Once()
	publisher := &mockPublisher{}
	publisher.On("PublishTransaction", mock.Anything, mock.Anything).Return(errors.New("nats down")).Once()

	h := newHarness(t, 8080, alwaysSucceed, WithJournal(journal), WithPublisher(publisher))

	rec, err := h.submitter.Submit(context.Background(), Request{
		Kind:   KindPayment,
		To:     recipient,
		Amount: "1.5",
		Memo:   "lunch",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, StatusSuccess, rec.Status)
	assert.Equal(t, KindPayment, rec.Kind)
	assert.Equal(t, "1.5", rec.Amount)
	assert.Equal(t, "SHM", rec.Currency)
	assert.Equal(t, payer.Hex(), rec.From)
	require.NotNil(t, rec.Counterparty)
	assert.Equal(t, recipient, *rec.Counterparty)
	require.NotNil(t, rec.Memo)
	assert.Equal(t, "lunch", *rec.Memo)
	require.NotNil(t, rec.ReceiptHash)
	assert.Equal(t, rec.ID, *rec.ReceiptHash)
	assert.NotZero(t, rec.BlockNumber)
	assert.NotNil(t, rec.ConfirmedAt)
	assert.Equal(t, uint64(8080), rec.ChainID)
	assert.Contains(t, rec.ExplorerURL, rec.ID)

	sent := h.provider.Sent()
	require.Len(t, sent, 1)
	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, 0, want.Cmp(sent[0].Value))
	assert.Equal(t, []byte("lunch"), sent[0].Data)
	assert.Equal(t, recipient, sent[0].To.Hex())

	journal.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestSubmit_Reverted(t *testing.T) {
	h := newHarness(t, 8080, func(wallet.TxRequest) bool { return false })

	rec, err := h.submitter.Submit(context.Background(), Request{Kind: KindPayment, To: recipient, Amount: "1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrReverted)
	require.NotNil(t, rec)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.True(t, rec.Settled())
}

func TestSubmit_UserRejected(t *testing.T) {
	h := newHarness(t, 8080, alwaysSucceed)
	h.provider.SetSendError(chain.ErrUserRejected)

	rec, err := h.submitter.Submit(context.Background(), Request{Kind: KindPayment, To: recipient, Amount: "1"})
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, chain.ErrUserRejected)
	assert.Equal(t, 1, h.provider.Calls("eth_sendTransaction"), "rejection is not retried")
}

func TestSubmit_WrongNetworkIsRemediated(t *testing.T) {
	h := newHarness(t, 1, alwaysSucceed)

	rec, err := h.submitter.Submit(context.Background(), Request{Kind: KindPayment, To: recipient, Amount: "1"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, rec.Status)
	assert.Len(t, h.provider.AddedChains(), 1)
	assert.Equal(t, uint64(8080), h.manager.Session().ChainID)
}

func TestSubmit_WrongNetworkNotRemediable(t *testing.T) {
	h := newHarness(t, 1, alwaysSucceed)
	h.provider.SetAddError(chain.ErrUserRejected)

	rec, err := h.submitter.Submit(context.Background(), Request{Kind: KindPayment, To: recipient, Amount: "1"})
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, chain.ErrWrongNetwork)
	assert.Equal(t, 0, h.provider.Calls("eth_sendTransaction"))
}

func TestSubmit_ConfirmationTimeout(t *testing.T) {
	h := newHarness(t, 8080, nil, WithConfirmation(50*time.Millisecond, 5*time.Millisecond))

	start := time.Now()
	rec, err := h.submitter.Submit(context.Background(), Request{Kind: KindPayment, To: recipient, Amount: "1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrConfirmationTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "not mined after")
	assert.Less(t, time.Since(start), 2*time.Second)

	require.NotNil(t, rec)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Nil(t, rec.ReceiptHash)
	assert.NotEmpty(t, rec.ID)
}

func TestSubmit_CanceledWaitIsNotReportedAsDeadline(t *testing.T) {
	h := newHarness(t, 8080, nil, WithConfirmation(time.Minute, 5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	h.provider.OnSend = func(common.Hash, wallet.TxRequest) {
		time.AfterFunc(20*time.Millisecond, cancel)
	}

	start := time.Now()
	rec, err := h.submitter.Submit(ctx, Request{Kind: KindPayment, To: recipient, Amount: "1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrConfirmationTimeout)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "wait canceled after")
	assert.NotContains(t, err.Error(), "1m0s")
	assert.Less(t, time.Since(start), 10*time.Second)

	require.NotNil(t, rec)
	assert.Equal(t, StatusPending, rec.Status)
}

func TestSubmit_ReceiptReadErrorsAreRetried(t *testing.T) {
	h := newHarness(t, 8080, nil)
	h.rpc.SetError("eth_getTransactionReceipt", errors.New("connection reset"))
	h.provider.OnSend = func(hash common.Hash, tx wallet.TxRequest) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			h.rpc.SetReceipt(hash, true)
			h.rpc.SetError("eth_getTransactionReceipt", nil)
		}()
	}

	rec, err := h.submitter.Submit(context.Background(), Request{Kind: KindPayment, To: recipient, Amount: "2"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, rec.Status)
	assert.Greater(t, h.rpc.Calls("eth_getTransactionReceipt"), 1)
}

func TestSubmit_ContractCall(t *testing.T) {
	h := newHarness(t, 8080, alwaysSucceed)

	var encoded *big.Int
	rec, err := h.submitter.Submit(context.Background(), Request{
		Kind:   KindDeposit,
		To:     vaultAddr,
		Amount: "0.25",
		Memo:   "Manual deposit",
		Method: "deposit",
		Encode: func(amount *big.Int) ([]byte, error) {
			encoded = amount
			return []byte{0xb6, 0xb5, 0x5f, 0x25}, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, rec.Status)
	assert.Nil(t, rec.Counterparty)
	assert.Equal(t, "0.25", rec.Amount)

	want, _ := new(big.Int).SetString("250000000000000000", 10)
	assert.Equal(t, 0, want.Cmp(encoded))

	sent := h.provider.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(0), sent[0].Value.Int64())
	assert.Equal(t, []byte{0xb6, 0xb5, 0x5f, 0x25}, sent[0].Data)
}

func TestSubmit_ContractCallReverted(t *testing.T) {
	h := newHarness(t, 8080, func(wallet.TxRequest) bool { return false })

	rec, err := h.submitter.Submit(context.Background(), Request{
		Kind:   KindMicroSaveToggle,
		To:     vaultAddr,
		Method: "toggleMicroSave",
		Encode: func(*big.Int) ([]byte, error) { return []byte{0x01}, nil },
	})
	require.Error(t, err)
	var ce *chain.ContractCallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "toggleMicroSave", ce.Method)
	assert.ErrorIs(t, err, chain.ErrReverted)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "0", rec.Amount)
}

func TestSubmit_NotConnected(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := wallet.NewManager(wallet.NewMockProvider(8080, payer), chain.ShardeumSphinx, nil, logger)
	s := NewSubmitter(manager, chain.NewClient(chain.NewMockRPC(8080), "test", nil, logger), nil, logger)

	_, err := s.Submit(context.Background(), Request{Kind: KindPayment, To: recipient, Amount: "1"})
	assert.ErrorIs(t, err, chain.ErrNotConnected)
}
