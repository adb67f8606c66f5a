package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/metrics"
	"github.com/brojonat/shardpay/service/wallet"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Wallet is the signer capability the submitter needs. *wallet.Manager
// implements it.
type Wallet interface {
	Session() wallet.Session
	Network() chain.Network
	EnsureChain(ctx context.Context) error
	SendTransaction(ctx context.Context, tx wallet.TxRequest) (common.Hash, error)
}

// ChainReader reads confirmation data. *chain.Client implements it.
type ChainReader interface {
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Block(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Publisher announces settled records, e.g. over NATS.
type Publisher interface {
	PublishTransaction(ctx context.Context, rec Record) error
}

// Journal stores records for the activity history.
type Journal interface {
	SaveTransaction(ctx context.Context, rec Record) error
}

// Request describes one transaction to submit.
type Request struct {
	Kind Kind
	// To is the recipient of a value transfer or the contract address of a
	// vault call.
	To string
	// Amount is a decimal string in whole native units.
	Amount string
	Memo   string
	// Method names the contract method for vault calls; used in errors.
	Method string
	// Encode builds calldata for vault calls from the base-unit amount
	// (nil for kinds without an amount).
	Encode func(amount *big.Int) ([]byte, error)
}

// Submitter validates, signs, broadcasts and confirms single transactions.
// It does not deduplicate: identical requests produce distinct transactions.
type Submitter struct {
	wallet  Wallet
	chain   ChainReader
	metrics *metrics.Metrics
	logger  *slog.Logger

	timeout      time.Duration
	pollInterval time.Duration

	publisher Publisher
	journal   Journal
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithConfirmation sets the confirmation timeout and receipt poll interval.
func WithConfirmation(timeout, pollInterval time.Duration) Option {
	return func(s *Submitter) {
		s.timeout = timeout
		s.pollInterval = pollInterval
	}
}

// WithPublisher publishes every returned record.
func WithPublisher(p Publisher) Option {
	return func(s *Submitter) { s.publisher = p }
}

// WithJournal stores every returned record.
func WithJournal(j Journal) Option {
	return func(s *Submitter) { s.journal = j }
}

// NewSubmitter creates a Submitter.
func NewSubmitter(w Wallet, reader ChainReader, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Submitter{
		wallet:       w,
		chain:        reader,
		metrics:      m,
		logger:       logger,
		timeout:      2 * time.Minute,
		pollInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type validated struct {
	to     common.Address
	amount *big.Int
}

// Validate checks req without touching the network.
func (s *Submitter) Validate(req Request) error {
	_, err := s.validate(req)
	return err
}

func (s *Submitter) validate(req Request) (validated, error) {
	var v validated
	if !req.Kind.Valid() {
		return v, chain.NewValidationError("kind", fmt.Sprintf("unknown transaction kind %q", req.Kind))
	}

	to, err := chain.ValidateAddress(req.To)
	if err != nil {
		var ve *chain.ValidationError
		if errors.As(err, &ve) {
			field := "to"
			if !req.Kind.TransfersValue() {
				field = "contract"
			}
			return v, chain.NewValidationError(field, ve.Reason)
		}
		return v, err
	}
	v.to = to

	v.amount = new(big.Int)
	if req.Kind.NeedsAmount() {
		v.amount, err = chain.ParseAmount(req.Amount, s.wallet.Network().Currency.Decimals)
		if err != nil {
			return v, err
		}
	}

	if !req.Kind.TransfersValue() && req.Encode == nil {
		return v, chain.NewValidationError("data", "contract call has no encoder")
	}
	return v, nil
}

// Submit runs one transaction end to end. Validation always happens before
// any wallet interaction. A returned record with status Failed comes with
// an error wrapping chain.ErrReverted; a confirmation timeout returns the
// Pending record with chain.ErrConfirmationTimeout.
func (s *Submitter) Submit(ctx context.Context, req Request) (*Record, error) {
	v, err := s.validate(req)
	if err != nil {
		var ve *chain.ValidationError
		if errors.As(err, &ve) {
			s.metrics.RecordValidationFailure(ve.Field)
		}
		return nil, err
	}

	if err := s.wallet.EnsureChain(ctx); err != nil {
		return nil, err
	}

	network := s.wallet.Network()
	tx := wallet.TxRequest{To: &v.to, Value: new(big.Int)}
	if req.Kind.TransfersValue() {
		tx.Value = v.amount
		if req.Memo != "" {
			tx.Data = []byte(req.Memo)
		}
	} else {
		tx.Data, err = req.Encode(v.amount)
		if err != nil {
			return nil, &chain.ContractCallError{Method: req.Method, Err: err}
		}
	}

	session := s.wallet.Session()
	hash, err := s.wallet.SendTransaction(ctx, tx)
	if err != nil {
		s.metrics.RecordTransaction(string(req.Kind), "rejected")
		s.logger.WarnContext(ctx, "transaction not sent",
			"kind", req.Kind,
			"error", err,
		)
		return nil, fmt.Errorf("failed to send %s transaction: %w", req.Kind, err)
	}

	rec := &Record{
		ID:          hash.Hex(),
		Kind:        req.Kind,
		Amount:      chain.FormatAmount(v.amount, network.Currency.Decimals),
		Currency:    network.Currency.Symbol,
		From:        session.Address.Hex(),
		Memo:        strPtr(req.Memo),
		SubmittedAt: time.Now().UTC(),
		Status:      StatusPending,
		ChainID:     network.ChainID,
		ExplorerURL: network.TxURL(hash.Hex()),
	}
	if req.Kind.TransfersValue() {
		rec.Counterparty = strPtr(v.to.Hex())
	}

	s.logger.InfoContext(ctx, "transaction broadcast",
		"kind", req.Kind,
		"tx_hash", rec.ID,
		"amount", rec.Amount,
	)

	start := time.Now()
	receipt, err := s.waitForReceipt(ctx, hash)
	if err != nil {
		s.metrics.RecordTransaction(string(req.Kind), string(StatusPending))
		s.logger.WarnContext(ctx, "transaction confirmation timed out",
			"kind", req.Kind,
			"tx_hash", rec.ID,
			"error", err,
		)
		s.emit(ctx, *rec)
		return rec, err
	}
	s.metrics.RecordConfirmation(string(req.Kind), time.Since(start).Seconds())

	receiptHash := receipt.TxHash.Hex()
	if receipt.TxHash == (common.Hash{}) {
		receiptHash = rec.ID
	}
	rec.ReceiptHash = &receiptHash
	if receipt.BlockNumber != nil {
		rec.BlockNumber = receipt.BlockNumber.Uint64()
		if header, err := s.chain.Block(ctx, receipt.BlockNumber); err == nil && header != nil {
			confirmed := time.Unix(int64(header.Time), 0).UTC()
			rec.ConfirmedAt = &confirmed
		}
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		rec.Status = StatusSuccess
	} else {
		rec.Status = StatusFailed
	}
	s.metrics.RecordTransaction(string(req.Kind), string(rec.Status))
	s.logger.InfoContext(ctx, "transaction confirmed",
		"kind", req.Kind,
		"tx_hash", rec.ID,
		"status", rec.Status,
		"block_number", rec.BlockNumber,
	)
	s.emit(ctx, *rec)

	if rec.Status == StatusFailed {
		if req.Kind.TransfersValue() {
			return rec, fmt.Errorf("%s %s: %w", req.Kind, rec.ID, chain.ErrReverted)
		}
		return rec, &chain.ContractCallError{Method: req.Method, Err: chain.ErrReverted}
	}
	return rec, nil
}

// waitForReceipt polls until the transaction is mined or the confirmation
// window closes. Transient read errors are retried until the deadline.
func (s *Submitter) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.chain.Receipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			s.logger.DebugContext(ctx, "receipt read failed, retrying", "tx_hash", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			waited := time.Since(start).Round(time.Millisecond)
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, fmt.Errorf("%w: %s: wait canceled after %v: %w", chain.ErrConfirmationTimeout, hash.Hex(), waited, ctx.Err())
			}
			return nil, fmt.Errorf("%w: %s not mined after %v: %w", chain.ErrConfirmationTimeout, hash.Hex(), waited, ctx.Err())
		case <-ticker.C:
		}
	}
}

// emit hands rec to the optional sinks. Their failures never fail the
// submission.
func (s *Submitter) emit(ctx context.Context, rec Record) {
	if s.journal != nil {
		if err := s.journal.SaveTransaction(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "failed to journal transaction", "tx_hash", rec.ID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishTransaction(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "failed to publish transaction", "tx_hash", rec.ID, "error", err)
		}
	}
}
