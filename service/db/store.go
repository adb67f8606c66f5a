package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/shardpay/service/metrics"
	"github.com/brojonat/shardpay/service/txn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// DefaultListLimit applies when ListTransactionsParams.Limit is zero.
	DefaultListLimit = 50
	// MaxListLimit caps ListTransactionsParams.Limit.
	MaxListLimit = 500
)

var (
	// ErrNotFound is returned when no transaction matches.
	ErrNotFound = errors.New("transaction not found")

	errMissingHash = errors.New("transaction has no hash")
)

// Store journals settled transactions for the activity history. The journal
// is write-mostly: nothing reads it back to derive wallet or vault state.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewStore creates a Store over pool.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:    pool,
		metrics: m,
		logger:  logger,
	}
}

// ListTransactionsParams filters the activity history. Empty fields match
// everything.
type ListTransactionsParams struct {
	// Address matches either the signing wallet or the counterparty.
	Address string
	Kind    string
	// Search is a case-insensitive substring of the memo or counterparty.
	Search string
	Limit  int32
	Offset int32
}

const transactionColumns = `id, kind, status, amount, currency, from_address, counterparty, memo,
	submitted_at, hash, chain_id, block_number, confirmed_at, explorer_url`

// SaveTransaction upserts rec keyed by (hash, chain id). It satisfies
// txn.Journal.
func (s *Store) SaveTransaction(ctx context.Context, rec txn.Record) error {
	if rec.ReceiptHash == nil || *rec.ReceiptHash == "" {
		return errMissingHash
	}

	const query = `
INSERT INTO transactions (
	hash, chain_id, id, kind, status, amount, currency, from_address,
	counterparty, memo, block_number, submitted_at, confirmed_at, explorer_url
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (hash, chain_id) DO UPDATE SET
	status       = EXCLUDED.status,
	block_number = EXCLUDED.block_number,
	confirmed_at = EXCLUDED.confirmed_at,
	updated_at   = now()`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		strings.ToLower(*rec.ReceiptHash),
		int64(rec.ChainID),
		rec.ID,
		string(rec.Kind),
		string(rec.Status),
		rec.Amount,
		rec.Currency,
		strings.ToLower(rec.From),
		pgtextFromStringPtr(lowerPtr(rec.Counterparty)),
		pgtextFromStringPtr(rec.Memo),
		pgint8FromUint(rec.BlockNumber),
		rec.SubmittedAt,
		pgTimestamptzFromPtr(rec.ConfirmedAt),
		rec.ExplorerURL,
	)
	s.metrics.RecordDBQuery("save", "transactions", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by hash and chain id.
func (s *Store) GetTransaction(ctx context.Context, hash string, chainID uint64) (*txn.Record, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE hash = $1 AND chain_id = $2`

	start := time.Now()
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, strings.ToLower(hash), int64(chainID)))
	if errors.Is(err, pgx.ErrNoRows) {
		s.metrics.RecordDBQuery("get", "transactions", time.Since(start).Seconds(), nil)
		return nil, ErrNotFound
	}
	s.metrics.RecordDBQuery("get", "transactions", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return rec, nil
}

// ListTransactions returns matching transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, params ListTransactionsParams) ([]*txn.Record, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
WHERE ($1::text = '' OR from_address = $1 OR counterparty = $1)
  AND ($2::text = '' OR kind = $2)
  AND ($3::text = '' OR memo ILIKE '%' || $3 || '%' OR counterparty ILIKE '%' || $3 || '%')
ORDER BY submitted_at DESC, hash
LIMIT $4 OFFSET $5`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query,
		strings.ToLower(strings.TrimSpace(params.Address)),
		params.Kind,
		strings.TrimSpace(params.Search),
		limit,
		offset,
	)
	if err != nil {
		s.metrics.RecordDBQuery("list", "transactions", time.Since(start).Seconds(), err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	records := make([]*txn.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			s.metrics.RecordDBQuery("list", "transactions", time.Since(start).Seconds(), err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		records = append(records, rec)
	}
	err = rows.Err()
	s.metrics.RecordDBQuery("list", "transactions", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return records, nil
}

// CountTransactionsByAddress counts transactions signed by address.
func (s *Store) CountTransactionsByAddress(ctx context.Context, address string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM transactions WHERE from_address = $1`,
		strings.ToLower(address),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

// DeleteTransactionsOlderThan removes journal entries submitted before t.
func (s *Store) DeleteTransactionsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE submitted_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (*txn.Record, error) {
	var (
		rec          txn.Record
		kind, status string
		hash         string
		chainID      int64
		counterparty pgtype.Text
		memo         pgtype.Text
		blockNumber  pgtype.Int8
		confirmedAt  pgtype.Timestamptz
	)
	err := row.Scan(
		&rec.ID, &kind, &status, &rec.Amount, &rec.Currency, &rec.From,
		&counterparty, &memo, &rec.SubmittedAt, &hash, &chainID,
		&blockNumber, &confirmedAt, &rec.ExplorerURL,
	)
	if err != nil {
		return nil, err
	}
	rec.Kind = txn.Kind(kind)
	rec.Status = txn.Status(status)
	rec.ReceiptHash = &hash
	rec.ChainID = uint64(chainID)
	rec.Counterparty = stringPtrFromPgtext(counterparty)
	rec.Memo = stringPtrFromPgtext(memo)
	if blockNumber.Valid {
		rec.BlockNumber = uint64(blockNumber.Int64)
	}
	rec.ConfirmedAt = timePtrFromPgTimestamptz(confirmedAt)
	return &rec, nil
}

func lowerPtr(s *string) *string {
	if s == nil {
		return nil
	}
	l := strings.ToLower(*s)
	return &l
}

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func pgint8FromUint(n uint64) pgtype.Int8 {
	if n == 0 {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: int64(n), Valid: true}
}

func pgTimestamptzFromPtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtrFromPgTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

var _ txn.Journal = (*Store)(nil)
