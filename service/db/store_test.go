package db

import (
	"context"
	"testing"
	"time"

	"github.com/brojonat/shardpay/service/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0x00000000000000000000000000000000000A11CE"
	bob   = "0x00000000000000000000000000000000000b0b00"
)

func record(hash string, kind txn.Kind, submitted time.Time, memo string) txn.Record {
	h := hash
	rec := txn.Record{
		ID:          "id-" + hash,
		Kind:        kind,
		Amount:      "1.25",
		Currency:    "SHM",
		From:        alice,
		SubmittedAt: submitted,
		Status:      txn.StatusSuccess,
		ReceiptHash: &h,
		ChainID:     8080,
		BlockNumber: 7,
		ExplorerURL: "https://explorer-sphinx.shardeum.org/transaction/" + hash,
	}
	if memo != "" {
		rec.Memo = &memo
	}
	if kind == txn.KindPayment || kind == txn.KindSplit {
		to := bob
		rec.Counterparty = &to
	}
	confirmed := submitted.Add(5 * time.Second)
	rec.ConfirmedAt = &confirmed
	return rec
}

func TestSaveAndGetTransaction(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	rec := record("0xAAA1", txn.KindPayment, now, "coffee")
	require.NoError(t, store.SaveTransaction(ctx, rec))

	got, err := store.GetTransaction(ctx, "0xaaa1", 8080)
	require.NoError(t, err)
	assert.Equal(t, "0xaaa1", *got.ReceiptHash)
	assert.Equal(t, "0x00000000000000000000000000000000000a11ce", got.From)
	assert.Equal(t, "0x00000000000000000000000000000000000b0b00", *got.Counterparty)
	assert.Equal(t, "coffee", *got.Memo)
	assert.Equal(t, txn.KindPayment, got.Kind)
	assert.Equal(t, txn.StatusSuccess, got.Status)
	assert.Equal(t, "1.25", got.Amount)
	assert.Equal(t, uint64(7), got.BlockNumber)
	assert.WithinDuration(t, now, got.SubmittedAt, time.Microsecond)
	require.NotNil(t, got.ConfirmedAt)

	_, err = store.GetTransaction(ctx, "0xaaa1", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveTransactionUpsert(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	rec := record("0xbbb1", txn.KindDeposit, time.Now().UTC(), "")
	rec.Status = txn.StatusPending
	rec.ConfirmedAt = nil
	rec.BlockNumber = 0
	require.NoError(t, store.SaveTransaction(ctx, rec))

	rec.Status = txn.StatusFailed
	rec.BlockNumber = 99
	require.NoError(t, store.SaveTransaction(ctx, rec))

	got, err := store.GetTransaction(ctx, "0xbbb1", 8080)
	require.NoError(t, err)
	assert.Equal(t, txn.StatusFailed, got.Status)
	assert.Equal(t, uint64(99), got.BlockNumber)

	n, err := store.CountTransactionsByAddress(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSaveTransactionRequiresHash(t *testing.T) {
	store := &Store{}
	err := store.SaveTransaction(context.Background(), txn.Record{Kind: txn.KindPayment})
	assert.ErrorIs(t, err, errMissingHash)
}

func TestListTransactions(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	for i, rec := range []txn.Record{
		record("0x01", txn.KindPayment, base, "Dinner with friends"),
		record("0x02", txn.KindSplit, base.Add(time.Minute), "Payment for Bob's share of the bill"),
		record("0x03", txn.KindDeposit, base.Add(2*time.Minute), "Manual deposit"),
	} {
		require.NoError(t, store.SaveTransaction(ctx, rec), "record %d", i)
	}

	t.Run("newest first", func(t *testing.T) {
		got, err := store.ListTransactions(ctx, ListTransactionsParams{Address: alice})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "0x03", *got[0].ReceiptHash)
		assert.Equal(t, "0x01", *got[2].ReceiptHash)
	})

	t.Run("counterparty matches address", func(t *testing.T) {
		got, err := store.ListTransactions(ctx, ListTransactionsParams{Address: bob})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by kind", func(t *testing.T) {
		got, err := store.ListTransactions(ctx, ListTransactionsParams{Kind: string(txn.KindDeposit)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Manual deposit", *got[0].Memo)
	})

	t.Run("search is case-insensitive", func(t *testing.T) {
		got, err := store.ListTransactions(ctx, ListTransactionsParams{Search: "DINNER"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "0x01", *got[0].ReceiptHash)
	})

	t.Run("pagination", func(t *testing.T) {
		got, err := store.ListTransactions(ctx, ListTransactionsParams{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "0x02", *got[0].ReceiptHash)
	})

	t.Run("retention", func(t *testing.T) {
		n, err := store.DeleteTransactionsOlderThan(ctx, base.Add(30*time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
