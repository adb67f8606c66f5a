package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/shardpay/service/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settled() txn.Record {
	hash := "0xabc123"
	memo := "dinner"
	to := "0x00000000000000000000000000000000000b0b00"
	confirmed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return txn.Record{
		ID:           "rec-1",
		Kind:         txn.KindPayment,
		Amount:       "1.5",
		Currency:     "SHM",
		From:         "0x00000000000000000000000000000000000A11CE",
		Counterparty: &to,
		Memo:         &memo,
		SubmittedAt:  confirmed.Add(-time.Minute),
		Status:       txn.StatusSuccess,
		ReceiptHash:  &hash,
		ChainID:      8080,
		BlockNumber:  42,
		ConfirmedAt:  &confirmed,
		ExplorerURL:  "https://explorer-sphinx.shardeum.org/transaction/0xabc123",
	}
}

func TestFromRecord(t *testing.T) {
	rec := settled()
	event := FromRecord(rec)

	assert.Equal(t, "rec-1", event.ID)
	assert.Equal(t, "0xabc123", event.Hash)
	assert.Equal(t, "0x00000000000000000000000000000000000a11ce", event.WalletAddress)
	assert.Equal(t, rec.Counterparty, event.Counterparty)
	assert.Equal(t, "payment", event.Kind)
	assert.Equal(t, "success", event.Status)
	assert.Equal(t, "dinner", event.Memo)
	assert.Equal(t, uint64(42), event.BlockNumber)
	assert.Equal(t, rec.ConfirmedAt, event.ConfirmedAt)
	assert.False(t, event.PublishedAt.IsZero())
}

func TestFromRecordOptionalFields(t *testing.T) {
	event := FromRecord(txn.Record{Kind: txn.KindGoalUpdate, Status: txn.StatusFailed, From: "0xAB"})
	assert.Empty(t, event.Hash)
	assert.Empty(t, event.Memo)
	assert.Nil(t, event.Counterparty)
	assert.Nil(t, event.ConfirmedAt)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "txns.0xabcdef", Subject("0xABCdef"))
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	m := NewMockPublisher()

	require.NoError(t, m.PublishTransaction(ctx, settled()))
	assert.Equal(t, 1, m.GetPublishedEventCount())
	assert.Len(t, m.GetPublishedEventsForWallet("0x00000000000000000000000000000000000A11CE"), 1)
	assert.Empty(t, m.GetPublishedEventsForWallet("0x00000000000000000000000000000000000b0b00"))

	boom := errors.New("nats down")
	m.SetPublishError(boom)
	assert.ErrorIs(t, m.PublishTransaction(ctx, settled()), boom)
	assert.Equal(t, 1, m.GetPublishedEventCount())

	m.Reset()
	assert.Equal(t, 0, m.GetPublishedEventCount())
	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
}
