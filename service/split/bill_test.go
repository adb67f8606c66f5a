package split

import (
	"testing"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func owed(v View) []string {
	out := make([]string, len(v.Participants))
	for i, p := range v.Participants {
		out[i] = p.OwedAmount.StringFixed(Places)
	}
	return out
}

func TestNewDefaultBill(t *testing.T) {
	v := NewDefaultBill().View()
	require.Len(t, v.Participants, 2)
	assert.Equal(t, "You", v.Participants[0].Name)
	assert.Equal(t, "", v.Participants[1].Name)
	assert.Equal(t, 2.0, v.TotalShares)
	for _, p := range v.Participants {
		assert.Equal(t, StatusIdle, p.PaymentStatus)
		assert.NotEmpty(t, p.ID)
	}
	assert.NotEqual(t, v.Participants[0].ID, v.Participants[1].ID)
}

func TestBillRecomputesOnEveryEdit(t *testing.T) {
	b := NewBill()
	require.NoError(t, b.SetTotal(decimal.NewFromInt(100)))

	you, err := b.Add("You", "", 1)
	require.NoError(t, err)
	assert.Equal(t, "100.00", you.OwedAmount.StringFixed(Places))

	alice, err := b.Add("Alice", "", 1)
	require.NoError(t, err)
	assert.Equal(t, "50.00", alice.OwedAmount.StringFixed(Places))
	assert.Equal(t, []string{"50.00", "50.00"}, owed(b.View()))

	bob, err := b.Add("Bob", "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"25.00", "25.00", "50.00"}, owed(b.View()))

	share := 3.0
	require.NoError(t, b.Update(bob.ID, ParticipantUpdate{Share: &share}))
	assert.Equal(t, []string{"20.00", "20.00", "60.00"}, owed(b.View()))

	require.NoError(t, b.Remove(alice.ID))
	assert.Equal(t, []string{"25.00", "75.00"}, owed(b.View()))

	require.NoError(t, b.SetTotal(decimal.NewFromInt(40)))
	assert.Equal(t, []string{"10.00", "30.00"}, owed(b.View()))
}

func TestBillUpdate(t *testing.T) {
	b := NewDefaultBill()
	id := b.View().Participants[1].ID

	name, addr := "Alice", "  0x00000000000000000000000000000000000a11ce "
	require.NoError(t, b.Update(id, ParticipantUpdate{Name: &name, WalletAddress: &addr}))

	p, ok := b.Participant(id)
	require.True(t, ok)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "0x00000000000000000000000000000000000a11ce", p.WalletAddress)
	assert.Equal(t, 1.0, p.Share)
}

func TestBillEditErrors(t *testing.T) {
	b := NewDefaultBill()
	before := b.View()

	zero := 0.0
	err := b.Update(before.Participants[0].ID, ParticipantUpdate{Share: &zero})
	assert.True(t, chain.IsValidationError(err))

	assert.ErrorIs(t, b.Update("missing", ParticipantUpdate{}), ErrParticipantNotFound)
	assert.ErrorIs(t, b.Remove("missing"), ErrParticipantNotFound)

	_, err = b.Add("Carol", "", -1)
	assert.True(t, chain.IsValidationError(err))

	assert.True(t, chain.IsValidationError(b.SetTotal(decimal.NewFromInt(-5))))
	assert.True(t, chain.IsValidationError(b.SetTotal(decimal.RequireFromString("1e900000000"))))
	assert.True(t, chain.IsValidationError(b.ApplyShares(decimal.RequireFromString("1e900000000"), nil)))
	assert.Equal(t, before, b.View())
}

func TestApplyShares(t *testing.T) {
	b := NewBill()
	_, err := b.Add("You", "", 1)
	require.NoError(t, err)
	_, err = b.Add("Alice", "", 1)
	require.NoError(t, err)
	_, err = b.Add("Bob", "", 5)
	require.NoError(t, err)

	err = b.ApplyShares(decimal.RequireFromString("42.499"), map[string]float64{
		"you":     2,
		" ALICE ": 0,
		"Nobody":  9,
	})
	require.NoError(t, err)

	v := b.View()
	assert.Equal(t, "42.5", v.TotalAmount.String())
	assert.Equal(t, 2.0, v.Participants[0].Share)
	assert.Equal(t, 1.0, v.Participants[1].Share, "non-positive suggestion counts as one")
	assert.Equal(t, 5.0, v.Participants[2].Share, "unmatched participants keep their share")
	assert.Equal(t, []string{"10.63", "5.31", "26.56"}, owed(v))
}

func TestBillOnChange(t *testing.T) {
	b := NewBill()
	var views []View
	b.OnChange(func(v View) { views = append(views, v) })

	require.NoError(t, b.SetTotal(decimal.NewFromInt(10)))
	_, err := b.Add("Alice", "", 1)
	require.NoError(t, err)

	require.Len(t, views, 2)
	assert.Empty(t, views[0].Participants)
	assert.Equal(t, "10.00", views[1].Participants[0].OwedAmount.StringFixed(Places))
}

func TestCheckEligibility(t *testing.T) {
	valid := "0x00000000000000000000000000000000000b0b00"
	tests := []struct {
		name    string
		p       Participant
		field   string
		message string
	}{
		{name: "eligible", p: Participant{Name: "Bob", WalletAddress: valid, OwedAmount: decimal.NewFromInt(1)}},
		{name: "missing wallet", p: Participant{Name: "Bob", OwedAmount: decimal.NewFromInt(1)}, field: "wallet_address", message: "missing wallet address for Bob"},
		{name: "malformed wallet", p: Participant{Name: "Bob", WalletAddress: "0x123", OwedAmount: decimal.NewFromInt(1)}, field: "wallet_address", message: "invalid wallet address for Bob"},
		{name: "zero owed", p: Participant{Name: "Bob", WalletAddress: valid, OwedAmount: decimal.Zero}, field: "owed_amount", message: "invalid amount for Bob"},
		{name: "unnamed", p: Participant{OwedAmount: decimal.NewFromInt(1)}, field: "wallet_address", message: "missing wallet address for a participant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEligibility(tt.p)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *chain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.message, ve.Reason)
		})
	}
}

func TestPaymentRequest(t *testing.T) {
	req := PaymentRequest(Participant{Name: "Bob", WalletAddress: "0xabc", OwedAmount: decimal.RequireFromString("12.5")})
	assert.Equal(t, "split", string(req.Kind))
	assert.Equal(t, "0xabc", req.To)
	assert.Equal(t, "12.50", req.Amount)
	assert.Equal(t, "Payment for Bob's share of the bill", req.Memo)

	req = PaymentRequest(Participant{OwedAmount: decimal.NewFromInt(1)})
	assert.Equal(t, "Payment for a participant's share of the bill", req.Memo)
}
