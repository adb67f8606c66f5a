package chain

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)
	smallest := big.NewInt(1)
	precise, _ := new(big.Int).SetString("123456789012345678901", 10)
	largest := new(big.Int).Exp(big.NewInt(10), big.NewInt(77), nil)

	tests := []struct {
		name    string
		input   string
		want    *big.Int
		wantErr string
	}{
		{name: "whole", input: "1", want: oneEther},
		{name: "smallest unit", input: "0.000000000000000001", want: smallest},
		{name: "no float rounding", input: "123.456789012345678901", want: precise},
		{name: "negative", input: "-5", wantErr: "greater than zero"},
		{name: "zero", input: "0", wantErr: "greater than zero"},
		{name: "not a number", input: "abc", wantErr: "must be a number"},
		{name: "empty", input: " ", wantErr: "required"},
		{name: "nan", input: "NaN", wantErr: "finite"},
		{name: "infinity", input: "-Inf", wantErr: "finite"},
		{name: "too precise", input: "0.0000000000000000001", wantErr: "decimal places"},
		{name: "largest magnitude", input: "1e59", want: largest},
		{name: "beyond uint256", input: "1e60", wantErr: "too large"},
		{name: "huge exponent", input: "1e900000000", wantErr: "out of range"},
		{name: "tiny exponent", input: "1e-900000000", wantErr: "out of range"},
		{name: "long coefficient", input: "1234567890123456789012345678901234567890123456789012345678901", wantErr: "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input, 18)
			if tt.wantErr != "" {
				require.Error(t, err)
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "amount", ve.Field)
				assert.Contains(t, ve.Reason, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, tt.want.Cmp(got), "got %s", got)
		})
	}
}

func TestFormatAndDisplayAmount(t *testing.T) {
	base, ok := new(big.Int).SetString("1234567890000000000", 10)
	require.True(t, ok)

	assert.Equal(t, "1.23456789", FormatAmount(base, 18))
	assert.Equal(t, "1.2346", DisplayAmount(base, 18))
	assert.Equal(t, "0.0000", DisplayAmount(nil, 18))

	// display formatting never changes the underlying value
	assert.Equal(t, "1234567890000000000", base.String())
}

func TestCheckMagnitude(t *testing.T) {
	assert.NoError(t, CheckMagnitude("total", decimal.RequireFromString("1000000"), 2))
	assert.NoError(t, CheckMagnitude("total", decimal.RequireFromString("12.50"), 2))

	err := CheckMagnitude("total", decimal.RequireFromString("1e900000000"), 2)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "total", ve.Field)
	assert.Equal(t, "total is out of range", ve.Reason)

	err = CheckMagnitude("total", decimal.RequireFromString("1e77"), 2)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "total is too large", ve.Reason)
}
