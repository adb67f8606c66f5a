package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "checksummed", input: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{name: "lowercase", input: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"},
		{name: "uppercase body", input: "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED"},
		{name: "surrounding whitespace", input: "  0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed "},
		{name: "empty", input: "", wantErr: "address is required"},
		{name: "missing prefix", input: "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", wantErr: "must start with 0x"},
		{name: "too short", input: "0x1234", wantErr: "40 hexadecimal"},
		{name: "non hex", input: "0xzzzeb6053f3e94c9b9a09f33669435e7ef1beaed", wantErr: "40 hexadecimal"},
		{name: "bad checksum", input: "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", wantErr: "checksum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ValidateAddress(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", addr.Hex())
		})
	}
}

func TestTruncateAddress(t *testing.T) {
	assert.Equal(t, "0x5aAe...eAed", TruncateAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.Equal(t, "0x12", TruncateAddress("0x12"))
}
