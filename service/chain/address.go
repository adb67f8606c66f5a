package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateAddress parses a 0x-prefixed 20-byte hex address. Mixed-case input
// must carry a valid EIP-55 checksum; all-lower or all-upper input is accepted
// as is.
func ValidateAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, NewValidationError("address", "address is required")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, NewValidationError("address", "address must start with 0x")
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, NewValidationError("address", "address must be 40 hexadecimal characters")
	}

	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		mixed, err := common.NewMixedcaseAddressFromString(s)
		if err != nil || !mixed.ValidChecksum() {
			return common.Address{}, NewValidationError("address", "address checksum is invalid")
		}
	}
	return common.HexToAddress(s), nil
}

// IsValidAddress is the boolean form of ValidateAddress.
func IsValidAddress(s string) bool {
	_, err := ValidateAddress(s)
	return err == nil
}

// TruncateAddress shortens an address for display: first six and last four
// characters. The full value is never replaced by this form.
func TruncateAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
