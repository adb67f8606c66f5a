package chain

import (
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayPlaces is the precision used when showing balances.
const DisplayPlaces = 4

// MaxAmountDigits bounds the digits of an amount in base units. A uint256
// holds at most 78 decimal digits.
const MaxAmountDigits = 78

// ParseAmount converts a human-readable decimal string into integer base
// units. The conversion is exact: input with more fractional digits than the
// token supports is rejected rather than rounded.
func ParseAmount(s string, decimals int32) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, NewValidationError("amount", "amount is required")
	}
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "nan", "inf", "infinity":
		return nil, NewValidationError("amount", "amount must be a finite number")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, NewValidationError("amount", "amount must be a number")
	}
	return ToBaseUnits(d, decimals)
}

// ToBaseUnits converts a decimal value into integer base units, rejecting
// non-positive values and values finer than the token precision.
func ToBaseUnits(d decimal.Decimal, decimals int32) (*big.Int, error) {
	if d.Sign() <= 0 {
		return nil, NewValidationError("amount", "amount must be greater than zero")
	}
	if err := CheckMagnitude("amount", d, decimals); err != nil {
		return nil, err
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, NewValidationError("amount", "amount has more decimal places than the token supports")
	}
	return shifted.BigInt(), nil
}

// CheckMagnitude rejects values that cannot fit in MaxAmountDigits base
// units at the given precision. It only inspects the coefficient size and
// exponent, so it is safe to call before any rescaling.
func CheckMagnitude(field string, d decimal.Decimal, decimals int32) error {
	exp := int64(d.Exponent())
	if exp > MaxAmountDigits || exp < -MaxAmountDigits {
		return NewValidationError(field, field+" is out of range")
	}
	bits := d.Coefficient().BitLen()
	digits := int64(float64(bits)*math.Log10(2)) + 1
	if digits+exp+int64(decimals) > MaxAmountDigits {
		return NewValidationError(field, field+" is too large")
	}
	return nil
}

// FromBaseUnits converts integer base units into a decimal value.
func FromBaseUnits(base *big.Int, decimals int32) decimal.Decimal {
	if base == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(base, -decimals)
}

// FormatAmount renders base units at full precision with trailing zeros removed.
func FormatAmount(base *big.Int, decimals int32) string {
	return FromBaseUnits(base, decimals).String()
}

// DisplayAmount renders base units rounded to DisplayPlaces.
func DisplayAmount(base *big.Int, decimals int32) string {
	return FromBaseUnits(base, decimals).StringFixed(DisplayPlaces)
}
