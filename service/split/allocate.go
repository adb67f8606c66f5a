package split

import (
	"math"
	"math/big"
	"sort"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/shopspring/decimal"
)

// Places is the precision owed amounts are expressed in.
const Places = 2

// Allocate divides total among shares proportionally, at Places decimal
// places, using the largest-remainder method so the parts always sum to
// total rounded to Places. Shares must be positive and finite.
func Allocate(total decimal.Decimal, shares []float64) ([]decimal.Decimal, error) {
	if err := validateTotal(total); err != nil {
		return nil, err
	}
	out := make([]decimal.Decimal, len(shares))
	if len(shares) == 0 {
		return out, nil
	}

	weights := make([]decimal.Decimal, len(shares))
	minExp := int32(0)
	for i, s := range shares {
		if err := ValidateShare(s); err != nil {
			return nil, err
		}
		weights[i] = decimal.NewFromFloat(s)
		if e := weights[i].Exponent(); e < minExp {
			minExp = e
		}
	}

	// Scale weights to integers so every quotient below is exact.
	ints := make([]*big.Int, len(weights))
	sum := new(big.Int)
	for i, w := range weights {
		ints[i] = w.Shift(-minExp).BigInt()
		sum.Add(sum, ints[i])
	}

	units := total.Round(Places).Shift(Places).BigInt()
	type part struct {
		idx       int
		remainder *big.Int
	}
	parts := make([]part, len(shares))
	allocated := new(big.Int)
	for i, w := range ints {
		q, r := new(big.Int).QuoRem(new(big.Int).Mul(units, w), sum, new(big.Int))
		out[i] = decimal.NewFromBigInt(q, 0)
		allocated.Add(allocated, q)
		parts[i] = part{idx: i, remainder: r}
	}

	// Remainders share the denominator sum, so they compare directly.
	sort.SliceStable(parts, func(a, b int) bool {
		return parts[a].remainder.Cmp(parts[b].remainder) > 0
	})
	left := new(big.Int).Sub(units, allocated).Int64()
	for i := 0; left > 0; i++ {
		out[parts[i].idx] = out[parts[i].idx].Add(decimal.NewFromInt(1))
		left--
	}

	for i := range out {
		out[i] = out[i].Shift(-Places)
	}
	return out, nil
}

func validateTotal(total decimal.Decimal) error {
	if total.Sign() < 0 {
		return chain.NewValidationError("total", "total must not be negative")
	}
	return chain.CheckMagnitude("total", total, Places)
}

// ValidateShare checks a participant weight.
func ValidateShare(s float64) error {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return chain.NewValidationError("share", "share must be a finite number")
	}
	if s <= 0 {
		return chain.NewValidationError("share", "share must be greater than zero")
	}
	return nil
}
