package vault

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Summary is the derived view of a user's vault. It is recomputed from the
// contract on every refresh and never persisted.
type Summary struct {
	Address          string          `json:"address,omitempty"`
	ChainID          uint64          `json:"chain_id,omitempty"`
	Goal             decimal.Decimal `json:"goal"`
	Saved            decimal.Decimal `json:"saved"`
	ProgressPct      float64         `json:"progress_pct"`
	MicroSaveEnabled bool            `json:"micro_save_enabled"`
	IsLoading        bool            `json:"is_loading"`
	// LastError describes the most recent failed refresh, if the values
	// shown are last-known rather than fresh.
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Progress returns saved as a percentage of goal. A zero or negative goal
// yields 0, negative progress is clamped to 0 and there is no upper bound.
func Progress(saved, goal decimal.Decimal) float64 {
	if goal.Sign() <= 0 {
		return 0
	}
	pct := saved.Mul(hundred).DivRound(goal, 4)
	if pct.Sign() < 0 {
		return 0
	}
	return pct.InexactFloat64()
}
