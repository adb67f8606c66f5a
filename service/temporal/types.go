package temporal

import (
	"github.com/brojonat/shardpay/service/split"
	"github.com/brojonat/shardpay/service/txn"
	"github.com/shopspring/decimal"
)

// Leg is one participant payment in a settlement.
type Leg struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	WalletAddress string `json:"wallet_address"`
	// Amount is the owed amount at two decimal places.
	Amount string `json:"amount"`
}

// SplitSettlementInput is the input of SplitSettlementWorkflow.
type SplitSettlementInput struct {
	Legs []Leg `json:"legs"`
}

// LegResult is the outcome of one leg.
type LegResult struct {
	ParticipantID string      `json:"participant_id"`
	Name          string      `json:"name"`
	Status        string      `json:"status"`
	Submitted     bool        `json:"submitted"`
	Record        *txn.Record `json:"record,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// SplitSettlementResult lists leg outcomes in roster order.
type SplitSettlementResult struct {
	Legs      []LegResult `json:"legs"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// LegsFromView builds settlement legs from a bill snapshot.
func LegsFromView(v split.View) []Leg {
	legs := make([]Leg, 0, len(v.Participants))
	for _, p := range v.Participants {
		legs = append(legs, Leg{
			ParticipantID: p.ID,
			Name:          p.Name,
			WalletAddress: p.WalletAddress,
			Amount:        p.OwedAmount.StringFixed(split.Places),
		})
	}
	return legs
}

// Outcomes converts a settlement result for split.Dispatcher.Settle.
func Outcomes(r *SplitSettlementResult) []split.Outcome {
	if r == nil {
		return nil
	}
	out := make([]split.Outcome, 0, len(r.Legs))
	for _, l := range r.Legs {
		out = append(out, split.Outcome{
			ParticipantID: l.ParticipantID,
			Name:          l.Name,
			Status:        split.PaymentStatus(l.Status),
			Submitted:     l.Submitted,
			Record:        l.Record,
			Error:         l.Error,
		})
	}
	return out
}

func (l Leg) participant() (split.Participant, error) {
	owed, err := decimal.NewFromString(l.Amount)
	if err != nil {
		owed = decimal.Zero
	}
	p := split.Participant{
		ID:            l.ParticipantID,
		Name:          l.Name,
		WalletAddress: l.WalletAddress,
		OwedAmount:    owed,
	}
	return p, split.CheckEligibility(p)
}
