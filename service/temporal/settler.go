package temporal

import "context"

// Settler runs durable split settlements. *Client implements it.
type Settler interface {
	SettleSplit(ctx context.Context, input SplitSettlementInput) (*SplitSettlementResult, error)
}
