package temporal

import (
	"context"
	"sync"
)

// MockSettler is a Settler for tests. By default every eligible leg
// succeeds.
type MockSettler struct {
	mu     sync.Mutex
	inputs []SplitSettlementInput
	result *SplitSettlementResult
	err    error
}

func NewMockSettler() *MockSettler {
	return &MockSettler{}
}

func (m *MockSettler) SettleSplit(ctx context.Context, input SplitSettlementInput) (*SplitSettlementResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}

	result := &SplitSettlementResult{}
	for _, leg := range input.Legs {
		lr := LegResult{ParticipantID: leg.ParticipantID, Name: leg.Name, Status: "success", Submitted: true}
		if _, err := leg.participant(); err != nil {
			lr.Status, lr.Submitted, lr.Error = "error", false, err.Error()
			result.Failed++
		} else {
			result.Succeeded++
		}
		result.Legs = append(result.Legs, lr)
	}
	return result, nil
}

// SetResult fixes the result returned by SettleSplit.
func (m *MockSettler) SetResult(r *SplitSettlementResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = r
}

func (m *MockSettler) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Inputs returns every input passed to SettleSplit.
func (m *MockSettler) Inputs() []SplitSettlementInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SplitSettlementInput(nil), m.inputs...)
}

var (
	_ Settler = (*Client)(nil)
	_ Settler = (*MockSettler)(nil)
)
