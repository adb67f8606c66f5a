package temporal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

const (
	youWallet = "0x00000000000000000000000000000000000000f0"
	bobWallet = "0x00000000000000000000000000000000000b0b00"
)

func threeLegs() SplitSettlementInput {
	return SplitSettlementInput{Legs: []Leg{
		{ParticipantID: "p1", Name: "You", WalletAddress: youWallet, Amount: "25.00"},
		{ParticipantID: "p2", Name: "Alice", WalletAddress: "", Amount: "25.00"},
		{ParticipantID: "p3", Name: "Bob", WalletAddress: bobWallet, Amount: "50.00"},
	}}
}

func TestSplitSettlementWorkflow(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.SubmitSplitLeg)

	var order []string
	env.OnActivity(activities.SubmitSplitLeg, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, leg Leg) (*LegResult, error) {
			order = append(order, leg.ParticipantID)
			return &LegResult{ParticipantID: leg.ParticipantID, Name: leg.Name, Status: "success", Submitted: true}, nil
		})

	env.ExecuteWorkflow(SplitSettlementWorkflow, threeLegs())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SplitSettlementResult
	require.NoError(t, env.GetWorkflowResult(&result))

	require.Len(t, result.Legs, 3)
	assert.Equal(t, "success", result.Legs[0].Status)
	assert.Equal(t, "error", result.Legs[1].Status)
	assert.Contains(t, result.Legs[1].Error, "missing wallet address for Alice")
	assert.False(t, result.Legs[1].Submitted)
	assert.Equal(t, "success", result.Legs[2].Status)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	assert.Equal(t, []string{"p1", "p3"}, order, "legs run in roster order and ineligible legs are skipped")
}

func TestSplitSettlementWorkflow_ActivityFailureIsolated(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.SubmitSplitLeg)

	calls := map[string]int{}
	env.OnActivity(activities.SubmitSplitLeg, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, leg Leg) (*LegResult, error) {
			calls[leg.ParticipantID]++
			if leg.ParticipantID == "p1" {
				return nil, errors.New("worker lost wallet")
			}
			return &LegResult{ParticipantID: leg.ParticipantID, Name: leg.Name, Status: "success", Submitted: true}, nil
		})

	input := threeLegs()
	input.Legs[1].WalletAddress = "0x00000000000000000000000000000000000a11ce"
	env.ExecuteWorkflow(SplitSettlementWorkflow, input)
	require.NoError(t, env.GetWorkflowError())

	var result SplitSettlementResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, "error", result.Legs[0].Status)
	assert.Contains(t, result.Legs[0].Error, "settlement activity failed")
	assert.Equal(t, "success", result.Legs[1].Status)
	assert.Equal(t, "success", result.Legs[2].Status)
	assert.Equal(t, 1, calls["p1"], "a failed leg is never retried")
}

func TestSplitSettlementWorkflow_Empty(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterActivity((&Activities{}).SubmitSplitLeg)

	env.ExecuteWorkflow(SplitSettlementWorkflow, SplitSettlementInput{})
	require.NoError(t, env.GetWorkflowError())

	var result SplitSettlementResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Empty(t, result.Legs)
}
