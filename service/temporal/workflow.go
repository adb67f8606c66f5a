package temporal

import (
	"fmt"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/split"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// LegTimeout bounds one SubmitSplitLeg attempt. It must exceed the
// submitter's confirmation timeout.
const LegTimeout = 5 * time.Minute

// SplitSettlementWorkflow pays each leg in order, one at a time. Ineligible
// legs are reported without running an activity. A failed leg never stops
// the legs after it, and no leg is attempted twice.
func SplitSettlementWorkflow(ctx workflow.Context, input SplitSettlementInput) (*SplitSettlementResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SplitSettlementWorkflow started", "legs", len(input.Legs))

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: LegTimeout,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	result := &SplitSettlementResult{Legs: make([]LegResult, 0, len(input.Legs))}
	for _, leg := range input.Legs {
		lr := settleLeg(ctx, leg)
		if lr.Status == string(split.StatusSuccess) {
			result.Succeeded++
		} else {
			result.Failed++
		}
		result.Legs = append(result.Legs, lr)
	}

	logger.Info("SplitSettlementWorkflow finished",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return result, nil
}

func settleLeg(ctx workflow.Context, leg Leg) LegResult {
	if _, err := leg.participant(); err != nil {
		return LegResult{
			ParticipantID: leg.ParticipantID,
			Name:          leg.Name,
			Status:        string(split.StatusError),
			Error:         chain.Describe(err),
		}
	}

	var out *LegResult
	err := workflow.ExecuteActivity(ctx, a.SubmitSplitLeg, leg).Get(ctx, &out)
	if err != nil || out == nil {
		workflow.GetLogger(ctx).Error("split leg activity failed",
			"participant", leg.ParticipantID,
			"error", err,
		)
		// The transfer may or may not have been broadcast.
		return LegResult{
			ParticipantID: leg.ParticipantID,
			Name:          leg.Name,
			Status:        string(split.StatusError),
			Error:         fmt.Sprintf("settlement activity failed: %v", err),
		}
	}
	return *out
}
