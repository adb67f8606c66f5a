package temporal

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/metrics"
	"github.com/brojonat/shardpay/service/split"
)

// Activities holds the dependencies of settlement activities.
type Activities struct {
	submitter split.Submitter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates an Activities. If metrics is nil, no metrics are
// recorded.
func NewActivities(submitter split.Submitter, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		submitter: submitter,
		metrics:   m,
		logger:    logger,
	}
}

// SubmitSplitLeg pays one leg. Payment failures are reported in the result,
// not as an activity error, so the workflow never retries a transfer.
func (a *Activities) SubmitSplitLeg(ctx context.Context, leg Leg) (*LegResult, error) {
	start := time.Now()
	result := &LegResult{ParticipantID: leg.ParticipantID, Name: leg.Name}

	p, err := leg.participant()
	if err != nil {
		result.Status = string(split.StatusError)
		result.Error = chain.Describe(err)
		a.metrics.RecordSplitLeg(result.Status)
		return result, nil
	}

	a.logger.InfoContext(ctx, "submitting split leg",
		"participant", leg.ParticipantID,
		"to", leg.WalletAddress,
		"amount", leg.Amount,
	)

	rec, err := a.submitter.Submit(ctx, split.PaymentRequest(p))
	result.Record = rec
	result.Submitted = rec != nil
	if err != nil {
		result.Status = string(split.StatusError)
		result.Error = chain.Describe(err)
		a.logger.ErrorContext(ctx, "split leg failed",
			"participant", leg.ParticipantID,
			"error", err,
			"duration", time.Since(start),
		)
	} else {
		result.Status = string(split.StatusSuccess)
		a.logger.InfoContext(ctx, "split leg paid",
			"participant", leg.ParticipantID,
			"duration", time.Since(start),
		)
	}
	a.metrics.RecordSplitLeg(result.Status)
	return result, nil
}
