package split

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/metrics"
	"github.com/brojonat/shardpay/service/txn"
)

// DefaultSuccessWindow is how long a paid participant shows success before
// returning to idle.
const DefaultSuccessWindow = 3 * time.Second

// ErrDispatchInProgress is returned when a bill is edited or dispatched
// while a dispatch is running.
var ErrDispatchInProgress = errors.New("split dispatch already in progress")

// Submitter submits a single transaction. *txn.Submitter implements it.
type Submitter interface {
	Submit(ctx context.Context, req txn.Request) (*txn.Record, error)
}

// Outcome is the result of one participant's leg.
type Outcome struct {
	ParticipantID string        `json:"participant_id"`
	Name          string        `json:"name"`
	Status        PaymentStatus `json:"status"`
	// Submitted is false when the leg never reached the wallet.
	Submitted bool        `json:"submitted"`
	Record    *txn.Record `json:"record,omitempty"`
	Error     string      `json:"error,omitempty"`
	Err       error       `json:"-"`
}

// Dispatcher pays a bill's participants one at a time. A failing leg never
// stops the legs after it.
type Dispatcher struct {
	submitter     Submitter
	metrics       *metrics.Metrics
	logger        *slog.Logger
	successWindow time.Duration
	afterFunc     func(time.Duration, func())
}

// NewDispatcher creates a dispatcher. A non-positive window uses
// DefaultSuccessWindow.
func NewDispatcher(s Submitter, successWindow time.Duration, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if successWindow <= 0 {
		successWindow = DefaultSuccessWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		submitter:     s,
		metrics:       m,
		logger:        logger,
		successWindow: successWindow,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Dispatch pays every participant in roster order and returns one outcome
// per participant. The returned error is non-nil only when the dispatch
// could not start; leg failures are reported in the outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, bill *Bill) ([]Outcome, error) {
	participants, err := bill.beginDispatch()
	if err != nil {
		return nil, err
	}
	defer bill.endDispatch()

	d.logger.InfoContext(ctx, "dispatching split bill",
		"participants", len(participants),
		"total", bill.View().TotalAmount.StringFixed(Places))

	outcomes := make([]Outcome, 0, len(participants))
	for _, p := range participants {
		o := d.leg(ctx, bill, p)
		d.metrics.RecordSplitLeg(string(o.Status))
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// Settle records outcomes produced elsewhere (e.g. by a durable workflow)
// onto the bill, exactly as Dispatch would have.
func (d *Dispatcher) Settle(bill *Bill, outcomes []Outcome) {
	for _, o := range outcomes {
		d.metrics.RecordSplitLeg(string(o.Status))
		d.record(bill, o)
	}
}

func (d *Dispatcher) leg(ctx context.Context, bill *Bill, p Participant) Outcome {
	o := Outcome{ParticipantID: p.ID, Name: p.Name}

	if err := CheckEligibility(p); err != nil {
		o.Status, o.Err, o.Error = StatusError, err, chain.Describe(err)
		d.logger.WarnContext(ctx, "skipping ineligible participant",
			"participant", p.ID, "error", err)
		d.record(bill, o)
		return o
	}
	if err := ctx.Err(); err != nil {
		o.Status, o.Err, o.Error = StatusError, err, chain.Describe(err)
		d.record(bill, o)
		return o
	}

	bill.setStatus(p.ID, StatusProcessing, "", "")
	rec, err := d.submitter.Submit(ctx, PaymentRequest(p))
	o.Submitted = rec != nil
	o.Record = rec
	if err != nil {
		o.Status, o.Err, o.Error = StatusError, err, chain.Describe(err)
		d.logger.ErrorContext(ctx, "split leg failed",
			"participant", p.ID, "to", p.WalletAddress, "error", err)
	} else {
		o.Status = StatusSuccess
		d.logger.InfoContext(ctx, "split leg paid",
			"participant", p.ID, "to", p.WalletAddress, "amount", p.OwedAmount.StringFixed(Places))
	}
	d.record(bill, o)
	return o
}

func (d *Dispatcher) record(bill *Bill, o Outcome) {
	var hash string
	if o.Record != nil && o.Record.ReceiptHash != nil {
		hash = *o.Record.ReceiptHash
	}
	bill.setStatus(o.ParticipantID, o.Status, o.Error, hash)
	if o.Status == StatusSuccess {
		id := o.ParticipantID
		d.afterFunc(d.successWindow, func() { bill.revertSuccess(id) })
	}
}
