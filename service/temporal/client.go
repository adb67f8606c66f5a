package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
)

// Client starts settlement workflows on Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// StartSplitSettlement starts a settlement and returns its workflow and run
// ids without waiting for it.
func (c *Client) StartSplitSettlement(ctx context.Context, input SplitSettlementInput) (client.WorkflowRun, error) {
	id := "split-settlement-" + uuid.NewString()
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
		Memo: map[string]interface{}{
			"legs":       len(input.Legs),
			"created_by": "shardpay",
		},
	}, SplitSettlementWorkflow, input)
	if err != nil {
		c.logger.Error("failed to start split settlement",
			"workflow_id", id,
			"error", err,
		)
		return nil, fmt.Errorf("failed to start workflow %q: %w", id, err)
	}

	c.logger.Info("split settlement started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"legs", len(input.Legs),
	)
	return run, nil
}

// SettleSplit runs a settlement and waits for its result.
func (c *Client) SettleSplit(ctx context.Context, input SplitSettlementInput) (*SplitSettlementResult, error) {
	run, err := c.StartSplitSettlement(ctx, input)
	if err != nil {
		return nil, err
	}

	var result SplitSettlementResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("split settlement %s failed: %w", run.GetID(), err)
	}
	return &result, nil
}

// SDKClient returns the underlying Temporal SDK client.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
