// Package consumer adapts the inbound transaction stream to the alert
// dispatcher: decode, validate, dispatch, record into the rolling windows,
// and quarantine what cannot be processed.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aegisfin/txmonitor/internal/aml"
	"github.com/aegisfin/txmonitor/internal/messaging"
)

// AggregateRecorder appends a processed transaction to the per-account
// rolling windows after scoring has read them.
type AggregateRecorder interface {
	Record(ctx context.Context, account string, txID string, amount decimal.Decimal, at time.Time) error
}

// QuarantinedEvent wraps a payload that could not be screened, preserving
// the raw bytes for replay after the fault is fixed.
type QuarantinedEvent struct {
	Reason       string          `json:"reason"`
	Error        string          `json:"error"`
	SourceTopic  string          `json:"source_topic"`
	Partition    int             `json:"partition"`
	Offset       int64           `json:"offset"`
	Payload      json.RawMessage `json:"payload"`
	QuarantineAt time.Time       `json:"quarantined_at"`
}

// Config holds the stream wiring for the monitor.
type Config struct {
	TransactionsTopic messaging.Topic
	QuarantineTopic   messaging.Topic
	GroupID           string
}

// DefaultConfig returns the default topics and group.
func DefaultConfig() Config {
	return Config{
		TransactionsTopic: messaging.TopicTransactionsCreated,
		QuarantineTopic:   messaging.TopicQuarantine,
		GroupID:           "aml-monitor",
	}
}

// TransactionConsumer consumes transaction events and drives the dispatcher.
type TransactionConsumer struct {
	cfg        Config
	consumer   messaging.Consumer
	producer   messaging.Producer
	dispatcher *aml.Dispatcher
	recorder   AggregateRecorder
	logger     *zap.SugaredLogger
}

// NewTransactionConsumer wires the stream adapter.
func NewTransactionConsumer(
	cfg Config,
	consumer messaging.Consumer,
	producer messaging.Producer,
	dispatcher *aml.Dispatcher,
	recorder AggregateRecorder,
	logger *zap.SugaredLogger,
) *TransactionConsumer {
	if cfg.TransactionsTopic == "" {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &TransactionConsumer{
		cfg:        cfg,
		consumer:   consumer,
		producer:   producer,
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     logger,
	}
}

// Start subscribes to the transaction topic and processes until ctx ends.
func (c *TransactionConsumer) Start(ctx context.Context) error {
	return c.consumer.Subscribe(ctx, c.cfg.TransactionsTopic, c.cfg.GroupID, c.Handle)
}

// Handle processes one delivery. Malformed payloads and transient scoring
// failures are quarantined with the raw payload preserved; duplicates are a
// no-op. Handle only returns an error when even quarantining failed.
func (c *TransactionConsumer) Handle(ctx context.Context, msg *messaging.ReceivedMessage) error {
	var event aml.TransactionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return c.quarantine(ctx, msg, "malformed_payload", err)
	}

	result, err := c.dispatcher.Dispatch(ctx, event)
	switch {
	case err == nil:
	case errors.Is(err, aml.ErrInvalidEvent):
		return c.quarantine(ctx, msg, "invalid_event", err)
	case errors.Is(err, aml.ErrPublishFailed):
		// The alert of record exists; reconciliation re-emits the
		// notification. Do not quarantine a screened transaction.
		c.logger.Warnw("alert notification pending reconciliation",
			"transaction_id", event.TransactionID, "error", err)
	default:
		// Transient dependency failure: fail closed and route the event
		// to quarantine for replay instead of scoring it low.
		return c.quarantine(ctx, msg, "scoring_failed", err)
	}

	// Record into the rolling windows only after scoring has read them
	// ("read before record" keeps the structuring check from counting the
	// transaction against itself). Redeliveries of a dispatched alert are
	// skipped; re-recording would inflate the windows.
	if !result.Duplicate {
		at := event.OccurredAt
		if at.IsZero() {
			at = msg.Timestamp
		}
		if err := c.recorder.Record(ctx, event.SenderAccount, event.TransactionID.String(), event.Amount, at); err != nil {
			c.logger.Errorw("window record failed",
				"transaction_id", event.TransactionID, "error", err)
		}
	}

	c.logger.Debugw("transaction processed",
		"transaction_id", event.TransactionID,
		"state", string(result.State),
		"severity", result.Severity.String(),
	)
	return nil
}

func (c *TransactionConsumer) quarantine(ctx context.Context, msg *messaging.ReceivedMessage, reason string, cause error) error {
	quarantined := QuarantinedEvent{
		Reason:       reason,
		Error:        cause.Error(),
		SourceTopic:  msg.Topic,
		Partition:    msg.Partition,
		Offset:       msg.Offset,
		Payload:      json.RawMessage(msg.Value),
		QuarantineAt: time.Now().UTC(),
	}
	if err := c.producer.Publish(ctx, c.cfg.QuarantineTopic, msg.Key, quarantined); err != nil {
		return fmt.Errorf("quarantine event from %s[%d]@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
	}
	c.logger.Warnw("event quarantined",
		"reason", reason,
		"source_topic", msg.Topic,
		"offset", msg.Offset,
		"error", cause,
	)
	return nil
}
