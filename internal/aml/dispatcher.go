package aml

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aegisfin/txmonitor/pkg/metrics"
)

// DispatchState tracks the per-event state machine:
// RECEIVED -> SCORED -> (DISPATCHED | SUPPRESSED).
type DispatchState string

const (
	StateReceived   DispatchState = "received"
	StateScored     DispatchState = "scored"
	StateDispatched DispatchState = "dispatched"
	StateSuppressed DispatchState = "suppressed"
)

// Scorer produces a risk assessment for a transaction event.
type Scorer interface {
	Score(ctx context.Context, event TransactionEvent) (RiskAssessment, error)
}

// AlertStore is the slice of the alert repository the dispatcher writes
// through. Create must enforce (tenant, transaction) uniqueness and return
// ErrDuplicateAlert on redelivery.
type AlertStore interface {
	Create(ctx context.Context, alert *Alert) error
}

// NotificationPublisher pushes dispatched alerts to the outbound topic.
type NotificationPublisher interface {
	PublishAlert(ctx context.Context, notification AlertNotification) error
}

// DispatchResult reports the terminal state of one event plus the alert, if
// one was raised on this delivery.
type DispatchResult struct {
	State      DispatchState
	Duplicate  bool
	Assessment RiskAssessment
	Severity   Severity
	Alert      *Alert
}

// Dispatcher orchestrates scoring, severity classification, alert
// persistence and notification publication for each inbound event.
type Dispatcher struct {
	scorer    Scorer
	store     AlertStore
	publisher NotificationPublisher
	validate  *validator.Validate
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewDispatcher wires a dispatcher. All collaborators are required.
func NewDispatcher(scorer Scorer, store AlertStore, publisher NotificationPublisher, logger *zap.SugaredLogger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Dispatcher{
		scorer:    scorer,
		store:     store,
		publisher: publisher,
		validate:  validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// ValidateEvent rejects malformed events before they reach scoring.
func (d *Dispatcher) ValidateEvent(event TransactionEvent) error {
	if err := d.validate.Struct(event); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if event.TransactionID == uuid.Nil {
		return fmt.Errorf("%w: missing transaction id", ErrInvalidEvent)
	}
	if event.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", ErrInvalidEvent, event.Amount)
	}
	return nil
}

// Dispatch runs one event through the full pipeline.
//
// Severity NONE terminates in SUPPRESSED with no side effects. Otherwise
// the alert is persisted first and published second; a publish failure
// after a successful persist returns ErrPublishFailed with the alert of
// record attached to the result, and nothing is rolled back.
func (d *Dispatcher) Dispatch(ctx context.Context, event TransactionEvent) (DispatchResult, error) {
	result := DispatchResult{State: StateReceived}

	if err := d.ValidateEvent(event); err != nil {
		metrics.TransactionsScreened.WithLabelValues("quarantined").Inc()
		return result, err
	}

	started := d.now()
	assessment, err := d.scorer.Score(ctx, event)
	metrics.ScoringLatency.Observe(d.now().Sub(started).Seconds())
	if err != nil {
		metrics.TransactionsScreened.WithLabelValues("failed").Inc()
		return result, fmt.Errorf("score transaction %s: %w", event.TransactionID, err)
	}

	result.State = StateScored
	result.Assessment = assessment
	result.Severity = SeverityForScore(assessment.Score)

	if result.Severity == SeverityNone {
		result.State = StateSuppressed
		metrics.TransactionsScreened.WithLabelValues("suppressed").Inc()
		return result, nil
	}

	alert := &Alert{
		ID:            uuid.New(),
		TenantID:      event.TenantID,
		TransactionID: event.TransactionID,
		Severity:      result.Severity.String(),
		Score:         assessment.Score,
		Reasons:       ReasonList(assessment.Reasons),
		Status:        "open",
		CreatedAt:     d.now().UTC(),
	}

	if err := d.store.Create(ctx, alert); err != nil {
		if errors.Is(err, ErrDuplicateAlert) {
			// Redelivered event; the alert of record already exists.
			result.State = StateDispatched
			result.Duplicate = true
			metrics.TransactionsScreened.WithLabelValues("duplicate").Inc()
			d.logger.Debugw("duplicate delivery ignored",
				"tenant_id", event.TenantID,
				"transaction_id", event.TransactionID,
			)
			return result, nil
		}
		metrics.TransactionsScreened.WithLabelValues("failed").Inc()
		return result, fmt.Errorf("persist alert for transaction %s: %w", event.TransactionID, err)
	}
	result.Alert = alert

	notification := AlertNotification{
		AlertID:       alert.ID,
		TenantID:      alert.TenantID,
		TransactionID: alert.TransactionID,
		Severity:      alert.Severity,
		Score:         alert.Score,
		Reasons:       assessment.Reasons,
		RaisedAt:      alert.CreatedAt,
	}
	if err := d.publisher.PublishAlert(ctx, notification); err != nil {
		// The persisted alert stands; reconciliation recovers the
		// notification, a published alert with no record cannot be.
		result.State = StateDispatched
		metrics.TransactionsScreened.WithLabelValues("dispatched").Inc()
		metrics.AlertsRaised.WithLabelValues(alert.Severity).Inc()
		d.logger.Errorw("alert notification publish failed",
			"alert_id", alert.ID,
			"transaction_id", alert.TransactionID,
			"error", err,
		)
		return result, fmt.Errorf("%w: alert %s: %v", ErrPublishFailed, alert.ID, err)
	}

	result.State = StateDispatched
	metrics.TransactionsScreened.WithLabelValues("dispatched").Inc()
	metrics.AlertsRaised.WithLabelValues(alert.Severity).Inc()

	d.logger.Infow("aml alert raised",
		"alert_id", alert.ID,
		"tenant_id", alert.TenantID,
		"transaction_id", alert.TransactionID,
		"severity", alert.Severity,
		"score", alert.Score.String(),
	)
	return result, nil
}
