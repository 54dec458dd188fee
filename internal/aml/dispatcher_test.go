package aml_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aegisfin/txmonitor/internal/aml"
)

type fakeScorer struct {
	assessment aml.RiskAssessment
	err        error
}

func (f *fakeScorer) Score(context.Context, aml.TransactionEvent) (aml.RiskAssessment, error) {
	return f.assessment, f.err
}

// fakeStore enforces the (tenant, transaction) uniqueness constraint the
// real repository gets from its database index.
type fakeStore struct {
	mu      sync.Mutex
	alerts  map[string]*aml.Alert
	calls   []string
	failErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{alerts: make(map[string]*aml.Alert)}
}

func (f *fakeStore) Create(_ context.Context, alert *aml.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	if f.failErr != nil {
		return f.failErr
	}
	key := alert.TenantID + "/" + alert.TransactionID.String()
	if _, exists := f.alerts[key]; exists {
		return fmt.Errorf("%w: %s", aml.ErrDuplicateAlert, key)
	}
	f.alerts[key] = alert
	return nil
}

type fakePublisher struct {
	mu            sync.Mutex
	notifications []aml.AlertNotification
	calls         *fakeStore
	err           error
}

func (f *fakePublisher) PublishAlert(_ context.Context, n aml.AlertNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls != nil {
		f.calls.mu.Lock()
		f.calls.calls = append(f.calls.calls, "publish")
		f.calls.mu.Unlock()
	}
	if f.err != nil {
		return f.err
	}
	f.notifications = append(f.notifications, n)
	return nil
}

func riskyAssessment() aml.RiskAssessment {
	return aml.RiskAssessment{
		Score:   decimal.RequireFromString("0.8"),
		Reasons: []string{"Amount exceeds CTR threshold", "Sender name matches sanctions list"},
	}
}

func validEvent() aml.TransactionEvent {
	return aml.TransactionEvent{
		TenantID:      "tenant-1",
		TransactionID: uuid.New(),
		SenderAccount: "acct-9",
		SenderName:    "Jane Doe",
		Amount:        decimal.RequireFromString("12000.00"),
	}
}

func TestDispatchPersistsThenPublishes(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{calls: store}
	d := aml.NewDispatcher(&fakeScorer{assessment: riskyAssessment()}, store, publisher, zap.NewNop().Sugar())

	ev := validEvent()
	result, err := d.Dispatch(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, aml.StateDispatched, result.State)
	assert.Equal(t, aml.SeverityCritical, result.Severity)
	require.NotNil(t, result.Alert)
	assert.True(t, result.Alert.Score.Equal(decimal.RequireFromString("0.8")))
	assert.NotEmpty(t, result.Alert.Reasons)

	// persistence must happen-before publication
	require.Equal(t, []string{"create", "publish"}, store.calls)

	require.Len(t, publisher.notifications, 1)
	n := publisher.notifications[0]
	assert.Equal(t, result.Alert.ID, n.AlertID)
	assert.Equal(t, ev.TransactionID, n.TransactionID)
	assert.Equal(t, "critical", n.Severity)
	assert.True(t, n.Score.Equal(result.Alert.Score))
}

func TestDispatchSuppressesBenignEvents(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	benign := aml.RiskAssessment{Score: decimal.Zero, Reasons: []string{}}
	d := aml.NewDispatcher(&fakeScorer{assessment: benign}, store, publisher, zap.NewNop().Sugar())

	result, err := d.Dispatch(context.Background(), validEvent())
	require.NoError(t, err)

	assert.Equal(t, aml.StateSuppressed, result.State)
	assert.Equal(t, aml.SeverityNone, result.Severity)
	assert.Nil(t, result.Alert)
	assert.Empty(t, store.alerts)
	assert.Empty(t, publisher.notifications)
}

func TestDispatchDuplicateDeliveryCreatesOneAlert(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	d := aml.NewDispatcher(&fakeScorer{assessment: riskyAssessment()}, store, publisher, zap.NewNop().Sugar())

	ev := validEvent()
	first, err := d.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := d.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, aml.StateDispatched, second.State)

	assert.Len(t, store.alerts, 1)
	assert.Len(t, publisher.notifications, 1)
}

func TestDispatchPublishFailureKeepsAlert(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	d := aml.NewDispatcher(&fakeScorer{assessment: riskyAssessment()}, store, publisher, zap.NewNop().Sugar())

	result, err := d.Dispatch(context.Background(), validEvent())
	require.ErrorIs(t, err, aml.ErrPublishFailed)

	// the alert of record stands
	assert.Equal(t, aml.StateDispatched, result.State)
	require.NotNil(t, result.Alert)
	assert.Len(t, store.alerts, 1)
}

func TestDispatchPropagatesScoringFailure(t *testing.T) {
	scoreErr := errors.New("aggregate store unavailable")
	store := newFakeStore()
	d := aml.NewDispatcher(&fakeScorer{err: scoreErr}, store, &fakePublisher{}, zap.NewNop().Sugar())

	_, err := d.Dispatch(context.Background(), validEvent())
	require.ErrorIs(t, err, scoreErr)
	assert.Empty(t, store.alerts)
}

func TestDispatchRejectsMalformedEvents(t *testing.T) {
	d := aml.NewDispatcher(&fakeScorer{assessment: riskyAssessment()}, newFakeStore(), &fakePublisher{}, zap.NewNop().Sugar())

	tests := []struct {
		name   string
		mutate func(*aml.TransactionEvent)
	}{
		{"missing tenant", func(e *aml.TransactionEvent) { e.TenantID = "" }},
		{"missing transaction id", func(e *aml.TransactionEvent) { e.TransactionID = uuid.Nil }},
		{"missing sender account", func(e *aml.TransactionEvent) { e.SenderAccount = "" }},
		{"negative amount", func(e *aml.TransactionEvent) { e.Amount = decimal.RequireFromString("-10.00") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent()
			tt.mutate(&ev)
			_, err := d.Dispatch(context.Background(), ev)
			require.ErrorIs(t, err, aml.ErrInvalidEvent)
		})
	}
}

func TestDispatchAlertScoreMatchesSeverityTier(t *testing.T) {
	for _, score := range []string{"0.2", "0.4", "0.6", "0.8", "1"} {
		store := newFakeStore()
		assessment := aml.RiskAssessment{
			Score:   decimal.RequireFromString(score),
			Reasons: []string{"Amount exceeds CTR threshold"},
		}
		d := aml.NewDispatcher(&fakeScorer{assessment: assessment}, store, &fakePublisher{}, zap.NewNop().Sugar())

		result, err := d.Dispatch(context.Background(), validEvent())
		require.NoError(t, err)
		require.NotNil(t, result.Alert)
		assert.Equal(t, aml.SeverityForScore(result.Alert.Score).String(), result.Alert.Severity)
	}
}
