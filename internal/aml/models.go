package aml

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Severity is the discrete AML alert tier derived from a risk score.
// Tiers are totally ordered: NONE < LOW < MEDIUM < HIGH < CRITICAL.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the wire representation used in events and storage.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "none"
	}
}

// ParseSeverity maps a wire string back to a Severity tier.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "none":
		return SeverityNone, nil
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return SeverityNone, fmt.Errorf("unknown severity %q", s)
}

// TransactionEvent is one inbound transaction record as produced by the
// upstream ingestion pipeline. Amount is already normalized to the
// reporting currency.
type TransactionEvent struct {
	TenantID      string            `json:"tenant_id" validate:"required"`
	TransactionID uuid.UUID         `json:"transaction_id" validate:"required"`
	SenderAccount string            `json:"sender_account" validate:"required"`
	SenderName    string            `json:"sender_name"`
	Amount        decimal.Decimal   `json:"amount"`
	OccurredAt    time.Time         `json:"occurred_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// RiskAssessment is the intermediate scoring result consumed by the
// severity classifier. It is never persisted on its own.
type RiskAssessment struct {
	Score   decimal.Decimal
	Reasons []string
}

// ReasonList stores the ordered scoring reasons as a JSON column so the
// same model works on PostgreSQL and SQLite.
type ReasonList []string

// Value implements driver.Valuer.
func (r ReasonList) Value() (driver.Value, error) {
	if r == nil {
		r = ReasonList{}
	}
	b, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (r *ReasonList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	}
	return fmt.Errorf("unsupported reasons column type %T", src)
}

// Alert is the persisted record of an above-NONE screening outcome.
// The engine creates it exactly once per (tenant, transaction) and never
// mutates the scoring fields afterward; review workflows own Status.
type Alert struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID      string          `json:"tenant_id" gorm:"index:idx_alerts_tenant_tx,unique;not null"`
	TransactionID uuid.UUID       `json:"transaction_id" gorm:"type:uuid;index:idx_alerts_tenant_tx,unique;not null"`
	Severity      string          `json:"severity" gorm:"size:16;not null"`
	Score         decimal.Decimal `json:"score" gorm:"type:numeric(6,4);not null"`
	Reasons       ReasonList      `json:"reasons" gorm:"type:text"`
	Status        string          `json:"status" gorm:"size:32;default:open"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TableName keeps the table name stable regardless of gorm pluralization.
func (Alert) TableName() string { return "aml_alerts" }

// AlertNotification is the outbound event published after an alert is
// persisted. Score is serialized as a decimal string to preserve
// fractional precision.
type AlertNotification struct {
	AlertID       uuid.UUID       `json:"alert_id"`
	TenantID      string          `json:"tenant_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Severity      string          `json:"severity"`
	Score         decimal.Decimal `json:"score"`
	Reasons       []string        `json:"reasons"`
	RaisedAt      time.Time       `json:"raised_at"`
}
