// Package storage persists AML alerts. The alert table carries a composite
// uniqueness constraint on (tenant_id, transaction_id); that constraint is
// the system's de-duplication point for at-least-once event delivery.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aegisfin/txmonitor/internal/aml"
)

// AlertRepository is the persistence contract the dispatcher writes through.
type AlertRepository interface {
	// Create inserts a new alert. Returns aml.ErrDuplicateAlert when an
	// alert for the same (tenant, transaction) already exists.
	Create(ctx context.Context, alert *aml.Alert) error
	// GetByTransaction fetches the alert raised for a transaction, if any.
	GetByTransaction(ctx context.Context, tenantID string, transactionID uuid.UUID) (*aml.Alert, error)
	// ListByTenant returns a page of alerts for a tenant, newest first.
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]aml.Alert, error)
}

// GormAlertRepository implements AlertRepository on gorm. TranslateError
// must be enabled on the session so duplicate-key violations surface as
// gorm.ErrDuplicatedKey across drivers.
type GormAlertRepository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// NewGormAlertRepository wraps an existing gorm handle.
func NewGormAlertRepository(db *gorm.DB, logger *zap.SugaredLogger) *GormAlertRepository {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &GormAlertRepository{db: db, logger: logger}
}

// OpenPostgres connects to PostgreSQL and migrates the alert schema.
func OpenPostgres(dsn string, maxOpen, maxIdle int, connMaxLifetime time.Duration) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := db.AutoMigrate(&aml.Alert{}); err != nil {
		return nil, fmt.Errorf("migrate alert schema: %w", err)
	}
	return db, nil
}

// Create inserts the alert with the caller's context so a cancelled scoring
// call cannot leave a partially persisted row behind.
func (r *GormAlertRepository) Create(ctx context.Context, alert *aml.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: tenant=%s transaction=%s",
				aml.ErrDuplicateAlert, alert.TenantID, alert.TransactionID)
		}
		return fmt.Errorf("insert alert for transaction %s: %w", alert.TransactionID, err)
	}
	return nil
}

// GetByTransaction returns nil, nil when no alert was raised.
func (r *GormAlertRepository) GetByTransaction(ctx context.Context, tenantID string, transactionID uuid.UUID) (*aml.Alert, error) {
	var alert aml.Alert
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND transaction_id = ?", tenantID, transactionID).
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load alert for transaction %s: %w", transactionID, err)
	}
	return &alert, nil
}

// ListByTenant pages through a tenant's alerts, newest first.
func (r *GormAlertRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]aml.Alert, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var alerts []aml.Alert
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("list alerts for tenant %s: %w", tenantID, err)
	}
	return alerts, nil
}
