// Package scoring implements the multi-layer AML risk scoring engine.
//
// Four independent detection layers contribute additively to a bounded
// score: large-transaction threshold, sub-threshold structuring, sanctions
// screening and transaction velocity. The engine holds no mutable state;
// given the same event and the same aggregate/sanctions snapshot it always
// returns the same score and the same ordered reason list.
package scoring

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aegisfin/txmonitor/internal/aml"
)

// Reason strings are part of the alert contract consumed by downstream
// case management and must not be reworded.
const (
	ReasonLargeAmount = "Amount exceeds CTR threshold"
	ReasonStructuring = "Potential structuring pattern detected in 24h window"
	ReasonSanctions   = "Sender name matches sanctions list"
	ReasonVelocity    = "Abnormal transaction velocity in rolling window"
)

// WindowedAggregateSource exposes the rolling per-account aggregates the
// structuring and velocity layers read. Implementations return zero values,
// not errors, for accounts they have never seen. The engine never writes to
// the windows; recording the current transaction is the caller's concern.
type WindowedAggregateSource interface {
	// Total24h returns the rolling 24-hour transacted amount for an account.
	Total24h(ctx context.Context, account string) (decimal.Decimal, error)
	// Count1h returns the rolling 1-hour transaction count for an account.
	Count1h(ctx context.Context, account string) (int64, error)
}

// SanctionsChecker is an exact-name membership test against the
// watch-listed entity set. Fuzzy matching is deliberately not part of this
// contract; it belongs to a dedicated screening service.
type SanctionsChecker interface {
	IsSanctioned(ctx context.Context, name string) (bool, error)
}

// Engine scores transaction events against the four detection layers.
type Engine struct {
	base       aml.ScoringConfig
	overrides  map[string]aml.ScoringConfig
	aggregates WindowedAggregateSource
	sanctions  SanctionsChecker
	logger     *zap.SugaredLogger
}

// NewEngine creates a scoring engine with the given base configuration.
// tenantOverrides may be nil; entries in it replace the base configuration
// wholesale for that tenant.
func NewEngine(
	base aml.ScoringConfig,
	tenantOverrides map[string]aml.ScoringConfig,
	aggregates WindowedAggregateSource,
	sanctions SanctionsChecker,
	logger *zap.SugaredLogger,
) (*Engine, error) {
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("base scoring config: %w", err)
	}
	for tenant, cfg := range tenantOverrides {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("scoring config override for tenant %s: %w", tenant, err)
		}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		base:       base,
		overrides:  tenantOverrides,
		aggregates: aggregates,
		sanctions:  sanctions,
		logger:     logger,
	}, nil
}

// ConfigFor returns the effective scoring configuration for a tenant.
func (e *Engine) ConfigFor(tenantID string) aml.ScoringConfig {
	if cfg, ok := e.overrides[tenantID]; ok {
		return cfg
	}
	return e.base
}

// Score evaluates all four layers against the event and returns the clamped
// score with the ordered list of fired reasons.
//
// Failure semantics are fail-closed: if either the aggregate store or the
// sanctions set cannot be read, the error is returned and no score is
// produced. Scoring low on missing data would mask risk.
func (e *Engine) Score(ctx context.Context, event aml.TransactionEvent) (aml.RiskAssessment, error) {
	cfg := e.ConfigFor(event.TenantID)

	// The two window reads are independent, so issue them concurrently.
	var (
		windowTotal decimal.Decimal
		hourCount   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := e.aggregates.Total24h(gctx, event.SenderAccount)
		if err != nil {
			return fmt.Errorf("24h window total for account %s: %w", event.SenderAccount, err)
		}
		windowTotal = total
		return nil
	})
	g.Go(func() error {
		count, err := e.aggregates.Count1h(gctx, event.SenderAccount)
		if err != nil {
			return fmt.Errorf("1h window count for account %s: %w", event.SenderAccount, err)
		}
		hourCount = count
		return nil
	})
	if err := g.Wait(); err != nil {
		return aml.RiskAssessment{}, err
	}

	sanctioned, err := e.sanctions.IsSanctioned(ctx, event.SenderName)
	if err != nil {
		return aml.RiskAssessment{}, fmt.Errorf("sanctions screening for transaction %s: %w", event.TransactionID, err)
	}

	score := decimal.Zero
	reasons := make([]string, 0, 4)

	// Layer 1: single transaction strictly above the CTR line.
	if event.Amount.GreaterThan(cfg.CTRThreshold) {
		score = score.Add(cfg.LargeAmountWeight)
		reasons = append(reasons, ReasonLargeAmount)
	}

	// Layer 2: structuring. The store has not yet recorded the current
	// transaction, so the rolling total is combined with the live amount.
	// Fires only when the transaction alone stays under the threshold.
	combined := windowTotal.Add(event.Amount)
	if combined.GreaterThan(cfg.CTRThreshold) && event.Amount.LessThan(cfg.CTRThreshold) {
		score = score.Add(cfg.StructuringWeight)
		reasons = append(reasons, ReasonStructuring)
	}

	// Layer 3: exact sanctions match on the sender display name.
	if sanctioned {
		score = score.Add(cfg.SanctionsWeight)
		reasons = append(reasons, ReasonSanctions)
	}

	// Layer 4: velocity buckets. Only the high bucket carries a reason;
	// the low bucket contributes weight silently.
	switch {
	case hourCount > cfg.VelocityHighCount:
		score = score.Add(cfg.VelocityHighWeight)
		reasons = append(reasons, ReasonVelocity)
	case hourCount > cfg.VelocityLowCount:
		score = score.Add(cfg.VelocityLowWeight)
	}

	// Layers keep adding internally; only the reported value is capped.
	one := decimal.NewFromInt(1)
	if score.GreaterThan(one) {
		score = one
	}

	e.logger.Debugw("transaction scored",
		"tenant_id", event.TenantID,
		"transaction_id", event.TransactionID,
		"score", score.String(),
		"reasons", len(reasons),
	)

	return aml.RiskAssessment{Score: score, Reasons: reasons}, nil
}
