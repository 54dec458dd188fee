package aml

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ScoringConfig holds the thresholds and layer weights used by the risk
// scoring engine. It is injected explicitly so tenants can run with
// overridden thresholds and so tests stay deterministic; there is no
// package-level mutable state.
type ScoringConfig struct {
	// CTRThreshold is the currency-transaction-report line. A single
	// amount strictly above it triggers the large-transaction layer.
	CTRThreshold decimal.Decimal `mapstructure:"ctr_threshold"`

	// Layer weights. Contributions are additive and the final score is
	// clamped to 1.0 after all layers have been applied.
	LargeAmountWeight  decimal.Decimal `mapstructure:"large_amount_weight"`
	StructuringWeight  decimal.Decimal `mapstructure:"structuring_weight"`
	SanctionsWeight    decimal.Decimal `mapstructure:"sanctions_weight"`
	VelocityHighWeight decimal.Decimal `mapstructure:"velocity_high_weight"`
	VelocityLowWeight  decimal.Decimal `mapstructure:"velocity_low_weight"`

	// Velocity buckets on the rolling 1h transaction count. The buckets
	// do not overlap: count > high applies the high weight only.
	VelocityHighCount int64 `mapstructure:"velocity_high_count"`
	VelocityLowCount  int64 `mapstructure:"velocity_low_count"`
}

// DefaultScoringConfig returns the regulatory defaults: CTR threshold of
// 10000.00 in the reporting currency, weights 0.30/0.35/0.50/0.25/0.10 and
// velocity buckets at 20 and 10 transactions per hour.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		CTRThreshold:       decimal.RequireFromString("10000.00"),
		LargeAmountWeight:  decimal.RequireFromString("0.3"),
		StructuringWeight:  decimal.RequireFromString("0.35"),
		SanctionsWeight:    decimal.RequireFromString("0.5"),
		VelocityHighWeight: decimal.RequireFromString("0.25"),
		VelocityLowWeight:  decimal.RequireFromString("0.1"),
		VelocityHighCount:  20,
		VelocityLowCount:   10,
	}
}

// Validate rejects configurations that would make the score unbounded or
// the velocity buckets ambiguous.
func (c ScoringConfig) Validate() error {
	if c.CTRThreshold.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("ctr_threshold must be positive, got %s", c.CTRThreshold)
	}
	one := decimal.NewFromInt(1)
	for name, w := range map[string]decimal.Decimal{
		"large_amount_weight":  c.LargeAmountWeight,
		"structuring_weight":   c.StructuringWeight,
		"sanctions_weight":     c.SanctionsWeight,
		"velocity_high_weight": c.VelocityHighWeight,
		"velocity_low_weight":  c.VelocityLowWeight,
	} {
		if w.IsNegative() || w.GreaterThan(one) {
			return fmt.Errorf("%s must be within [0, 1], got %s", name, w)
		}
	}
	if c.VelocityLowCount < 0 || c.VelocityHighCount <= c.VelocityLowCount {
		return fmt.Errorf("velocity buckets must satisfy 0 <= low < high, got low=%d high=%d",
			c.VelocityLowCount, c.VelocityHighCount)
	}
	return nil
}
