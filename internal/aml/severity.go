package aml

import "github.com/shopspring/decimal"

// Severity cut points per the FATF/BSA-aligned tiering used across the
// platform. Lower bounds are inclusive: a score of exactly 0.80 is CRITICAL.
var (
	severityCutCritical = decimal.RequireFromString("0.8")
	severityCutHigh     = decimal.RequireFromString("0.6")
	severityCutMedium   = decimal.RequireFromString("0.4")
	severityCutLow      = decimal.RequireFromString("0.2")
)

// SeverityForScore maps a bounded risk score to its severity tier.
// Pure and total on [0, 1]; no state, no hysteresis.
func SeverityForScore(score decimal.Decimal) Severity {
	switch {
	case score.GreaterThanOrEqual(severityCutCritical):
		return SeverityCritical
	case score.GreaterThanOrEqual(severityCutHigh):
		return SeverityHigh
	case score.GreaterThanOrEqual(severityCutMedium):
		return SeverityMedium
	case score.GreaterThanOrEqual(severityCutLow):
		return SeverityLow
	default:
		return SeverityNone
	}
}
