package risk

import (
	"fmt"
	"time"

	"github.com/rustyeddy/volsim/market"
)

// Snapshot is a derived, ephemeral view of risk state at one time step.
// Snapshots are recomputed fresh each step and retained only for reporting.
type Snapshot struct {
	Spread          float64
	Volatility      float64
	FundingRate     float64
	MarginRatio     float64
	LiquidationRisk float64
	PositionSize    float64
	Leverage        float64
	Time            time.Time
}

// Summary formats the snapshot for human-facing output.
func (s Snapshot) Summary() string {
	return fmt.Sprintf(
		"spread=%.3f%% vol=%.2f%% funding=%.4f%% margin=%.2f%% liqrisk=%.2f%% size=$%.2f lev=%.1fx",
		s.Spread*100, s.Volatility*100, s.FundingRate*100,
		s.MarginRatio*100, s.LiquidationRisk*100, s.PositionSize, s.Leverage,
	)
}

// Thresholds are the limits a Snapshot is checked against.
type Thresholds struct {
	MaxSpread     float64
	MaxVolatility float64
	// FundingLimit breaches direction-dependently: longs pay positive
	// funding, shorts pay negative.
	FundingLimit float64
	MarginBuffer float64
}

// Limit names returned by CheckLimits / ShouldClose, in priority order.
const (
	LimitLiquidation = "liquidation_risk"
	LimitSpread      = "spread"
	LimitVolatility  = "volatility"
	LimitFunding     = "funding"
	LimitMargin      = "margin"
)

// CheckLimits returns the names of all breached limits, highest priority
// first: liquidation risk, spread, volatility, funding, margin.
func CheckLimits(s Snapshot, side market.Side, th Thresholds) []string {
	var breached []string

	if s.LiquidationRisk > 0.5 {
		breached = append(breached, LimitLiquidation)
	}
	if s.Spread > th.MaxSpread {
		breached = append(breached, LimitSpread)
	}
	if s.Volatility > th.MaxVolatility {
		breached = append(breached, LimitVolatility)
	}
	if fundingBreached(s.FundingRate, side, th.FundingLimit) {
		breached = append(breached, LimitFunding)
	}
	if s.MarginRatio < th.MarginBuffer {
		breached = append(breached, LimitMargin)
	}
	return breached
}

// ShouldClose reports whether the position should be closed and, if so, the
// highest-priority breached limit name.
func ShouldClose(s Snapshot, side market.Side, th Thresholds) (string, bool) {
	breached := CheckLimits(s, side, th)
	if len(breached) == 0 {
		return "", false
	}
	return breached[0], true
}

func fundingBreached(rate float64, side market.Side, limit float64) bool {
	if side == market.Short {
		return rate < -limit
	}
	return rate > limit
}
