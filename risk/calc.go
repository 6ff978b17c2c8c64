// Package risk provides the pure calculators behind position sizing and
// liquidation scoring: rolling volatility, margin ratio, and the heuristic
// liquidation-risk score. All functions are deterministic and hold no state
// beyond what the caller passes in.
package risk

import (
	"math"

	"github.com/rustyeddy/volsim/market"
)

// Volatility returns the annualized standard deviation of log returns over
// the price window, scaled by sqrt(annualization). Fewer than two samples is
// a defined boundary, not an error: the answer is 0.
//
// The deviation is the population form (divide by n), matching how the rest
// of the risk math was calibrated.
func Volatility(prices []float64, annualization float64) float64 {
	if len(prices) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)))

	return std * math.Sqrt(annualization)
}

// MarginRatio is (initial margin + unrealized P&L) / notional.
func MarginRatio(notional, unrealizedPL, leverage float64) float64 {
	if notional == 0 || leverage == 0 {
		return 1.0
	}
	initialMargin := notional / leverage
	return (initialMargin + unrealizedPL) / notional
}

// LiquidationRisk scores how close a position is to liquidation on a 0..1
// scale. This is a heuristic ranking, not a probability: it is monotone in
// volatility and leverage and inversely monotone in the margin buffer, and
// that ordering is all callers may rely on. A margin ratio at or below the
// buffer scores 1 (certain).
func LiquidationRisk(marginRatio, volatility, leverage, marginBuffer float64) float64 {
	buffer := marginRatio - marginBuffer
	if buffer <= 0 {
		return 1.0
	}
	score := volatility * leverage / buffer
	return clamp(score, 0, 1)
}

// PositionSize returns the notional a position may carry given current
// volatility. Zero volatility allows the full capital*leverage*maxPositionPct;
// volatility at or above maxVolatility allows nothing.
func PositionSize(capital, leverage, maxPositionPct, volatility, maxVolatility float64) float64 {
	factor := 0.0
	if maxVolatility > 0 {
		factor = math.Max(0, 1-volatility/maxVolatility)
	}
	return capital * leverage * maxPositionPct * factor
}

// LiquidationPrice is the price at which remaining margin is exhausted.
// Informational only: nothing in the simulator force-closes at this level.
func LiquidationPrice(side market.Side, entry, leverage, maintenanceMargin float64) float64 {
	if side == market.Long {
		return entry * (1 - 1/leverage + maintenanceMargin)
	}
	return entry * (1 + 1/leverage - maintenanceMargin)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
