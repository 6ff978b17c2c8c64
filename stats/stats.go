// Package stats computes performance statistics from a completed run's
// equity curve and trade P&L list. Everything is calculated once, on demand,
// from immutable inputs; there is no streaming form.
package stats

import (
	"math"
	"time"
)

// Summary is the full set of named statistics for one run. Field and JSON
// names are part of the results-artifact contract and must stay stable.
type Summary struct {
	TotalReturn      float64 `json:"total_return"`
	NumTrades        int     `json:"num_trades"`
	WinRate          float64 `json:"win_rate"`
	AvgTradePnL      float64 `json:"avg_trade_pnl"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	ProfitFactor     float64 `json:"profit_factor"`
	AvgTradeDuration float64 `json:"avg_trade_duration"` // hours
}

// Config holds the annualization inputs for Sharpe/Sortino.
type Config struct {
	RiskFreeRate   float64
	PeriodsPerYear float64
}

// DefaultConfig matches the calibration the strategy was developed against:
// 2% risk-free, 252 trading periods per year.
func DefaultConfig() Config {
	return Config{RiskFreeRate: 0.02, PeriodsPerYear: 252}
}

// Returns converts an equity curve into period-over-period simple returns.
// The result has len(equity)-1 entries (or none for short curves).
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

// MaxDrawdown is the largest peak-to-trough equity decline, as a fraction of
// the running peak. For any finite curve with positive values the result is
// in [0, 1].
func MaxDrawdown(equity []float64) float64 {
	var peak, maxDD float64
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := (peak - e) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Sharpe is sqrt(periods) * mean(excess returns) / std(returns), with the
// per-period excess being return - riskFree/periods. Fewer than two return
// observations (or a flat return series) yields 0.
func Sharpe(returns []float64, cfg Config) float64 {
	if len(returns) < 2 {
		return 0
	}
	excess := mean(returns) - cfg.RiskFreeRate/cfg.PeriodsPerYear
	std := sampleStd(returns)
	if std == 0 {
		return 0
	}
	return math.Sqrt(cfg.PeriodsPerYear) * excess / std
}

// Sortino is Sharpe with only downside deviation in the denominator. A series
// with no negative returns has no downside deviation; the documented sentinel
// for that case is +Inf, not an error. A single negative observation leaves
// the sample deviation undefined and maps to the same sentinel.
func Sortino(returns []float64, cfg Config) float64 {
	if len(returns) < 2 {
		return 0
	}
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return math.Inf(1)
	}
	std := sampleStd(downside)
	if std == 0 {
		return math.Inf(1)
	}
	excess := mean(returns) - cfg.RiskFreeRate/cfg.PeriodsPerYear
	return math.Sqrt(cfg.PeriodsPerYear) * excess / std
}

// ProfitFactor is gross profit divided by absolute gross loss across trade
// P&Ls. No losing trades yields the +Inf sentinel.
func ProfitFactor(pnls []float64) float64 {
	var profit, loss float64
	for _, p := range pnls {
		if p > 0 {
			profit += p
		} else if p < 0 {
			loss += -p
		}
	}
	if loss == 0 {
		return math.Inf(1)
	}
	return profit / loss
}

// AvgDurationHours is the mean trade duration in hours.
func AvgDurationHours(durations []time.Duration) float64 {
	if len(durations) == 0 {
		return 0
	}
	var total float64
	for _, d := range durations {
		total += d.Hours()
	}
	return total / float64(len(durations))
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the n-1 form; the performance statistics were calibrated
// against it, unlike risk.Volatility which uses the population form.
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
