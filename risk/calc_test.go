package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/volsim/market"
)

func TestVolatility(t *testing.T) {
	t.Parallel()

	t.Run("known window", func(t *testing.T) {
		t.Parallel()
		// Closed form: population std of log returns over the window,
		// annualized by sqrt(24).
		prices := []float64{100, 101, 99, 100, 102}
		var rets []float64
		for i := 1; i < len(prices); i++ {
			rets = append(rets, math.Log(prices[i])-math.Log(prices[i-1]))
		}
		var m float64
		for _, r := range rets {
			m += r
		}
		m /= float64(len(rets))
		var ss float64
		for _, r := range rets {
			ss += (r - m) * (r - m)
		}
		want := math.Sqrt(ss/float64(len(rets))) * math.Sqrt(24)

		got := Volatility(prices, 24)
		assert.InDelta(t, want, got, 1e-9)
		assert.InDelta(t, 0.0732, got, 1e-4)
	})

	t.Run("too few samples", func(t *testing.T) {
		t.Parallel()
		assert.Zero(t, Volatility(nil, 24))
		assert.Zero(t, Volatility([]float64{100}, 24))
	})

	t.Run("constant prices", func(t *testing.T) {
		t.Parallel()
		assert.Zero(t, Volatility([]float64{100, 100, 100, 100}, 24))
	})

	t.Run("scales with annualization", func(t *testing.T) {
		t.Parallel()
		prices := []float64{100, 102, 99, 101}
		hourly := Volatility(prices, 24)
		daily := Volatility(prices, 24*365)
		assert.Greater(t, daily, hourly)
	})
}

func TestMarginRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		notional     float64
		unrealizedPL float64
		leverage     float64
		want         float64
	}{
		{"no pnl", 10000, 0, 5, 0.2},
		{"profit adds", 10000, 1000, 5, 0.3},
		{"loss subtracts", 10000, -1500, 5, 0.05},
		{"zero notional", 0, 0, 5, 1.0},
		{"zero leverage", 10000, 0, 0, 1.0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := MarginRatio(tt.notional, tt.unrealizedPL, tt.leverage)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestLiquidationRisk(t *testing.T) {
	t.Parallel()

	t.Run("margin at buffer is certain", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1.0, LiquidationRisk(0.1, 0.5, 5, 0.2))
		assert.Equal(t, 1.0, LiquidationRisk(0.2, 0.01, 1, 0.2))
	})

	t.Run("clamped to unit interval", func(t *testing.T) {
		t.Parallel()
		got := LiquidationRisk(0.5, 0.9, 10, 0.2)
		assert.Equal(t, 1.0, got)

		got = LiquidationRisk(0.5, 0, 5, 0.2)
		assert.Zero(t, got)
	})

	t.Run("monotone in volatility and leverage", func(t *testing.T) {
		t.Parallel()
		low := LiquidationRisk(0.5, 0.01, 2, 0.2)
		highVol := LiquidationRisk(0.5, 0.02, 2, 0.2)
		highLev := LiquidationRisk(0.5, 0.01, 4, 0.2)
		assert.Greater(t, highVol, low)
		assert.Greater(t, highLev, low)
	})

	t.Run("inverse in margin buffer headroom", func(t *testing.T) {
		t.Parallel()
		wide := LiquidationRisk(0.9, 0.05, 3, 0.2)
		tight := LiquidationRisk(0.3, 0.05, 3, 0.2)
		assert.Greater(t, tight, wide)
	})
}

func TestPositionSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		capital    float64
		leverage   float64
		maxPct     float64
		volatility float64
		maxVol     float64
		want       float64
	}{
		{"zero vol allows full size", 10000, 3, 0.6, 0, 0.02, 18000},
		{"half vol halves size", 10000, 3, 0.6, 0.01, 0.02, 9000},
		{"at max vol allows nothing", 10000, 3, 0.6, 0.02, 0.02, 0},
		{"above max vol allows nothing", 10000, 3, 0.6, 0.05, 0.02, 0},
		{"zero max vol allows nothing", 10000, 3, 0.6, 0.01, 0, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := PositionSize(tt.capital, tt.leverage, tt.maxPct, tt.volatility, tt.maxVol)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestLiquidationPrice(t *testing.T) {
	t.Parallel()

	// 5x long at 100 with 0.5% maintenance: 100 * (1 - 0.2 + 0.005)
	long := LiquidationPrice(market.Long, 100, 5, 0.005)
	assert.InDelta(t, 80.5, long, 1e-9)

	// 5x short at 100: 100 * (1 + 0.2 - 0.005)
	short := LiquidationPrice(market.Short, 100, 5, 0.005)
	assert.InDelta(t, 119.5, short, 1e-9)

	// Higher leverage pulls the long level closer to entry.
	assert.Greater(t, LiquidationPrice(market.Long, 100, 10, 0.005), long)
}
