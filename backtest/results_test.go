package backtest

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/volsim/market"
	"github.com/rustyeddy/volsim/sim"
	"github.com/rustyeddy/volsim/stats"
)

func sampleResult() Result {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(2 * time.Hour)

	return Result{
		Symbol:         "BTC/USDT",
		Start:          t0,
		End:            t1,
		Bars:           3,
		InitialCapital: 10000,
		FinalCapital:   10010,
		HasTrades:      true,
		Metrics: stats.Summary{
			TotalReturn:      0.001,
			NumTrades:        1,
			WinRate:          1,
			AvgTradePnL:      10,
			SharpeRatio:      1.5,
			SortinoRatio:     math.Inf(1),
			ProfitFactor:     math.Inf(1),
			AvgTradeDuration: 2,
		},
		Trades: []sim.Trade{{
			ID:         "01ARZ3NDEKTSV4RRFFQ69G5FAV",
			Symbol:     "BTC/USDT",
			Side:       market.Long,
			EntryPrice: 100,
			ExitPrice:  110,
			Size:       1,
			EntryTime:  t0,
			ExitTime:   t1,
			PnL:        10,
			Leverage:   3,
		}},
		Equity: []sim.EquityPoint{
			{Time: t0, Equity: 10000},
			{Time: t1, Equity: 10010},
		},
	}
}

func TestWriteJSONArtifact(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, sampleResult().WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Metrics map[string]any `json:"metrics"`
		Trades  []struct {
			Symbol    string  `json:"symbol"`
			Side      string  `json:"side"`
			Amount    float64 `json:"amount"`
			EntryTime string  `json:"entry_time"`
		} `json:"trades"`
		EquityCurve []struct {
			Timestamp string  `json:"timestamp"`
			Equity    float64 `json:"equity"`
		} `json:"equity_curve"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, 0.001, doc.Metrics["total_return"])
	assert.Equal(t, 1.0, doc.Metrics["num_trades"])

	// Non-finite sentinels serialize as strings to keep the document valid.
	assert.Equal(t, "Infinity", doc.Metrics["sortino_ratio"])
	assert.Equal(t, "Infinity", doc.Metrics["profit_factor"])

	require.Len(t, doc.Trades, 1)
	assert.Equal(t, "long", doc.Trades[0].Side)
	assert.Equal(t, 1.0, doc.Trades[0].Amount)
	assert.Equal(t, "2024-01-01T00:00:00Z", doc.Trades[0].EntryTime)

	require.Len(t, doc.EquityCurve, 2)
	assert.Equal(t, "2024-01-01T02:00:00Z", doc.EquityCurve[1].Timestamp)
	assert.Equal(t, 10010.0, doc.EquityCurve[1].Equity)
}

func TestWriteJSONNoTrades(t *testing.T) {
	t.Parallel()

	r := Result{Symbol: "BTC/USDT", InitialCapital: 10000, FinalCapital: 10000}

	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, r.WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Metrics     map[string]any `json:"metrics"`
		Trades      []any          `json:"trades"`
		EquityCurve []any          `json:"equity_curve"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	// Empty object, not null: downstream readers index into it blindly.
	assert.NotNil(t, doc.Metrics)
	assert.Empty(t, doc.Metrics)
	assert.NotNil(t, doc.Trades)
	assert.Empty(t, doc.Trades)
}

func TestMetricFloatMarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   float64
		want string
	}{
		{"finite", 1.25, "1.25"},
		{"plus inf", math.Inf(1), `"Infinity"`},
		{"minus inf", math.Inf(-1), `"-Infinity"`},
		{"nan", math.NaN(), `"NaN"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := json.Marshal(metricFloat(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	PrintSummary(&buf, sampleResult())
	out := buf.String()

	assert.Contains(t, out, "BTC/USDT")
	assert.Contains(t, out, "Total Return:")
	assert.Contains(t, out, "inf (no losses)")

	buf.Reset()
	PrintSummary(&buf, Result{Symbol: "BTC/USDT", InitialCapital: 10000, FinalCapital: 10000})
	assert.Contains(t, buf.String(), "No trades were executed.")
}
