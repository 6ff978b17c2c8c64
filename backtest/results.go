package backtest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/rustyeddy/volsim/sim"
	"github.com/rustyeddy/volsim/stats"
)

// Result is the outcome of one run. The JSON artifact written by WriteJSON
// (metrics, trades, equity_curve) is the contract downstream plotting and
// reporting tools consume; its field names and units must stay stable.
type Result struct {
	Symbol         string
	Start          time.Time
	End            time.Time
	Bars           int
	InitialCapital float64
	FinalCapital   float64

	Metrics   stats.Summary
	HasTrades bool
	Trades    []sim.Trade
	Equity    []sim.EquityPoint
}

// metricFloat keeps the artifact valid JSON in the presence of the +Inf
// sentinels (Sortino with no losing periods, profit factor with no losing
// trades): non-finite values serialize as the strings "Infinity",
// "-Infinity", and "NaN".
type metricFloat float64

func (m metricFloat) MarshalJSON() ([]byte, error) {
	v := float64(m)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	}
	return json.Marshal(v)
}

type tradeArtifact struct {
	Symbol      string      `json:"symbol"`
	Side        string      `json:"side"`
	EntryPrice  float64     `json:"entry_price"`
	ExitPrice   float64     `json:"exit_price"`
	Amount      float64     `json:"amount"`
	EntryTime   string      `json:"entry_time"`
	ExitTime    string      `json:"exit_time"`
	PnL         metricFloat `json:"pnl"`
	Fees        float64     `json:"fees"`
	FundingCost float64     `json:"funding_cost"`
	Leverage    float64     `json:"leverage"`
}

type equityArtifact struct {
	Timestamp string  `json:"timestamp"`
	Equity    float64 `json:"equity"`
}

type resultArtifact struct {
	Metrics     map[string]metricFloat `json:"metrics"`
	Trades      []tradeArtifact        `json:"trades"`
	EquityCurve []equityArtifact       `json:"equity_curve"`
}

func (r Result) artifact() resultArtifact {
	a := resultArtifact{
		Metrics:     map[string]metricFloat{},
		Trades:      make([]tradeArtifact, 0, len(r.Trades)),
		EquityCurve: make([]equityArtifact, 0, len(r.Equity)),
	}

	if r.HasTrades {
		m := r.Metrics
		a.Metrics = map[string]metricFloat{
			"total_return":       metricFloat(m.TotalReturn),
			"num_trades":         metricFloat(m.NumTrades),
			"win_rate":           metricFloat(m.WinRate),
			"avg_trade_pnl":      metricFloat(m.AvgTradePnL),
			"max_drawdown":       metricFloat(m.MaxDrawdown),
			"sharpe_ratio":       metricFloat(m.SharpeRatio),
			"sortino_ratio":      metricFloat(m.SortinoRatio),
			"profit_factor":      metricFloat(m.ProfitFactor),
			"avg_trade_duration": metricFloat(m.AvgTradeDuration),
		}
	}

	for _, t := range r.Trades {
		a.Trades = append(a.Trades, tradeArtifact{
			Symbol:      t.Symbol,
			Side:        string(t.Side),
			EntryPrice:  t.EntryPrice,
			ExitPrice:   t.ExitPrice,
			Amount:      t.Size,
			EntryTime:   t.EntryTime.Format(time.RFC3339),
			ExitTime:    t.ExitTime.Format(time.RFC3339),
			PnL:         metricFloat(t.PnL),
			Fees:        t.Fees,
			FundingCost: t.FundingCost,
			Leverage:    t.Leverage,
		})
	}
	for _, e := range r.Equity {
		a.EquityCurve = append(a.EquityCurve, equityArtifact{
			Timestamp: e.Time.Format(time.RFC3339),
			Equity:    e.Equity,
		})
	}
	return a
}

// WriteJSON persists the results record.
func (r Result) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r.artifact(), "", "    ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// PrintSummary writes a human-readable run report.
func PrintSummary(w io.Writer, r Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Symbol:        %s\n", r.Symbol)
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)
	if !r.Start.IsZero() {
		fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
		fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Capital: %.2f\n", r.InitialCapital)
	fmt.Fprintf(w, "End Capital:   %.2f\n", r.FinalCapital)

	if !r.HasTrades {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "No trades were executed.")
		return
	}

	m := r.Metrics
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Total Return:  %.2f%%\n", m.TotalReturn*100)
	fmt.Fprintf(w, "Trades:        %d\n", m.NumTrades)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", m.WinRate*100)
	fmt.Fprintf(w, "Avg Trade P&L: %.2f\n", m.AvgTradePnL)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(w, "Sharpe:        %.2f\n", m.SharpeRatio)
	fmt.Fprintf(w, "Sortino:       %s\n", fnum(m.SortinoRatio))
	fmt.Fprintf(w, "Profit Factor: %s\n", fnum(m.ProfitFactor))
	fmt.Fprintf(w, "Avg Duration:  %.1fh\n", m.AvgTradeDuration)
}

func fnum(v float64) string {
	if math.IsInf(v, 1) {
		return "inf (no losses)"
	}
	return fmt.Sprintf("%.2f", v)
}
