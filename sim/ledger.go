// Package sim contains the simulation ledger: the single owner of capital,
// open positions, the trade history, and the equity curve for one run.
//
// A Ledger is confined to one simulation's thread of control; parallel
// parameter sweeps must construct one Ledger per run and never share them.
package sim

import (
	"log"
	"time"

	"github.com/rustyeddy/volsim/market"
	"github.com/rustyeddy/volsim/pkg/id"
	"github.com/rustyeddy/volsim/risk"
	"github.com/rustyeddy/volsim/stats"
)

type Ledger struct {
	initialCapital float64
	capital        float64
	tradingFee     float64 // fraction of notional, per side
	slippage       float64 // fraction of price, always against the trader

	positions map[string]*Position
	trades    []Trade
	equity    []EquityPoint
}

func NewLedger(initialCapital, tradingFee, slippage float64) *Ledger {
	return &Ledger{
		initialCapital: initialCapital,
		capital:        initialCapital,
		tradingFee:     tradingFee,
		slippage:       slippage,
		positions:      make(map[string]*Position),
	}
}

// OpenPosition opens a new exposure at the requested price. The fill applies
// slippage against the trader (longs pay more, shorts receive less) and the
// entry fee on the requested-price notional comes out of capital.
//
// The operation is rejected, with no state change, when a position already
// exists for symbol or when the required margin exceeds current capital.
// Rejection is a normal outcome, not an error: the simulation continues.
func (l *Ledger) OpenPosition(
	symbol string,
	side market.Side,
	price, amount, leverage float64,
	ts time.Time,
	takeProfit, stopLoss *float64,
) bool {
	if _, exists := l.positions[symbol]; exists {
		log.Printf("ledger: already have a position in %s, open rejected", symbol)
		return false
	}

	notional := price * amount
	requiredMargin := notional / leverage
	if requiredMargin > l.capital {
		log.Printf("ledger: insufficient capital for %s (margin %.2f > capital %.2f)",
			symbol, requiredMargin, l.capital)
		return false
	}

	executed := price * (1 + l.slippage)
	if side == market.Short {
		executed = price * (1 - l.slippage)
	}

	l.capital -= notional * l.tradingFee

	l.positions[symbol] = &Position{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: executed,
		Size:       amount,
		Leverage:   leverage,
		OpenTime:   ts,
		TakeProfit: takeProfit,
		StopLoss:   stopLoss,
	}
	return true
}

// ClosePosition closes the open position for symbol at price, again with
// slippage against the trader (longs sell lower, shorts buy higher). Realized
// P&L minus the exit fee and funding cost is settled into capital, and the
// position becomes an immutable Trade.
//
// Closing a symbol with no open position is a no-op: capital and the trade
// history are left untouched.
func (l *Ledger) ClosePosition(symbol string, price float64, ts time.Time, fundingCost float64) (Trade, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		log.Printf("ledger: no position in %s to close", symbol)
		return Trade{}, false
	}

	executed := price * (1 - l.slippage)
	if p.Side == market.Short {
		executed = price * (1 + l.slippage)
	}

	pnl := p.UnrealizedPL(executed)
	fees := executed * p.Size * l.tradingFee

	l.capital += pnl - fees - fundingCost

	trade := Trade{
		ID:          id.New(),
		Symbol:      symbol,
		Side:        p.Side,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   executed,
		Size:        p.Size,
		EntryTime:   p.OpenTime,
		ExitTime:    ts,
		PnL:         pnl,
		Fees:        fees,
		FundingCost: fundingCost,
		Leverage:    p.Leverage,
	}

	l.trades = append(l.trades, trade)
	delete(l.positions, symbol)
	return trade, true
}

// UpdateEquity appends one equity-curve sample: capital plus the unrealized
// P&L of every open position that has a price in prices. It must run at every
// time step where positions might be open; the resulting curve is the
// canonical input for drawdown and return statistics.
func (l *Ledger) UpdateEquity(ts time.Time, prices map[string]float64) {
	equity := l.capital
	for symbol, p := range l.positions {
		if price, ok := prices[symbol]; ok {
			equity += p.UnrealizedPL(price)
		}
	}
	l.equity = append(l.equity, EquityPoint{Time: ts, Equity: equity})
}

// Metrics computes the performance summary for the run so far. A run with no
// recorded trades is a valid terminal state and reports ok=false with a zero
// summary rather than an error.
func (l *Ledger) Metrics(cfg stats.Config) (stats.Summary, bool) {
	if len(l.trades) == 0 {
		return stats.Summary{}, false
	}

	equity := make([]float64, len(l.equity))
	for i, e := range l.equity {
		equity[i] = e.Equity
	}
	returns := stats.Returns(equity)

	var wins int
	var pnlSum float64
	pnls := make([]float64, len(l.trades))
	durations := make([]time.Duration, len(l.trades))
	for i, t := range l.trades {
		pnls[i] = t.PnL
		pnlSum += t.PnL
		durations[i] = t.ExitTime.Sub(t.EntryTime)
		if t.PnL > 0 {
			wins++
		}
	}

	n := len(l.trades)
	return stats.Summary{
		TotalReturn:      (l.capital - l.initialCapital) / l.initialCapital,
		NumTrades:        n,
		WinRate:          float64(wins) / float64(n),
		AvgTradePnL:      pnlSum / float64(n),
		MaxDrawdown:      stats.MaxDrawdown(equity),
		SharpeRatio:      stats.Sharpe(returns, cfg),
		SortinoRatio:     stats.Sortino(returns, cfg),
		ProfitFactor:     stats.ProfitFactor(pnls),
		AvgTradeDuration: stats.AvgDurationHours(durations),
	}, true
}

// LiquidationPrice reports the informational liquidation level for the open
// position in symbol. The ledger never force-closes at this level; acting on
// it is the risk checks' concern upstream of signal generation.
func (l *Ledger) LiquidationPrice(symbol string, maintenanceMargin float64) (float64, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return 0, false
	}
	return risk.LiquidationPrice(p.Side, p.EntryPrice, p.Leverage, maintenanceMargin), true
}

func (l *Ledger) Capital() float64        { return l.capital }
func (l *Ledger) InitialCapital() float64 { return l.initialCapital }
func (l *Ledger) OpenCount() int          { return len(l.positions) }

// Position returns a copy of the open position for symbol, if any.
func (l *Ledger) Position(symbol string) (Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// OpenSymbols lists symbols with open positions, in no particular order.
func (l *Ledger) OpenSymbols() []string {
	out := make([]string, 0, len(l.positions))
	for s := range l.positions {
		out = append(out, s)
	}
	return out
}

// Trades returns the append-only trade history, oldest first.
func (l *Ledger) Trades() []Trade { return l.trades }

// EquityCurve returns the recorded equity samples, oldest first.
func (l *Ledger) EquityCurve() []EquityPoint { return l.equity }
