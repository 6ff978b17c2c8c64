package sim

import (
	"time"

	"github.com/rustyeddy/volsim/market"
)

// Position is an open exposure. Positions are owned exclusively by the Ledger
// from OpenPosition until ClosePosition converts them into a Trade.
type Position struct {
	Symbol     string
	Side       market.Side
	EntryPrice float64 // post-slippage
	Size       float64 // base-asset quantity
	Leverage   float64
	OpenTime   time.Time

	TakeProfit *float64
	StopLoss   *float64
}

// UnrealizedPL marks the position at price, without slippage.
func (p *Position) UnrealizedPL(price float64) float64 {
	if p.Side == market.Long {
		return (price - p.EntryPrice) * p.Size
	}
	return (p.EntryPrice - price) * p.Size
}

// Notional is the position's value at price.
func (p *Position) Notional(price float64) float64 {
	return price * p.Size
}

// Trade is the immutable record of a closed position. Trades are created
// exactly once, appended to the ledger's history, and never mutated.
type Trade struct {
	ID          string
	Symbol      string
	Side        market.Side
	EntryPrice  float64
	ExitPrice   float64
	Size        float64
	EntryTime   time.Time
	ExitTime    time.Time
	PnL         float64
	Fees        float64
	FundingCost float64
	Leverage    float64
}

// EquityPoint is one sample of the equity curve: cash capital plus the sum of
// unrealized P&L across open positions.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}
