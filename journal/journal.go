// Package journal persists the audit trail of a simulation run: every closed
// trade, every equity sample, and the run summary. Backends share one
// interface so the driver does not care whether it writes CSV or SQLite.
package journal

import "time"

// TradeRecord is the persisted form of one closed trade.
type TradeRecord struct {
	TradeID     string
	Symbol      string
	Side        string
	Size        float64
	EntryPrice  float64
	ExitPrice   float64
	EntryTime   time.Time
	ExitTime    time.Time
	PnL         float64
	Fees        float64
	FundingCost float64
	Leverage    float64
	Reason      string
}

// EquitySnapshot is one persisted equity-curve sample.
type EquitySnapshot struct {
	Time          time.Time
	Capital       float64
	Equity        float64
	OpenPositions int
}

// RunRecord summarizes a completed run for later comparison across
// parameter sets.
type RunRecord struct {
	RunID          string
	Created        time.Time
	Symbol         string
	Strategy       string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	FinalCapital   float64
	TotalReturn    float64
	MaxDrawdown    float64
	Sharpe         float64
	Sortino        float64
	ProfitFactor   float64
	WinRate        float64
	Trades         int
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}
