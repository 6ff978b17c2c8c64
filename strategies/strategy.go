// Package strategies holds the signal-generating side of the simulator.
// Strategies observe bars and emit Signals; they never touch the ledger
// themselves. Applying signals is the driver's job.
package strategies

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/volsim/market"
)

// Action tags a Signal. Consumers must switch on it exhaustively and treat an
// unknown tag as a programming error.
type Action string

const (
	ActionOpen  Action = "open"
	ActionClose Action = "close"
)

// Signal is one strategy decision at one bar. Open signals carry side, amount
// and leverage; close signals carry the funding cost accrued by the position.
type Signal struct {
	Action Action
	Symbol string
	Time   time.Time
	Price  float64
	Reason string

	// open only
	Side     market.Side
	Amount   float64
	Leverage float64

	// close only
	FundingCost float64
}

func (s Signal) String() string {
	switch s.Action {
	case ActionOpen:
		return fmt.Sprintf("open %s %s %.6f @ %.2f %0.1fx (%s)",
			s.Side, s.Symbol, s.Amount, s.Price, s.Leverage, s.Reason)
	case ActionClose:
		return fmt.Sprintf("close %s @ %.2f funding %.4f (%s)",
			s.Symbol, s.Price, s.FundingCost, s.Reason)
	}
	return fmt.Sprintf("unknown signal %q for %s", s.Action, s.Symbol)
}

// BarStrategy is the minimal interface the simulation driver feeds. It is
// called once per bar with the ledger's current cash capital and returns the
// signals to apply, in order.
type BarStrategy interface {
	OnBar(bar market.Bar, capital float64) []Signal
}

// ByName builds a strategy from a CLI-facing name.
func ByName(name, symbol string, p VolAdaptiveParams) (BarStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return NoopStrategy{}, nil

	case "vol-adaptive", "voladaptive":
		return NewVolAdaptive(symbol, p), nil

	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: noop, vol-adaptive)", name)
	}
}

// NoopStrategy emits nothing. Useful as a baseline: a run with it should end
// with zero trades and a flat equity curve.
type NoopStrategy struct{}

func (NoopStrategy) OnBar(bar market.Bar, capital float64) []Signal { return nil }
