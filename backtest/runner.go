// Package backtest drives a strategy over historical bars and produces the
// run's results record. It is the only place signals are consumed: the
// strategy emits them, the runner applies them to the ledger.
package backtest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rustyeddy/volsim/journal"
	"github.com/rustyeddy/volsim/market"
	"github.com/rustyeddy/volsim/sim"
	"github.com/rustyeddy/volsim/stats"
	"github.com/rustyeddy/volsim/strategies"
)

// RunnerOptions controls end-of-data behavior and statistics annualization.
type RunnerOptions struct {
	// CloseEnd closes every open position at the last seen bar's close so
	// the run ends flat.
	CloseEnd bool
	Stats    stats.Config
}

// Runner wires one simulation run together: a feed of bars, a strategy, and
// the ledger the signals act on. Each run needs freshly constructed Ledger
// and Strategy instances; they are never shared across runs.
type Runner struct {
	Ledger   *sim.Ledger
	Strategy strategies.BarStrategy
	Feed     BarFeed
	Symbol   string

	// Journal, when set, receives every closed trade and equity sample.
	Journal journal.Journal

	Options RunnerOptions
}

// Run executes the bar loop:
//
//  1. read the next bar (verifying timestamps stay strictly increasing)
//  2. feed it to the strategy, apply the emitted signals to the ledger
//  3. append an equity sample
//
// Canceling ctx stops the loop early but still yields a well-formed (if
// incomplete) result. Out-of-order bars are fatal: downstream statistics are
// meaningless on corrupt input.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Ledger == nil {
		return Result{}, fmt.Errorf("backtest: Ledger is required")
	}
	if r.Strategy == nil {
		return Result{}, fmt.Errorf("backtest: Strategy is required")
	}
	if r.Feed == nil {
		return Result{}, fmt.Errorf("backtest: Feed is required")
	}
	defer r.Feed.Close()

	var (
		prev    time.Time
		lastBar market.Bar
		bars    int
	)

	for {
		if ctx.Err() != nil {
			break
		}

		bar, ok, err := r.Feed.Next()
		if err != nil {
			return Result{}, fmt.Errorf("backtest: feed: %w", err)
		}
		if !ok {
			break
		}
		if !prev.IsZero() && !bar.Time.After(prev) {
			return Result{}, fmt.Errorf("backtest: bars out of order at %s (previous %s)",
				bar.Time.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
		prev = bar.Time
		lastBar = bar
		bars++

		for _, sig := range r.Strategy.OnBar(bar, r.Ledger.Capital()) {
			if err := r.apply(sig); err != nil {
				return Result{}, err
			}
		}

		r.Ledger.UpdateEquity(bar.Time, map[string]float64{r.Symbol: bar.Close})
		r.recordEquity()
	}

	// Equity timestamps stay strictly increasing: the last loop sample
	// already marked these positions at lastBar.Close, so the settlement
	// shows up in FinalCapital, not as an extra curve point.
	if r.Options.CloseEnd && bars > 0 {
		for _, symbol := range r.Ledger.OpenSymbols() {
			if trade, ok := r.Ledger.ClosePosition(symbol, lastBar.Close, lastBar.Time, 0); ok {
				r.recordTrade(trade, "end_of_data")
			}
		}
	}

	return r.buildResult(bars), nil
}

// apply dispatches one signal to the ledger. The switch is exhaustive over
// the Action variants; an unknown tag is a programming error, not data.
func (r *Runner) apply(sig strategies.Signal) error {
	switch sig.Action {
	case strategies.ActionOpen:
		r.Ledger.OpenPosition(sig.Symbol, sig.Side, sig.Price, sig.Amount, sig.Leverage, sig.Time, nil, nil)

	case strategies.ActionClose:
		if trade, ok := r.Ledger.ClosePosition(sig.Symbol, sig.Price, sig.Time, sig.FundingCost); ok {
			r.recordTrade(trade, sig.Reason)
		}

	default:
		return fmt.Errorf("backtest: unknown signal action %q", sig.Action)
	}
	return nil
}

func (r *Runner) recordTrade(t sim.Trade, reason string) {
	if r.Journal == nil {
		return
	}
	// Journal failures must not abort the simulation; the in-memory ledger
	// remains authoritative.
	err := r.Journal.RecordTrade(journal.TradeRecord{
		TradeID:     t.ID,
		Symbol:      t.Symbol,
		Side:        string(t.Side),
		Size:        t.Size,
		EntryPrice:  t.EntryPrice,
		ExitPrice:   t.ExitPrice,
		EntryTime:   t.EntryTime,
		ExitTime:    t.ExitTime,
		PnL:         t.PnL,
		Fees:        t.Fees,
		FundingCost: t.FundingCost,
		Leverage:    t.Leverage,
		Reason:      reason,
	})
	if err != nil {
		log.Printf("backtest: journal trade %s: %v", t.ID, err)
	}
}

func (r *Runner) recordEquity() {
	if r.Journal == nil {
		return
	}
	curve := r.Ledger.EquityCurve()
	if len(curve) == 0 {
		return
	}
	last := curve[len(curve)-1]
	err := r.Journal.RecordEquity(journal.EquitySnapshot{
		Time:          last.Time,
		Capital:       r.Ledger.Capital(),
		Equity:        last.Equity,
		OpenPositions: r.Ledger.OpenCount(),
	})
	if err != nil {
		log.Printf("backtest: journal equity at %s: %v", last.Time.Format(time.RFC3339), err)
	}
}

func (r *Runner) buildResult(bars int) Result {
	summary, hasTrades := r.Ledger.Metrics(r.Options.Stats)

	res := Result{
		Symbol:         r.Symbol,
		Bars:           bars,
		InitialCapital: r.Ledger.InitialCapital(),
		FinalCapital:   r.Ledger.Capital(),
		Metrics:        summary,
		HasTrades:      hasTrades,
		Trades:         r.Ledger.Trades(),
		Equity:         r.Ledger.EquityCurve(),
	}
	if len(res.Equity) > 0 {
		res.Start = res.Equity[0].Time
		res.End = res.Equity[len(res.Equity)-1].Time
	}
	return res
}
