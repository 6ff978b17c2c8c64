package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/volsim/journal"
	"github.com/rustyeddy/volsim/market"
	"github.com/rustyeddy/volsim/sim"
	"github.com/rustyeddy/volsim/stats"
	"github.com/rustyeddy/volsim/strategies"
)

type memJournal struct {
	trades []journal.TradeRecord
	equity []journal.EquitySnapshot
	closed bool
}

func (j *memJournal) RecordTrade(rec journal.TradeRecord) error {
	j.trades = append(j.trades, rec)
	return nil
}

func (j *memJournal) RecordEquity(rec journal.EquitySnapshot) error {
	j.equity = append(j.equity, rec)
	return nil
}

func (j *memJournal) Close() error {
	j.closed = true
	return nil
}

// brokenJournal fails every write.
type brokenJournal struct{}

func (brokenJournal) RecordTrade(journal.TradeRecord) error {
	return errors.New("disk full")
}

func (brokenJournal) RecordEquity(journal.EquitySnapshot) error {
	return errors.New("disk full")
}

func (brokenJournal) Close() error { return nil }

// openFirstBar opens one long on the first bar and then goes quiet.
type openFirstBar struct {
	symbol string
	done   bool
}

func (s *openFirstBar) OnBar(bar market.Bar, capital float64) []strategies.Signal {
	if s.done {
		return nil
	}
	s.done = true
	return []strategies.Signal{{
		Action:   strategies.ActionOpen,
		Symbol:   s.symbol,
		Time:     bar.Time,
		Price:    bar.Close,
		Side:     market.Long,
		Amount:   1,
		Leverage: 1,
		Reason:   "test_entry",
	}}
}

type badActionStrategy struct{}

func (badActionStrategy) OnBar(bar market.Bar, capital float64) []strategies.Signal {
	return []strategies.Signal{{Action: strategies.Action("hold"), Symbol: "BTC/USDT"}}
}

func testBars(n int) *market.BarSeries {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &market.BarSeries{Symbol: "BTC/USDT"}
	for i := 0; i < n; i++ {
		close := 100 + float64(i)
		s.Bars = append(s.Bars, market.Bar{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Open:  close,
			High:  close + 1,
			Low:   close - 1,
			Close: close,
		})
	}
	return s
}

func newRunner(feed BarFeed, strat strategies.BarStrategy, j journal.Journal) *Runner {
	return &Runner{
		Ledger:   sim.NewLedger(10000, 0, 0),
		Strategy: strat,
		Feed:     feed,
		Symbol:   "BTC/USDT",
		Journal:  j,
		Options: RunnerOptions{
			CloseEnd: true,
			Stats:    stats.DefaultConfig(),
		},
	}
}

func TestRunnerNoopRun(t *testing.T) {
	t.Parallel()

	j := &memJournal{}
	r := newRunner(NewSeriesFeed(testBars(5)), strategies.NoopStrategy{}, j)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, res.Bars)
	assert.False(t, res.HasTrades)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 10000.0, res.FinalCapital)
	assert.Equal(t, res.InitialCapital, res.FinalCapital)
	require.Len(t, res.Equity, 5)
	assert.Equal(t, res.Equity[0].Time, res.Start)
	assert.Equal(t, res.Equity[4].Time, res.End)

	// One equity snapshot per bar, no trades.
	assert.Len(t, j.equity, 5)
	assert.Empty(t, j.trades)
}

func TestRunnerClosesAtEndOfData(t *testing.T) {
	t.Parallel()

	j := &memJournal{}
	r := newRunner(NewSeriesFeed(testBars(5)), &openFirstBar{symbol: "BTC/USDT"}, j)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	require.True(t, res.HasTrades)
	require.Len(t, res.Trades, 1)
	assert.Zero(t, r.Ledger.OpenCount())

	// Long 1 unit from 100 to 104 with no costs.
	assert.InDelta(t, 4.0, res.Trades[0].PnL, 1e-9)
	assert.InDelta(t, 10004.0, res.FinalCapital, 1e-9)

	require.Len(t, j.trades, 1)
	assert.Equal(t, "end_of_data", j.trades[0].Reason)

	// One sample per bar, timestamps strictly increasing.
	require.Len(t, res.Equity, 5)
	for i := 1; i < len(res.Equity); i++ {
		assert.True(t, res.Equity[i].Time.After(res.Equity[i-1].Time))
	}
}

func TestRunnerKeepsPositionWithoutCloseEnd(t *testing.T) {
	t.Parallel()

	r := newRunner(NewSeriesFeed(testBars(5)), &openFirstBar{symbol: "BTC/USDT"}, nil)
	r.Options.CloseEnd = false

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.HasTrades)
	assert.Equal(t, 1, r.Ledger.OpenCount())
	// Final equity still marks the open position.
	assert.InDelta(t, 10004.0, res.Equity[len(res.Equity)-1].Equity, 1e-9)
}

func TestRunnerSurvivesJournalFailures(t *testing.T) {
	t.Parallel()

	// A dead journal never aborts the run; the in-memory ledger stays
	// authoritative and the result is complete.
	r := newRunner(NewSeriesFeed(testBars(5)), &openFirstBar{symbol: "BTC/USDT"}, brokenJournal{})

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	require.True(t, res.HasTrades)
	require.Len(t, res.Trades, 1)
	assert.InDelta(t, 10004.0, res.FinalCapital, 1e-9)
	assert.Len(t, res.Equity, 5)
}

func TestRunnerRejectsOutOfOrderBars(t *testing.T) {
	t.Parallel()

	series := testBars(3)
	series.Bars[2].Time = series.Bars[0].Time

	r := newRunner(NewSeriesFeed(series), strategies.NoopStrategy{}, nil)
	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of order")
}

func TestRunnerUnknownActionFails(t *testing.T) {
	t.Parallel()

	r := newRunner(NewSeriesFeed(testBars(3)), badActionStrategy{}, nil)
	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown signal action")
}

func TestRunnerCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(NewSeriesFeed(testBars(5)), strategies.NoopStrategy{}, nil)
	res, err := r.Run(ctx)
	require.NoError(t, err)

	// Canceled before the first bar: a well-formed empty result.
	assert.Zero(t, res.Bars)
	assert.False(t, res.HasTrades)
	assert.Equal(t, 10000.0, res.FinalCapital)
}

func TestRunnerRequiresWiring(t *testing.T) {
	t.Parallel()

	feed := NewSeriesFeed(testBars(1))

	_, err := (&Runner{Strategy: strategies.NoopStrategy{}, Feed: feed}).Run(context.Background())
	assert.Error(t, err)

	_, err = (&Runner{Ledger: sim.NewLedger(10000, 0, 0), Feed: feed}).Run(context.Background())
	assert.Error(t, err)

	_, err = (&Runner{Ledger: sim.NewLedger(10000, 0, 0), Strategy: strategies.NoopStrategy{}}).Run(context.Background())
	assert.Error(t, err)
}

func TestRunnerVolAdaptiveEndToEnd(t *testing.T) {
	t.Parallel()

	// Flat closes with wide intrabar ranges: zero volatility, spread above
	// the entry requirement from the first post-warmup bar.
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := &market.BarSeries{Symbol: "BTC/USDT"}
	for i := 0; i < 10; i++ {
		series.Bars = append(series.Bars, market.Bar{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Open:  100,
			High:  100.1,
			Low:   99.9,
			Close: 100,
		})
	}
	require.NoError(t, series.Validate())

	strat := strategies.NewVolAdaptive("BTC/USDT", strategies.VolAdaptiveParams{Lookback: 3})
	j := &memJournal{}
	r := newRunner(NewSeriesFeed(series), strat, j)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	// Entry at bar 3, held to end of data, closed flat.
	require.True(t, res.HasTrades)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, market.Long, res.Trades[0].Side)
	assert.Zero(t, r.Ledger.OpenCount())
	assert.Len(t, strat.Metrics(), 10)
}
