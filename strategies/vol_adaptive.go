package strategies

import (
	"sort"
	"time"

	"github.com/rustyeddy/volsim/market"
	"github.com/rustyeddy/volsim/risk"
)

// VolAdaptiveParams are the knobs of the volatility-adaptive strategy. Zero
// values are replaced with the defaults the strategy was calibrated with.
type VolAdaptiveParams struct {
	Lookback         int     // bars of warm-up before any signal, also the vol window
	VolThreshold     float64 // annualized vol gate
	MinSpread        float64 // floor of the required spread
	MaxSpread        float64 // cap of the required spread
	FundingThreshold float64
	MaxPositionPct   float64
	MaxLeverage      float64
	Annualization    float64 // periods per year for the vol scaling
}

func (p *VolAdaptiveParams) setDefaults() {
	if p.Lookback <= 0 {
		p.Lookback = 24
	}
	if p.VolThreshold == 0 {
		p.VolThreshold = 0.02
	}
	if p.MinSpread == 0 {
		p.MinSpread = 0.001
	}
	if p.MaxSpread == 0 {
		p.MaxSpread = 0.005
	}
	if p.FundingThreshold == 0 {
		p.FundingThreshold = 0.0001
	}
	if p.MaxPositionPct == 0 {
		p.MaxPositionPct = 0.6
	}
	if p.MaxLeverage == 0 {
		p.MaxLeverage = 3.0
	}
	if p.Annualization == 0 {
		p.Annualization = 24
	}
}

// openState is the strategy's own view of an open position. It mirrors the
// ledger's Position but is tracked independently: the strategy reasons about
// entries and exits one bar ahead of ledger execution.
type openState struct {
	Side      market.Side
	Entry     float64
	Size      float64
	Leverage  float64
	EntryTime time.Time
}

// BarMetrics is the per-bar record the strategy appends regardless of whether
// it emitted a signal. Retained for inspection and reporting only.
type BarMetrics struct {
	Time           time.Time
	Price          float64
	Volatility     float64
	ActualSpread   float64
	RequiredSpread float64
	FundingRate    float64
	OpenPositions  int
}

// VolAdaptive trades spread-capture entries gated by volatility and funding.
// It widens the spread it demands as volatility rises, enters when the
// realized intrabar spread pays comfortably more than that, and exits when
// the spread narrows, volatility spikes, or funding turns against the
// position. One state machine per symbol: Flat -> Open(side) -> Flat.
type VolAdaptive struct {
	Symbol string
	Params VolAdaptiveParams

	funding *market.FundingSeries
	window  *risk.Window
	barIdx  int
	open    map[string]*openState
	metrics []BarMetrics
}

func NewVolAdaptive(symbol string, p VolAdaptiveParams) *VolAdaptive {
	p.setDefaults()
	return &VolAdaptive{
		Symbol: symbol,
		Params: p,
		window: risk.NewWindow(p.Lookback),
		open:   make(map[string]*openState),
	}
}

// SetFunding attaches the funding-rate history. Without one every bar sees a
// rate of 0, which never gates an entry or forces an exit.
func (s *VolAdaptive) SetFunding(f *market.FundingSeries) { s.funding = f }

// Metrics returns the per-bar records collected so far.
func (s *VolAdaptive) Metrics() []BarMetrics { return s.metrics }

// OnBar advances the state machine by one bar. Transition order is fixed:
// exits for every open symbol are evaluated and applied first; entries are
// considered only when nothing is open and no close happened this bar.
func (s *VolAdaptive) OnBar(bar market.Bar, capital float64) []Signal {
	s.window.Push(bar.Close)
	idx := s.barIdx
	s.barIdx++

	vol := risk.Volatility(s.window.Values(), s.Params.Annualization)
	actual := bar.Spread()
	required := s.requiredSpread(vol)
	funding := s.funding.RateAt(bar.Time)

	var signals []Signal

	// Bars inside the lookback window are warm-up: metrics are still
	// recorded, signals are not.
	if idx >= s.Params.Lookback {
		signals = s.evaluate(bar, capital, vol, actual, required, funding)
	}

	s.metrics = append(s.metrics, BarMetrics{
		Time:           bar.Time,
		Price:          bar.Close,
		Volatility:     vol,
		ActualSpread:   actual,
		RequiredSpread: required,
		FundingRate:    funding,
		OpenPositions:  len(s.open),
	})

	return signals
}

func (s *VolAdaptive) evaluate(bar market.Bar, capital, vol, actual, required, funding float64) []Signal {
	p := s.Params
	var signals []Signal

	closed := false
	for _, symbol := range s.openSymbols() {
		st := s.open[symbol]
		if !s.shouldExit(st.Side, vol, actual, required, funding) {
			continue
		}

		reason := "high_volatility"
		if actual < required*0.8 {
			reason = "spread_narrowing"
		}

		signals = append(signals, Signal{
			Action:      ActionClose,
			Symbol:      symbol,
			Time:        bar.Time,
			Price:       bar.Close,
			Reason:      reason,
			FundingCost: fundingImpact(funding, st.Size),
		})
		delete(s.open, symbol)
		closed = true
	}

	if len(s.open) > 0 || closed {
		return signals
	}

	// Entry gates: the realized spread must pay well over the required one,
	// volatility must sit comfortably under the threshold, and funding must
	// not already lean against the side. Long is preferred when both funding
	// gates pass.
	if actual <= required*1.3 || vol >= p.VolThreshold*0.8 {
		return signals
	}

	var side market.Side
	switch {
	case funding < p.FundingThreshold*0.5:
		side = market.Long
	case funding > -p.FundingThreshold*0.5:
		side = market.Short
	default:
		return signals
	}

	leverage := s.entryLeverage(vol)
	// Half the model's allowed notional as a safety margin.
	notional := risk.PositionSize(capital, leverage, p.MaxPositionPct, vol, p.VolThreshold) * 0.5
	if notional <= 0 {
		return signals
	}
	amount := notional / bar.Close

	signals = append(signals, Signal{
		Action:   ActionOpen,
		Symbol:   s.Symbol,
		Time:     bar.Time,
		Price:    bar.Close,
		Reason:   "spread_widening",
		Side:     side,
		Amount:   amount,
		Leverage: leverage,
	})
	s.open[s.Symbol] = &openState{
		Side:      side,
		Entry:     bar.Close,
		Size:      amount,
		Leverage:  leverage,
		EntryTime: bar.Time,
	}

	return signals
}

func (s *VolAdaptive) shouldExit(side market.Side, vol, actual, required, funding float64) bool {
	p := s.Params
	if actual < required*0.8 || vol > p.VolThreshold*1.3 {
		return true
	}
	if side == market.Long {
		return funding > p.FundingThreshold*0.8
	}
	return funding < -p.FundingThreshold*0.8
}

// requiredSpread widens with volatility, clamped to [min, max].
func (s *VolAdaptive) requiredSpread(vol float64) float64 {
	spread := s.Params.MinSpread + 2*vol
	if spread > s.Params.MaxSpread {
		return s.Params.MaxSpread
	}
	return spread
}

// entryLeverage caps leverage at 2/vol. Zero volatility would make that
// unbounded, so it falls back to the configured maximum.
func (s *VolAdaptive) entryLeverage(vol float64) float64 {
	if vol <= 0 {
		return s.Params.MaxLeverage
	}
	lev := 2 / vol
	if lev > s.Params.MaxLeverage {
		return s.Params.MaxLeverage
	}
	return lev
}

func (s *VolAdaptive) openSymbols() []string {
	out := make([]string, 0, len(s.open))
	for sym := range s.open {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// fundingImpact is the cost a position pays over an 8-hour funding cycle,
// three payments per day.
func fundingImpact(rate, size float64) float64 {
	return size * rate * 3
}
