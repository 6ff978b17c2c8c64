package market

import (
	"fmt"
	"time"
)

// Side of an exposure. Stored as a string so it round-trips through the
// journal and the results artifact unchanged.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Sign returns +1 for long, -1 for short.
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// Bar is one time step of OHLCV market data. Bars are produced by an external
// collector, ordered by timestamp, and never mutated by the core.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Spread returns the realized intrabar spread proxy (high-low)/close.
func (b Bar) Spread() float64 {
	if b.Close == 0 {
		return 0
	}
	return (b.High - b.Low) / b.Close
}

// BarSeries is a time-ordered, de-duplicated bar sequence for one symbol.
type BarSeries struct {
	Symbol string
	Bars   []Bar
}

// Validate checks that the series is usable as simulation input. Statistics
// computed downstream are meaningless on corrupt input, so a violation here is
// fatal for the whole run: callers must validate before the bar loop starts.
func (s *BarSeries) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("bar series: symbol is required")
	}
	for i, b := range s.Bars {
		if b.Time.IsZero() {
			return fmt.Errorf("bar series %s: bar %d has no timestamp", s.Symbol, i)
		}
		if i > 0 && !b.Time.After(s.Bars[i-1].Time) {
			return fmt.Errorf("bar series %s: timestamps not strictly increasing at %d (%s -> %s)",
				s.Symbol, i, s.Bars[i-1].Time.Format(time.RFC3339), b.Time.Format(time.RFC3339))
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("bar series %s: non-positive price at %d", s.Symbol, i)
		}
		if b.High < b.Low {
			return fmt.Errorf("bar series %s: high below low at %d", s.Symbol, i)
		}
	}
	return nil
}
