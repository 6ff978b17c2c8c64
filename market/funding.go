package market

import (
	"fmt"
	"sort"
	"time"
)

// FundingPoint is one observed funding rate for a perpetual contract.
type FundingPoint struct {
	Time time.Time
	Rate float64
}

// FundingSeries is a time-ordered funding-rate history. Lookups use
// most-recent-at-or-before semantics: funding is published on a coarser
// schedule than bars, so each bar sees the last rate known at its timestamp.
type FundingSeries struct {
	Points []FundingPoint
}

func (f *FundingSeries) Validate() error {
	for i, p := range f.Points {
		if p.Time.IsZero() {
			return fmt.Errorf("funding series: point %d has no timestamp", i)
		}
		if i > 0 && !p.Time.After(f.Points[i-1].Time) {
			return fmt.Errorf("funding series: timestamps not strictly increasing at %d", i)
		}
	}
	return nil
}

// RateAt returns the last rate observed at or before t, or 0 if no rate was
// known yet. A zero rate for early bars is the defined boundary, not an error.
func (f *FundingSeries) RateAt(t time.Time) float64 {
	if f == nil || len(f.Points) == 0 {
		return 0
	}
	// First point strictly after t; the one before it is the answer.
	i := sort.Search(len(f.Points), func(i int) bool {
		return f.Points[i].Time.After(t)
	})
	if i == 0 {
		return 0
	}
	return f.Points[i-1].Rate
}
