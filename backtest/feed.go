package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/rustyeddy/volsim/market"
)

// BarFeed yields bars one at a time. Implementations must be deterministic
// and return (ok=false, err=nil) at end of data.
type BarFeed interface {
	Next() (bar market.Bar, ok bool, err error)
	Close() error
}

// CSVBarsFeed reads canonical bar CSV rows:
//
//	time,open,high,low,close,volume
//
// where time is RFC3339 or RFC3339Nano. A header row ("time,...") is allowed,
// empty/short rows are skipped, and rows outside [From, To) are filtered out
// when a range is given. Files ending in .xz are decompressed transparently.
type CSVBarsFeed struct {
	f    *os.File
	r    *csv.Reader
	from time.Time
	to   time.Time

	sawFirst bool
}

func NewCSVBarsFeed(path string, from, to time.Time) (*CSVBarsFeed, error) {
	f, src, err := openMaybeCompressed(path)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1

	return &CSVBarsFeed{f: f, r: r, from: from, to: to}, nil
}

func (f *CSVBarsFeed) Close() error {
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

func (f *CSVBarsFeed) Next() (market.Bar, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return market.Bar{}, false, nil
		}
		if err != nil {
			return market.Bar{}, false, err
		}
		if len(row) == 0 {
			continue
		}

		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		b, ok, err := parseBarRow(row)
		if err != nil {
			return market.Bar{}, false, err
		}
		if !ok {
			continue
		}
		if !inRange(b.Time, f.from, f.to) {
			continue
		}
		return b, true, nil
	}
}

func parseBarRow(row []string) (market.Bar, bool, error) {
	// Need at least: time,open,high,low,close
	if len(row) < 5 {
		return market.Bar{}, false, nil
	}

	t, ok, err := parseTime(row[0])
	if err != nil || !ok {
		return market.Bar{}, false, err
	}

	var vals [4]float64
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("bad price %q: %w", row[i+1], err)
		}
		vals[i] = v
	}

	bar := market.Bar{
		Time:  t,
		Open:  vals[0],
		High:  vals[1],
		Low:   vals[2],
		Close: vals[3],
	}
	if len(row) > 5 {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("bad volume %q: %w", row[5], err)
		}
		bar.Volume = v
	}
	return bar, true, nil
}

// LoadFundingCSV reads a funding-rate history from rows of
//
//	time,rate
//
// with the same header/compression handling as the bar feed. The series is
// validated before return; funding timestamps must be strictly increasing.
func LoadFundingCSV(path string) (*market.FundingSeries, error) {
	f, src, err := openMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1

	series := &market.FundingSeries{}
	sawFirst := false
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 2 {
			continue
		}
		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		t, ok, err := parseTime(row[0])
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad funding rate %q: %w", row[1], err)
		}
		series.Points = append(series.Points, market.FundingPoint{Time: t, Rate: rate})
	}

	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// SeriesFeed replays an in-memory bar series. The zero-allocation path for
// library callers and tests.
type SeriesFeed struct {
	series *market.BarSeries
	i      int
}

func NewSeriesFeed(s *market.BarSeries) *SeriesFeed {
	return &SeriesFeed{series: s}
}

func (f *SeriesFeed) Next() (market.Bar, bool, error) {
	if f.i >= len(f.series.Bars) {
		return market.Bar{}, false, nil
	}
	b := f.series.Bars[f.i]
	f.i++
	return b, true, nil
}

func (f *SeriesFeed) Close() error { return nil }

func openMaybeCompressed(path string) (*os.File, io.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("open %s: %w", path, err)
		}
		return f, xr, nil
	}
	return f, f, nil
}

func parseTime(field string) (time.Time, bool, error) {
	ts := strings.TrimSpace(field)
	if ts == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return time.Time{}, false, fmt.Errorf("bad time %q: %w", ts, err)
		}
		t = t2
	}
	return t, true, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
