// Package aggregate derives the reporting series shown next to raw
// consumption: calendar bucket totals, rolling sums and gas energy.
package aggregate

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/core/series"
)

// ErrInvalidWindow is returned by Rolling for a window shorter than one sample.
var ErrInvalidWindow = errors.New("rolling window must be at least one sample")

// Period selects the calendar bucket used by Resample.
type Period int

const (
	Daily Period = iota
	Weekly
	Hourly
)

func (p Period) String() string {
	switch p {
	case Weekly:
		return "weekly"
	case Hourly:
		return "hourly"
	}
	return "daily"
}

// ParsePeriod accepts "hourly", "daily" or "weekly".
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "daily", "day", "":
		return Daily, nil
	case "weekly", "week":
		return Weekly, nil
	case "hourly", "hour":
		return Hourly, nil
	}
	return 0, fmt.Errorf("unknown period %q", s)
}

// Floor returns the start of the UTC bucket holding t. Weeks start on Monday.
func (p Period) Floor(t time.Time) time.Time {
	t = t.UTC()
	if p == Hourly {
		return t.Truncate(time.Hour)
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if p == Weekly {
		back := (int(day.Weekday()) + 6) % 7
		day = day.AddDate(0, 0, -back)
	}
	return day
}

// Resample sums samples into calendar buckets. Only buckets containing at
// least one sample are emitted, in ascending order.
func Resample(s []model.Sample, p Period) []model.Sample {
	s = sorted(s)
	var (
		out    []model.Sample
		values []float64
		cur    time.Time
	)
	flush := func() {
		if len(values) > 0 {
			out = append(out, model.Sample{Timestamp: cur, Value: floats.Sum(values)})
		}
		values = values[:0]
	}
	for _, smp := range s {
		b := p.Floor(smp.Timestamp)
		if !b.Equal(cur) {
			flush()
			cur = b
		}
		values = append(values, smp.Value)
	}
	flush()
	return out
}

// Rolling returns the sum of every run of window consecutive samples, stamped
// with the last sample of the run. Series shorter than window yield nothing.
func Rolling(s []model.Sample, window int) ([]model.Sample, error) {
	if window < 1 {
		return nil, ErrInvalidWindow
	}
	s = sorted(s)
	if len(s) < window {
		return nil, nil
	}
	values := make([]float64, len(s))
	for i, smp := range s {
		values[i] = smp.Value
	}
	out := make([]model.Sample, 0, len(s)-window+1)
	for end := window; end <= len(s); end++ {
		out = append(out, model.Sample{
			Timestamp: s[end-1].Timestamp,
			Value:     floats.Sum(values[end-window : end]),
		})
	}
	return out, nil
}

func sorted(s []model.Sample) []model.Sample {
	if series.Canonical(s) {
		return s
	}
	return series.Merge(s)
}
