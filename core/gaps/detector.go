// Package gaps finds the timestamps missing from a series sampled on a fixed
// grid.
package gaps

import (
	"errors"
	"time"

	"github.com/kilianp07/octowatt/core/model"
)

// ErrInvalidFrequency is returned for a non-positive sampling frequency.
var ErrInvalidFrequency = errors.New("frequency must be positive")

// Detect returns, in ascending order, every instant of the grid
// first, first+frequency, ... up to the last observed key that is not a key
// of series. Fewer than two records yield no gaps.
func Detect[T model.Keyed](series []T, frequency time.Duration) ([]time.Time, error) {
	if frequency <= 0 {
		return nil, ErrInvalidFrequency
	}
	first, last, ok := model.Bounds(series)
	if !ok || len(series) < 2 {
		return nil, nil
	}
	observed := make(map[int64]struct{}, len(series))
	for _, rec := range series {
		observed[rec.Key().UnixNano()] = struct{}{}
	}
	var missing []time.Time
	for ts := first; !ts.After(last); ts = ts.Add(frequency) {
		if _, ok := observed[ts.UnixNano()]; !ok {
			missing = append(missing, ts.UTC())
		}
	}
	return missing, nil
}

// Report is the gap summary of one series at one point in time.
type Report struct {
	Series  string
	Records int
	First   time.Time
	Latest  time.Time
	Missing []time.Time
}

// Count returns the number of missing slots.
func (r Report) Count() int { return len(r.Missing) }

// Summarize runs Detect and packages the result with the series bounds.
func Summarize[T model.Keyed](name string, series []T, frequency time.Duration) (Report, error) {
	missing, err := Detect(series, frequency)
	if err != nil {
		return Report{}, err
	}
	first, last, _ := model.Bounds(series)
	return Report{Series: name, Records: len(series), First: first, Latest: last, Missing: missing}, nil
}
