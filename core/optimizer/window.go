package optimizer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/octowatt/core/failure"
	"github.com/kilianp07/octowatt/core/model"
)

// ErrInvalidPattern is returned for an empty pattern or a negative/NaN weight.
var ErrInvalidPattern = errors.New("invalid usage pattern")

// Window is the cheapest run found for a pattern.
type Window struct {
	Start time.Time
	End   time.Time
	Cost  float64
}

// CostPoint is the cost of starting a run at Start.
type CostPoint struct {
	Start time.Time
	Cost  float64
}

// Validate checks that a pattern can be evaluated.
func Validate(p model.UsagePattern) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: no slots", ErrInvalidPattern)
	}
	for i, w := range p {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weight %d is %v", ErrInvalidPattern, i, w)
		}
	}
	return nil
}

// CostCurve returns the cost of every valid start offset in the horizon, in
// chronological order.
func CostCurve(tariff []model.TariffRate, pattern model.UsagePattern, horizonStart time.Time) ([]CostPoint, error) {
	if err := Validate(pattern); err != nil {
		return nil, err
	}
	rates := horizon(tariff, horizonStart)
	k := len(pattern)
	if len(rates) < k {
		return nil, insufficient(len(rates), k)
	}
	prices := make([]float64, len(rates))
	for i, r := range rates {
		prices[i] = r.UnitPrice
	}
	// breaks[i] counts the holes between slot 0 and slot i.
	breaks := make([]int, len(rates)+1)
	for i := 0; i+1 < len(rates); i++ {
		breaks[i+1] = breaks[i]
		if !rates[i].End().Equal(rates[i+1].ValidFrom) {
			breaks[i+1]++
		}
	}
	curve := make([]CostPoint, 0, len(rates)-k+1)
	for o := 0; o+k <= len(rates); o++ {
		if breaks[o+k-1] != breaks[o] {
			continue
		}
		curve = append(curve, CostPoint{
			Start: rates[o].ValidFrom,
			Cost:  floats.Dot(prices[o:o+k], pattern),
		})
	}
	if len(curve) == 0 {
		return nil, failure.New(failure.KindInsufficientHorizon, "optimize",
			fmt.Errorf("no contiguous run of %d slots after %s", k, horizonStart.Format(time.RFC3339)))
	}
	return curve, nil
}

// Optimize returns the minimum-cost window for pattern among tariff entries
// starting at or after horizonStart. Ties resolve to the earliest start.
func Optimize(tariff []model.TariffRate, pattern model.UsagePattern, horizonStart time.Time) (Window, error) {
	curve, err := CostCurve(tariff, pattern, horizonStart)
	if err != nil {
		return Window{}, err
	}
	best := 0
	for i := 1; i < len(curve); i++ {
		if curve[i].Cost < curve[best].Cost {
			best = i
		}
	}
	start := curve[best].Start
	return Window{
		Start: start,
		End:   start.Add(pattern.Duration()),
		Cost:  curve[best].Cost,
	}, nil
}

// Result is the outcome for one appliance; exactly one of Window and Err is
// meaningful.
type Result struct {
	Appliance string
	Window    Window
	Err       error
}

// OptimizeAll evaluates every appliance independently. A failure for one
// appliance is reported in its Result and does not affect the others.
func OptimizeAll(tariff []model.TariffRate, appliances []model.Appliance, horizonStart time.Time) []Result {
	out := make([]Result, 0, len(appliances))
	for _, a := range appliances {
		w, err := Optimize(tariff, a.Pattern, horizonStart)
		out = append(out, Result{Appliance: a.Name, Window: w, Err: err})
	}
	return out
}

// horizon returns the entries starting at or after from, sorted by ValidFrom.
func horizon(tariff []model.TariffRate, from time.Time) []model.TariffRate {
	out := make([]model.TariffRate, 0, len(tariff))
	for _, r := range tariff {
		if !r.ValidFrom.Before(from) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ValidFrom.Before(out[j].ValidFrom) })
	return out
}

func insufficient(have, need int) error {
	return failure.New(failure.KindInsufficientHorizon, "optimize",
		fmt.Errorf("pattern needs %d slots, horizon has %d", need, have))
}
