package aggregate

import (
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/octowatt/core/model"
)

// SeasonStart is the month a heating season opens.
const SeasonStart = time.October

// Season is the half-open interval [From, To). A zero From is open.
type Season struct {
	Label string
	From  time.Time
	To    time.Time
}

// Contains reports whether t falls inside the season.
func (s Season) Contains(t time.Time) bool {
	return (s.From.IsZero() || !t.Before(s.From)) && t.Before(s.To)
}

// HeatingSeasons splits [from, to) into seasons running from 1 October to the
// next 1 October, labelled "2023/24". The first season opens on the 1 October
// at or before from; the last one is cut at to.
func HeatingSeasons(from, to time.Time) []Season {
	from, to = from.UTC(), to.UTC()
	if !from.Before(to) {
		return nil
	}
	y := from.Year()
	if from.Month() < SeasonStart {
		y--
	}
	start := time.Date(y, SeasonStart, 1, 0, 0, 0, 0, time.UTC)
	var out []Season
	for start.Before(to) {
		end := start.AddDate(1, 0, 0)
		s := Season{Label: fmt.Sprintf("%d/%02d", start.Year(), end.Year()%100), From: start, To: end}
		if end.After(to) {
			s.To = to
		}
		out = append(out, s)
		start = end
	}
	return out
}

// Baseline is the season holding every hour before t.
func Baseline(t time.Time) Season {
	return Season{Label: "before " + t.UTC().Format(time.DateOnly), To: t.UTC()}
}

// Distribution is the hourly gas load of one season, in kWh, largest first.
type Distribution struct {
	Season
	Values []float64
}

// Total is the energy of the hours kept in the distribution.
func (d Distribution) Total() float64 { return floats.Sum(d.Values) }

// Peak is the largest hourly value, or zero for an empty distribution.
func (d Distribution) Peak() float64 {
	if len(d.Values) == 0 {
		return 0
	}
	return d.Values[0]
}

// SeasonalDistribution sums gas volume per hour, keeps the hours above
// threshold (m3) and converts them to kWh, one descending distribution per
// season. A season without any qualifying hour yields an empty distribution.
func SeasonalDistribution(gas []model.Sample, seasons []Season, threshold float64, conv GasConversion) []Distribution {
	hourly := Resample(gas, Hourly)
	out := make([]Distribution, 0, len(seasons))
	for _, season := range seasons {
		values := []float64{}
		for _, h := range hourly {
			if season.Contains(h.Timestamp) && h.Value > threshold {
				values = append(values, h.Value)
			}
		}
		floats.Scale(conv.Factor(), values)
		slices.Sort(values)
		slices.Reverse(values)
		out = append(out, Distribution{Season: season, Values: values})
	}
	return out
}
