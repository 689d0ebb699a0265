package app

import (
	"time"

	"github.com/kilianp07/octowatt/core/aggregate"
	"github.com/kilianp07/octowatt/core/failure"
	"github.com/kilianp07/octowatt/core/gaps"
	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/core/optimizer"
	"github.com/kilianp07/octowatt/infra/mqtt"
)

// Aggregates are the reporting series derived for one fuel. Gas values are
// converted to kWh.
type Aggregates struct {
	Daily   []model.Sample
	Weekly  []model.Sample
	Rolling []model.Sample
	// Window is the rolling window length in slots.
	Window int

	// Gas only: hourly load per heating season, and the price of the
	// trailing cost period when a gas tariff is configured.
	Seasons []aggregate.Distribution
	Cost    *aggregate.Cost
}

// Snapshot is the result of one update cycle. It is built completely before
// it is published and never modified afterwards.
type Snapshot struct {
	ID         string
	ComputedAt time.Time
	Region     string

	Electric gaps.Report
	// Gas is nil when no gas meter is configured.
	Gas *gaps.Report

	TariffRecords int
	TariffLatest  time.Time

	StartTimes []optimizer.Result
	Aggregates map[model.Fuel]Aggregates
}

// Age returns how long ago the snapshot was computed.
func (s *Snapshot) Age(now time.Time) time.Duration { return now.Sub(s.ComputedAt) }

// Reports returns the gap reports of every consumption series.
func (s *Snapshot) Reports() []gaps.Report {
	out := []gaps.Report{s.Electric}
	if s.Gas != nil {
		out = append(out, *s.Gas)
	}
	return out
}

// StartTime returns the result for the named appliance.
func (s *Snapshot) StartTime(appliance string) (optimizer.Result, bool) {
	for _, r := range s.StartTimes {
		if r.Appliance == appliance {
			return r, true
		}
	}
	return optimizer.Result{}, false
}

// Cycle converts the snapshot into the MQTT payload.
func (s *Snapshot) Cycle() mqtt.Cycle {
	c := mqtt.Cycle{ID: s.ID, ComputedAt: s.ComputedAt}
	for _, r := range s.StartTimes {
		rec := mqtt.Recommendation{Appliance: r.Appliance}
		if r.Err != nil {
			rec.Error = r.Err.Error()
			if k, ok := failure.KindOf(r.Err); ok {
				rec.Kind = k.String()
			}
		} else {
			start, end, cost := r.Window.Start, r.Window.End, r.Window.Cost
			rec.Start, rec.End, rec.Cost = &start, &end, &cost
		}
		c.Recommendations = append(c.Recommendations, rec)
	}
	for _, rep := range s.Reports() {
		c.Series = append(c.Series, mqtt.SeriesStatus{
			Series:  rep.Series,
			Latest:  rep.Latest,
			Missing: rep.Count(),
			Records: rep.Records,
		})
	}
	return c
}
