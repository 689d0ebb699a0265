package metrics

import (
	"errors"

	coremetrics "github.com/kilianp07/octowatt/core/metrics"
	"github.com/kilianp07/octowatt/core/model"
)

// SeriesRecorder is implemented by sinks that store the series themselves.
type SeriesRecorder interface {
	RecordSamples(series string, samples []model.Sample) error
	RecordTariff(series string, rates []model.TariffRate) error
}

// MultiSink forwards every event to each sink that supports it.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSync forwards to every sink and joins their errors.
func (m *MultiSink) RecordSync(ev coremetrics.SyncEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordSync(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordGaps(ev coremetrics.GapEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.GapRecorder); ok {
			errs = append(errs, rec.RecordGaps(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordOptimizer(ev coremetrics.OptimizerEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.OptimizerRecorder); ok {
			errs = append(errs, rec.RecordOptimizer(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordCache(ev coremetrics.CacheEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.CacheRecorder); ok {
			errs = append(errs, rec.RecordCache(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordSamples(series string, samples []model.Sample) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(SeriesRecorder); ok {
			errs = append(errs, rec.RecordSamples(series, samples))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordTariff(series string, rates []model.TariffRate) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(SeriesRecorder); ok {
			errs = append(errs, rec.RecordTariff(series, rates))
		}
	}
	return errors.Join(errs...)
}

// Close releases every sink that holds a connection.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
