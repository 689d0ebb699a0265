package app

import (
	"context"
	"errors"

	coremetrics "github.com/kilianp07/octowatt/core/metrics"
	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/infra/cache"
	"github.com/kilianp07/octowatt/infra/metrics"
)

// Cache outcomes reported through CacheEvent.
const (
	CacheHit            = "hit"
	CacheNotFound       = "not_found"
	CacheCorrupt        = "corrupt"
	CacheSchemaMismatch = "schema_mismatch"
	CacheSaved          = "saved"
	CacheSaveFailed     = "save_failed"
)

// loadCache reads every persisted series. A missing file starts the series
// empty, which makes the next sync fetch the full history. An unreadable file
// is quarantined first.
func (s *Service) loadCache() {
	s.electric = loadSeries(s, cache.ElectricityFile, s.store.LoadSamples)
	if s.cfg.Octopus.HasGas() {
		s.gas = loadSeries(s, cache.GasFile, s.store.LoadSamples)
	}
	s.tariff = loadSeries(s, cache.TariffFile, s.store.LoadTariff)
}

func loadSeries[T model.Keyed](s *Service, name string, load func(string) ([]T, error)) []T {
	data, err := load(name)
	outcome := CacheHit
	switch {
	case err == nil:
		s.log.Infof("cache: loaded %d records from %s", len(data), name)
	case errors.Is(err, cache.ErrNotFound):
		outcome = CacheNotFound
		s.log.Infof("cache: %s not found, fetching full history", name)
	case errors.Is(err, cache.ErrSchemaMismatch):
		outcome = CacheSchemaMismatch
		s.quarantine(name, err)
	default:
		outcome = CacheCorrupt
		s.quarantine(name, err)
	}
	s.recordCache(name, outcome, len(data))
	return data
}

func (s *Service) quarantine(name string, cause error) {
	s.log.Warnf("cache: %v, fetching full history", cause)
	if _, err := s.store.Quarantine(name); err != nil {
		s.log.Errorf("cache: %v", err)
	}
}

func (s *Service) saveSamples(ctx context.Context, name string, samples []model.Sample) {
	s.saved(name, len(samples), s.store.SaveSamples(ctx, name, samples))
}

func (s *Service) saveTariff(ctx context.Context, name string, rates []model.TariffRate) {
	s.saved(name, len(rates), s.store.SaveTariff(ctx, name, rates))
}

// saved logs a failed write. The cycle goes on with the in-memory series and
// the next cycle rewrites the file.
func (s *Service) saved(name string, n int, err error) {
	outcome := CacheSaved
	if err != nil {
		outcome = CacheSaveFailed
		s.log.Errorf("cache: save %s: %v", name, err)
	}
	s.recordCache(name, outcome, n)
}

func (s *Service) recordCache(name, outcome string, n int) {
	rec, ok := s.sink.(coremetrics.CacheRecorder)
	if !ok {
		return
	}
	ev := coremetrics.CacheEvent{Series: name, Outcome: outcome, Records: n, Time: s.now().UTC()}
	if err := rec.RecordCache(ev); err != nil {
		s.log.Warnf("record cache %s: %v", name, err)
	}
}

// recordSnapshot forwards gap reports and recommendations to the sinks that
// accept them.
func (s *Service) recordSnapshot(snap *Snapshot) {
	if rec, ok := s.sink.(coremetrics.GapRecorder); ok {
		for _, rep := range snap.Reports() {
			ev := coremetrics.GapEvent{Series: rep.Series, Missing: rep.Count(), Latest: rep.Latest, Time: snap.ComputedAt}
			if err := rec.RecordGaps(ev); err != nil {
				s.log.Warnf("record gaps %s: %v", rep.Series, err)
			}
		}
	}
	if rec, ok := s.sink.(coremetrics.OptimizerRecorder); ok {
		for _, r := range snap.StartTimes {
			ev := coremetrics.OptimizerEvent{Appliance: r.Appliance, Time: snap.ComputedAt}
			if r.Err != nil {
				ev.ErrorKind = kindName(r.Err)
			} else {
				ev.Start, ev.Cost = r.Window.Start, r.Window.Cost
			}
			if err := rec.RecordOptimizer(ev); err != nil {
				s.log.Warnf("record start time %s: %v", r.Appliance, err)
			}
		}
	}
}

// export writes the records added since the previous cycle to sinks that
// store the series.
func (s *Service) export(electric, gas []model.Sample, tariff []model.TariffRate) {
	rec, ok := s.sink.(metrics.SeriesRecorder)
	if !ok {
		return
	}
	errs := []error{
		rec.RecordSamples(ElectricSeries, after(electric, s.electric)),
		rec.RecordTariff(TariffSeries, after(tariff, s.tariff)),
	}
	if s.cfg.Octopus.HasGas() {
		errs = append(errs, rec.RecordSamples(GasSeries, after(gas, s.gas)))
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Warnf("export series: %v", err)
	}
}

// after returns the tail of series newer than the last record of prev.
// series is sorted.
func after[T model.Keyed](series, prev []T) []T {
	_, last, ok := model.Bounds(prev)
	if !ok {
		return series
	}
	for i, r := range series {
		if r.Key().After(last) {
			return series[i:]
		}
	}
	return nil
}
