// Package app wires the sync engines, the cache and the sinks into update
// cycles, and holds the latest Snapshot.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/octowatt/config"
	"github.com/kilianp07/octowatt/core/aggregate"
	"github.com/kilianp07/octowatt/core/failure"
	"github.com/kilianp07/octowatt/core/gaps"
	coremetrics "github.com/kilianp07/octowatt/core/metrics"
	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/core/optimizer"
	"github.com/kilianp07/octowatt/core/syncengine"
	"github.com/kilianp07/octowatt/infra/cache"
	"github.com/kilianp07/octowatt/infra/logger"
	"github.com/kilianp07/octowatt/infra/mqtt"
	"github.com/kilianp07/octowatt/infra/octopus"
	"github.com/kilianp07/octowatt/internal/eventbus"
)

// Series names used in logs, metrics and published payloads.
const (
	ElectricSeries = "electricity"
	GasSeries      = "gas"
	TariffSeries   = "tariff"
)

// Remote is the part of the Octopus client used by the update cycle.
type Remote interface {
	ConsumptionSource(fuel model.Fuel) syncengine.PagedSource[model.Sample]
	TariffSource(product, region string) syncengine.PagedSource[model.TariffRate]
	Region(ctx context.Context) (string, error)
}

// Option overrides a dependency built from the configuration.
type Option func(*Service)

func WithRemote(r Remote) Option { return func(s *Service) { s.remote = r } }

func WithStore(st *cache.Store) Option { return func(s *Service) { s.store = st } }

func WithSink(sink coremetrics.MetricsSink) Option { return func(s *Service) { s.sink = sink } }

func WithPublisher(p mqtt.Publisher) Option { return func(s *Service) { s.pub = p } }

func WithLogger(l logger.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// Service owns the in-memory series. It is the only writer of the cache.
type Service struct {
	cfg    *config.Config
	remote Remote
	store  *cache.Store
	sink   coremetrics.MetricsSink
	pub    mqtt.Publisher
	bus    *eventbus.Bus[*Snapshot]
	log    logger.Logger
	now    func() time.Time
	join   time.Time

	mu       sync.Mutex
	loaded   bool
	region   string
	electric []model.Sample
	gas      []model.Sample
	tariff   []model.TariffRate

	current atomic.Pointer[Snapshot]
}

// New builds a Service from cfg. Dependencies not supplied through options
// are created from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	join, err := cfg.Sync.JoinTime()
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:  cfg,
		bus:  eventbus.New[*Snapshot](),
		log:  logger.New("service"),
		now:  time.Now,
		join: join,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.remote == nil {
		copts := append(cfg.Octopus.ClientOptions(), octopus.WithLogger(logger.New("octopus")))
		s.remote = octopus.NewClient(cfg.Octopus.Account(), copts...)
	}
	if s.store == nil {
		sopts := []cache.Option{cache.WithLogger(logger.New("cache"))}
		if cfg.Cache.S3.Enabled {
			m, err := cache.NewS3Mirror(context.Background(), cfg.Cache.S3)
			if err != nil {
				return nil, fmt.Errorf("s3 mirror: %w", err)
			}
			sopts = append(sopts, cache.WithMirror(m))
		}
		if s.store, err = cache.NewStore(cfg.Cache.Dir, sopts...); err != nil {
			return nil, err
		}
	}
	if s.sink == nil {
		if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
			return nil, fmt.Errorf("metrics sinks: %w", err)
		}
	}
	if s.pub == nil {
		s.pub = mqtt.NopPublisher{}
		if cfg.MQTT.Enabled {
			pc, err := mqtt.NewPahoClient(cfg.MQTT)
			if err != nil {
				return nil, fmt.Errorf("mqtt client: %w", err)
			}
			s.pub = pc
		}
	}
	if cfg.Octopus.Region != "" {
		if s.region, err = octopus.NormalizeRegion(cfg.Octopus.Region); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Current returns the latest snapshot, or nil before the first successful
// cycle.
func (s *Service) Current() *Snapshot { return s.current.Load() }

// Refresh returns the current snapshot when it is younger than maxAge and
// runs an update cycle otherwise.
func (s *Service) Refresh(ctx context.Context, maxAge time.Duration) (*Snapshot, error) {
	if cur := s.current.Load(); cur != nil && maxAge > 0 && cur.Age(s.now()) < maxAge {
		return cur, nil
	}
	return s.Update(ctx)
}

// Subscribe returns a channel receiving every new snapshot.
func (s *Service) Subscribe() <-chan *Snapshot { return s.bus.Subscribe() }

// Unsubscribe releases a channel returned by Subscribe.
func (s *Service) Unsubscribe(ch <-chan *Snapshot) { s.bus.Unsubscribe(ch) }

// Update runs one update cycle: load the cache on first use, synchronize
// every series, persist them, then derive and publish a new Snapshot.
// Cycles are serialized. When any series fails to synchronize the cycle
// fails as a whole and the previous series and snapshot are kept.
func (s *Service) Update(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Sync.Timeout())
	defer cancel()

	if !s.loaded {
		s.loadCache()
		s.loaded = true
	}
	region, err := s.resolveRegion(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	tariffFrom := now.AddDate(0, 0, -s.cfg.Sync.TariffHistoryDays)
	tariffTo := now.Add(time.Duration(s.cfg.Sync.TariffLookaheadHours) * time.Hour)

	electric, gas, tariff := s.electric, s.gas, s.tariff
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		electric, err = syncSeries(gctx, s, ElectricSeries, s.remote.ConsumptionSource(model.FuelElectric),
			s.cfg.Sync.Engine, s.electric, s.join, now)
		return err
	})
	if s.cfg.Octopus.HasGas() {
		g.Go(func() error {
			var err error
			gas, err = syncSeries(gctx, s, GasSeries, s.remote.ConsumptionSource(model.FuelGas),
				s.cfg.Sync.Engine, s.gas, s.join, now)
			return err
		})
	}
	g.Go(func() error {
		var err error
		tariff, err = syncSeries(gctx, s, TariffSeries, s.remote.TariffSource(s.cfg.Octopus.Product, region),
			s.cfg.Sync.TariffEngine, s.tariff, tariffFrom, tariffTo)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Errorf("update cycle failed: %v", err)
		return nil, err
	}

	s.saveSamples(ctx, cache.ElectricityFile, electric)
	if s.cfg.Octopus.HasGas() {
		s.saveSamples(ctx, cache.GasFile, gas)
	}
	s.saveTariff(ctx, cache.TariffFile, tariff)

	snap, err := s.build(region, now, electric, gas, tariff)
	if err != nil {
		return nil, err
	}

	s.export(electric, gas, tariff)
	s.electric, s.gas, s.tariff = electric, gas, tariff
	s.current.Store(snap)
	s.recordSnapshot(snap)
	s.bus.Publish(snap)
	s.log.Infow("update cycle complete", map[string]any{
		"cycle":            snap.ID,
		"electric_records": snap.Electric.Records,
		"electric_missing": snap.Electric.Count(),
		"tariff_records":   snap.TariffRecords,
	})
	return snap, nil
}

// Run publishes every new snapshot to the MQTT broker until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub:
			if !ok {
				return nil
			}
			if err := s.pub.PublishCycle(snap.Cycle()); err != nil {
				s.log.Errorf("publish cycle %s: %v", snap.ID, err)
			}
		}
	}
}

// Close releases the broker connection and the sinks.
func (s *Service) Close() error {
	s.bus.Close()
	s.pub.Disconnect()
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}

func (s *Service) resolveRegion(ctx context.Context) (string, error) {
	if s.region != "" {
		return s.region, nil
	}
	r, err := s.remote.Region(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve tariff region: %w", err)
	}
	s.log.Infof("tariff region %s", r)
	s.region = r
	return r, nil
}

func (s *Service) build(region string, now time.Time, electric, gas []model.Sample, tariff []model.TariffRate) (*Snapshot, error) {
	snap := &Snapshot{
		ID:            uuid.NewString(),
		ComputedAt:    now,
		Region:        region,
		TariffRecords: len(tariff),
		StartTimes:    optimizer.OptimizeAll(tariff, s.cfg.Appliances, now),
		Aggregates:    map[model.Fuel]Aggregates{},
	}
	if _, last, ok := model.Bounds(tariff); ok {
		snap.TariffLatest = last
	}

	var err error
	if snap.Electric, err = gaps.Summarize(ElectricSeries, electric, model.SlotDuration); err != nil {
		return nil, err
	}
	if snap.Aggregates[model.FuelElectric], err = aggregates(electric, s.cfg.Aggregate.ElectricWindow); err != nil {
		return nil, err
	}
	if s.cfg.Octopus.HasGas() {
		rep, err := gaps.Summarize(GasSeries, gas, model.SlotDuration)
		if err != nil {
			return nil, err
		}
		snap.Gas = &rep
		agg, err := aggregates(s.cfg.Aggregate.Gas.Series(gas), s.cfg.Aggregate.GasWindow)
		if err != nil {
			return nil, err
		}
		agg.Seasons = s.seasons(gas, now)
		if t := s.cfg.Aggregate.GasTariff; t.Enabled() {
			cost := t.Cost(gas, now.AddDate(0, 0, -t.Days), now, s.cfg.Aggregate.Gas)
			agg.Cost = &cost
		}
		snap.Aggregates[model.FuelGas] = agg
	}
	return snap, nil
}

// seasons splits raw gas volume into heating seasons up to now, preceded by
// the configured baseline.
func (s *Service) seasons(gas []model.Sample, now time.Time) []aggregate.Distribution {
	first, _, ok := model.Bounds(gas)
	if !ok {
		return nil
	}
	cfg := s.cfg.Aggregate
	var seasons []aggregate.Season
	if before, ok, _ := cfg.Baseline(); ok {
		seasons = append(seasons, aggregate.Baseline(before))
	}
	seasons = append(seasons, aggregate.HeatingSeasons(first, now)...)
	return aggregate.SeasonalDistribution(gas, seasons, cfg.GasThreshold, cfg.Gas)
}

func aggregates(samples []model.Sample, window int) (Aggregates, error) {
	rolling, err := aggregate.Rolling(samples, window)
	if err != nil {
		return Aggregates{}, err
	}
	return Aggregates{
		Daily:   aggregate.Resample(samples, aggregate.Daily),
		Weekly:  aggregate.Resample(samples, aggregate.Weekly),
		Rolling: rolling,
		Window:  window,
	}, nil
}

// syncSeries runs one engine and records the outcome.
func syncSeries[T model.Keyed](ctx context.Context, s *Service, name string, src syncengine.PagedSource[T],
	cfg syncengine.Config, existing []T, from, to time.Time) ([]T, error) {
	start := time.Now()
	res, err := syncengine.New(name, src, cfg, s.log).Sync(ctx, existing, from, to)
	ev := coremetrics.SyncEvent{
		Series:        name,
		Seeded:        res.Stats.Seeded,
		Pages:         res.Stats.Pages,
		BackwardPages: res.Stats.BackwardPages,
		ForwardPages:  res.Stats.ForwardPages,
		Added:         res.Stats.Added,
		Records:       len(res.Series),
		Duration:      time.Since(start),
		Time:          to,
	}
	if err != nil {
		ev.ErrorKind = kindName(err)
	}
	if rerr := s.sink.RecordSync(ev); rerr != nil {
		s.log.Warnf("record sync %s: %v", name, rerr)
	}
	if err != nil {
		return nil, err
	}
	return res.Series, nil
}

func kindName(err error) string {
	if k, ok := failure.KindOf(err); ok {
		return k.String()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	return "unknown"
}
