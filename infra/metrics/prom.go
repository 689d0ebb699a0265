package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/octowatt/core/metrics"
)

const namespace = "octowatt"

// PromSink exposes update cycle outcomes as Prometheus metrics.
type PromSink struct {
	pages       *prometheus.CounterVec
	added       *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	records     *prometheus.GaugeVec
	missing     *prometheus.GaugeVec
	latest      *prometheus.GaugeVec
	cost        *prometheus.GaugeVec
	start       *prometheus.GaugeVec
	cacheEvents *prometheus.CounterVec
}

// NewPromSink registers on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers on reg, reusing collectors that are
// already present. A nil reg means the default registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_pages_total",
			Help:      "Pages requested from the remote, by series and direction",
		}, []string{"series", "direction"}),
		added: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_records_added_total",
			Help:      "Records added to a series by synchronization",
		}, []string{"series"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_failures_total",
			Help:      "Failed synchronizations by error kind",
		}, []string{"series", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Wall time of one series synchronization",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"series"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_records",
			Help:      "Records held for a series after the last synchronization",
		}, []string{"series"}),
		missing: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_missing_slots",
			Help:      "Slots missing between the first and last record of a series",
		}, []string{"series"}),
		latest: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_latest_timestamp_seconds",
			Help:      "Unix time of the newest record of a series",
		}, []string{"series"}),
		cost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "appliance_best_cost",
			Help:      "Cost of the cheapest run found for an appliance",
		}, []string{"appliance"}),
		start: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "appliance_best_start_timestamp_seconds",
			Help:      "Unix time of the recommended start for an appliance",
		}, []string{"appliance"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Cache loads and saves by outcome",
		}, []string{"series", "outcome"}),
	}
	var err error
	if s.pages, err = register(reg, s.pages); err != nil {
		return nil, err
	}
	if s.added, err = register(reg, s.added); err != nil {
		return nil, err
	}
	if s.failures, err = register(reg, s.failures); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.records, err = register(reg, s.records); err != nil {
		return nil, err
	}
	if s.missing, err = register(reg, s.missing); err != nil {
		return nil, err
	}
	if s.latest, err = register(reg, s.latest); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, s.cost); err != nil {
		return nil, err
	}
	if s.start, err = register(reg, s.start); err != nil {
		return nil, err
	}
	if s.cacheEvents, err = register(reg, s.cacheEvents); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSync updates page, record and failure metrics.
func (s *PromSink) RecordSync(ev coremetrics.SyncEvent) error {
	s.duration.WithLabelValues(ev.Series).Observe(ev.Duration.Seconds())
	if ev.ErrorKind != "" {
		s.failures.WithLabelValues(ev.Series, ev.ErrorKind).Inc()
		return nil
	}
	if ev.Seeded {
		s.pages.WithLabelValues(ev.Series, "seed").Inc()
	}
	s.pages.WithLabelValues(ev.Series, "backward").Add(float64(ev.BackwardPages))
	s.pages.WithLabelValues(ev.Series, "forward").Add(float64(ev.ForwardPages))
	if ev.Added > 0 {
		s.added.WithLabelValues(ev.Series).Add(float64(ev.Added))
	}
	s.records.WithLabelValues(ev.Series).Set(float64(ev.Records))
	return nil
}

// RecordGaps sets the gap gauges of a series.
func (s *PromSink) RecordGaps(ev coremetrics.GapEvent) error {
	s.missing.WithLabelValues(ev.Series).Set(float64(ev.Missing))
	if !ev.Latest.IsZero() {
		s.latest.WithLabelValues(ev.Series).Set(float64(ev.Latest.Unix()))
	}
	return nil
}

// RecordOptimizer sets the recommendation gauges. Failed appliances are
// removed so stale values are not scraped.
func (s *PromSink) RecordOptimizer(ev coremetrics.OptimizerEvent) error {
	if ev.ErrorKind != "" {
		s.cost.DeleteLabelValues(ev.Appliance)
		s.start.DeleteLabelValues(ev.Appliance)
		return nil
	}
	s.cost.WithLabelValues(ev.Appliance).Set(ev.Cost)
	s.start.WithLabelValues(ev.Appliance).Set(float64(ev.Start.Unix()))
	return nil
}

// RecordCache counts cache outcomes.
func (s *PromSink) RecordCache(ev coremetrics.CacheEvent) error {
	s.cacheEvents.WithLabelValues(ev.Series, ev.Outcome).Inc()
	return nil
}
