package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/octowatt/core/factory"
	coremetrics "github.com/kilianp07/octowatt/core/metrics"
)

// init registers the built-in sinks and the combiner used for several sinks.
func init() {
	coremetrics.Combiner = func(sinks ...coremetrics.MetricsSink) coremetrics.MetricsSink {
		return NewMultiSink(sinks...)
	}

	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}
