package metrics

import "github.com/kilianp07/octowatt/core/factory"

// Config lists the sinks to build. An empty list yields a NopSink.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// PrometheusAddr exposes /metrics on a dedicated listener when set; the
	// API router serves it regardless.
	PrometheusAddr string `json:"prometheus_addr" yaml:"prometheus_addr"`
}
