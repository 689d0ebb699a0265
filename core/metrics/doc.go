// Package metrics defines the events emitted by an update cycle and the
// recorder interfaces sinks implement. Concrete sinks (Prometheus, InfluxDB)
// live in infra/metrics and register themselves with RegisterMetricsSink.
package metrics
