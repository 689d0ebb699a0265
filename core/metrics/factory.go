package metrics

import "github.com/kilianp07/octowatt/core/factory"

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// Combiner joins several sinks into one. infra/metrics installs it.
var Combiner func(sinks ...MetricsSink) MetricsSink

// RegisterMetricsSink adds a sink factory under name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewMetricsSink builds the configured sinks. Several sinks are combined with
// Combiner.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	sinks := make([]MetricsSink, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 1 || Combiner == nil {
		return sinks[0], nil
	}
	return Combiner(sinks...), nil
}
