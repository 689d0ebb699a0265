package metrics

import "time"

// SyncEvent summarises one synchronization of a series.
type SyncEvent struct {
	Series        string
	Seeded        bool
	Pages         int
	BackwardPages int
	ForwardPages  int
	Added         int
	Records       int
	Duration      time.Duration
	// ErrorKind is empty on success.
	ErrorKind string
	Time      time.Time
}

// MetricsSink records synchronization outcomes. It is the one method every
// sink implements; the recorders below are optional.
type MetricsSink interface {
	RecordSync(ev SyncEvent) error
}

// GapEvent is the gap report of a series after an update cycle.
type GapEvent struct {
	Series  string
	Missing int
	Latest  time.Time
	Time    time.Time
}

// GapRecorder records gap reports.
type GapRecorder interface {
	RecordGaps(ev GapEvent) error
}

// OptimizerEvent is the recommendation computed for one appliance.
type OptimizerEvent struct {
	Appliance string
	Start     time.Time
	Cost      float64
	ErrorKind string
	Time      time.Time
}

// OptimizerRecorder records start-time recommendations.
type OptimizerRecorder interface {
	RecordOptimizer(ev OptimizerEvent) error
}

// CacheEvent records how a persisted series was obtained at startup.
type CacheEvent struct {
	Series string
	// Outcome is one of hit, not_found, corrupt, schema_mismatch or saved.
	Outcome string
	Records int
	Time    time.Time
}

// CacheRecorder records cache load and save outcomes.
type CacheRecorder interface {
	RecordCache(ev CacheEvent) error
}

// NopSink implements every recorder and discards events.
type NopSink struct{}

func (NopSink) RecordSync(SyncEvent) error           { return nil }
func (NopSink) RecordGaps(GapEvent) error            { return nil }
func (NopSink) RecordOptimizer(OptimizerEvent) error { return nil }
func (NopSink) RecordCache(CacheEvent) error         { return nil }
