package mqtt

import (
	"sync"
	"time"
)

// Recommendation is the payload published for one appliance.
type Recommendation struct {
	Appliance string     `json:"appliance"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Cost      *float64   `json:"cost,omitempty"`
	Error     string     `json:"error,omitempty"`
	Kind      string     `json:"kind,omitempty"`
}

// SeriesStatus is the payload published for one series.
type SeriesStatus struct {
	Series  string    `json:"series"`
	Latest  time.Time `json:"latest"`
	Missing int       `json:"missing"`
	Records int       `json:"records"`
}

// Cycle groups everything published after one update cycle.
type Cycle struct {
	ID              string
	ComputedAt      time.Time
	Recommendations []Recommendation
	Series          []SeriesStatus
}

// Publisher sends cycle results to a broker.
type Publisher interface {
	PublishCycle(c Cycle) error
	Disconnect()
}

// NopPublisher discards everything.
type NopPublisher struct{}

func (NopPublisher) PublishCycle(Cycle) error { return nil }
func (NopPublisher) Disconnect()              {}

// MockPublisher records cycles for tests.
type MockPublisher struct {
	mu     sync.Mutex
	Cycles []Cycle
	Err    error
}

func (m *MockPublisher) PublishCycle(c Cycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Cycles = append(m.Cycles, c)
	return nil
}

func (m *MockPublisher) Disconnect() {}

// Published returns a copy of the recorded cycles.
func (m *MockPublisher) Published() []Cycle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Cycle(nil), m.Cycles...)
}
