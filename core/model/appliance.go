package model

import "time"

// UsagePattern holds the fraction of energy drawn in each consecutive slot of
// an appliance run. Index 0 is the first slot of the run (soonest-first).
type UsagePattern []float64

// Duration returns the run length covered by the pattern.
func (p UsagePattern) Duration() time.Duration {
	return time.Duration(len(p)) * SlotDuration
}

// Energy returns the total weight of the pattern.
func (p UsagePattern) Energy() float64 {
	var sum float64
	for _, w := range p {
		sum += w
	}
	return sum
}

// Appliance pairs a display name with its usage pattern.
type Appliance struct {
	Name    string       `json:"name" yaml:"name"`
	Pattern UsagePattern `json:"pattern" yaml:"pattern"`
}
