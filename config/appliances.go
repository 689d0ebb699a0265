package config

import "github.com/kilianp07/octowatt/core/model"

// DefaultAppliances returns the built-in usage patterns, soonest slot first.
func DefaultAppliances() []model.Appliance {
	return []model.Appliance{
		{Name: "washing machine", Pattern: model.UsagePattern{1, 1, 0.2, 0.2, 0.2, 0.2, 0.2}},
		{Name: "gentle dishwasher", Pattern: model.UsagePattern{0.5, 0, 0.4}},
		{Name: "eco dishwasher", Pattern: model.UsagePattern{0.1, 0.15, 0.15, 0.15, 0.05, 0.05, 0.05, 0.05}},
		{Name: "intense dishwasher", Pattern: model.UsagePattern{0.4, 0.5, 0.1, 0.1, 0.1, 0.1, 0.05}},
	}
}
