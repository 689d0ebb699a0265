package model

import (
	"fmt"
	"strings"
)

// Fuel identifies the metered commodity.
type Fuel int

const (
	FuelElectric Fuel = iota
	FuelGas
)

// String returns the lower-case fuel name used in config, metrics and cache names.
func (f Fuel) String() string {
	switch f {
	case FuelElectric:
		return "electric"
	case FuelGas:
		return "gas"
	default:
		return "unknown"
	}
}

// ParseFuel converts "electric"/"electricity" or "gas" into a Fuel.
func ParseFuel(s string) (Fuel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "electric", "electricity":
		return FuelElectric, nil
	case "gas":
		return FuelGas, nil
	default:
		return 0, fmt.Errorf("unknown fuel: %s", s)
	}
}
