package aggregate

import "github.com/kilianp07/octowatt/core/model"

// GasConversion turns metered gas volume (m3) into energy (kWh).
type GasConversion struct {
	VolumeCorrection float64 `json:"volume_correction"`
	CalorificValue   float64 `json:"calorific_value"` // MJ/m3
}

// DefaultGasConversion uses the standard UK correction factor and a typical
// calorific value.
var DefaultGasConversion = GasConversion{VolumeCorrection: 1.02264, CalorificValue: 39.1}

// SetDefaults fills unset factors.
func (g *GasConversion) SetDefaults() {
	if g.VolumeCorrection == 0 {
		g.VolumeCorrection = DefaultGasConversion.VolumeCorrection
	}
	if g.CalorificValue == 0 {
		g.CalorificValue = DefaultGasConversion.CalorificValue
	}
}

// Factor is the kWh per m3.
func (g GasConversion) Factor() float64 {
	return g.VolumeCorrection * g.CalorificValue / 3.6
}

// KWh converts a single volume.
func (g GasConversion) KWh(volume float64) float64 {
	return volume * g.Factor()
}

// Series converts every sample, leaving timestamps untouched.
func (g GasConversion) Series(s []model.Sample) []model.Sample {
	out := make([]model.Sample, len(s))
	for i, smp := range s {
		out[i] = model.Sample{Timestamp: smp.Timestamp, Value: g.KWh(smp.Value)}
	}
	return out
}

// GasKWh converts volume with DefaultGasConversion.
func GasKWh(volume float64) float64 { return DefaultGasConversion.KWh(volume) }
