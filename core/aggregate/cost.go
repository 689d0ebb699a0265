package aggregate

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/octowatt/core/model"
)

// GasTariff prices gas energy. Charges are in pence before VAT.
type GasTariff struct {
	StandingCharge float64 `json:"standing_charge"` // per day
	UnitRate       float64 `json:"unit_rate"`       // per kWh
	VAT            float64 `json:"vat"`             // fraction, 0.05 for 5%
	Days           int     `json:"days"`            // trailing period priced in each snapshot
}

// Enabled reports whether a unit rate is configured.
func (t GasTariff) Enabled() bool { return t.UnitRate > 0 }

// Cost is the price of the gas used over [From, To).
type Cost struct {
	From   time.Time
	To     time.Time
	Volume float64 // m3
	KWh    float64
	Pence  float64 // VAT included
}

// Cost prices the samples inside [from, to). The standing charge is applied
// for every day of the range, used or not.
func (t GasTariff) Cost(gas []model.Sample, from, to time.Time, conv GasConversion) Cost {
	var volumes []float64
	for _, smp := range gas {
		if !smp.Timestamp.Before(from) && smp.Timestamp.Before(to) {
			volumes = append(volumes, smp.Value)
		}
	}
	c := Cost{From: from, To: to, Volume: floats.Sum(volumes)}
	c.KWh = conv.KWh(c.Volume)
	days := to.Sub(from).Hours() / 24
	c.Pence = (days*t.StandingCharge + c.KWh*t.UnitRate) * (1 + t.VAT)
	return c
}
