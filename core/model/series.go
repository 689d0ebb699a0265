package model

import "time"

// SlotDuration is the settlement slot used by consumption and tariff data.
const SlotDuration = 30 * time.Minute

// Keyed is implemented by records stored in a time-ordered series. Key must be
// unique within a reconciled series.
type Keyed interface {
	Key() time.Time
}

// Sample is one metered reading, stamped with the start of its interval.
type Sample struct {
	Timestamp time.Time
	Value     float64 // kWh for electricity, m3 for gas
}

// Key returns the sample timestamp.
func (s Sample) Key() time.Time { return s.Timestamp }

// TariffRate is the unit price applicable over [ValidFrom, ValidTo).
type TariffRate struct {
	ValidFrom time.Time
	ValidTo   time.Time
	UnitPrice float64 // pence per kWh including VAT
}

// Key returns the start of validity.
func (r TariffRate) Key() time.Time { return r.ValidFrom }

// End returns ValidTo, or ValidFrom plus one slot when the remote left it open.
func (r TariffRate) End() time.Time {
	if r.ValidTo.IsZero() {
		return r.ValidFrom.Add(SlotDuration)
	}
	return r.ValidTo
}

// Bounds returns the first and last keys of an arbitrary, possibly unsorted,
// series. ok is false for an empty series.
func Bounds[T Keyed](series []T) (first, last time.Time, ok bool) {
	for i, s := range series {
		k := s.Key()
		if i == 0 || k.Before(first) {
			first = k
		}
		if i == 0 || k.After(last) {
			last = k
		}
	}
	return first, last, len(series) > 0
}
