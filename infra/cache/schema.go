package cache

import (
	"time"

	"github.com/kilianp07/octowatt/core/model"
)

// File names of the persisted series.
const (
	ElectricityFile = "electricity_consumption.parquet"
	GasFile         = "gas_consumption.parquet"
	TariffFile      = "agile_tariff.parquet"
)

// ConsumptionFile returns the file holding fuel's readings.
func ConsumptionFile(fuel model.Fuel) string {
	if fuel == model.FuelGas {
		return GasFile
	}
	return ElectricityFile
}

type sampleRow struct {
	Timestamp int64   `parquet:"name=timestamp, type=INT64, logicaltype=TIMESTAMP, logicaltype.isadjustedtoutc=true, logicaltype.unit=NANOS"`
	Value     float64 `parquet:"name=value, type=DOUBLE"`
}

type tariffRow struct {
	ValidFrom int64   `parquet:"name=valid_from, type=INT64, logicaltype=TIMESTAMP, logicaltype.isadjustedtoutc=true, logicaltype.unit=NANOS"`
	ValidTo   *int64  `parquet:"name=valid_to, type=INT64, logicaltype=TIMESTAMP, logicaltype.isadjustedtoutc=true, logicaltype.unit=NANOS, repetitiontype=OPTIONAL"`
	UnitPrice float64 `parquet:"name=unit_price, type=DOUBLE"`
}

var (
	sampleColumns = []string{"timestamp", "value"}
	tariffColumns = []string{"valid_from", "valid_to", "unit_price"}
)

func toSampleRows(s []model.Sample) []sampleRow {
	rows := make([]sampleRow, len(s))
	for i, smp := range s {
		rows[i] = sampleRow{Timestamp: smp.Timestamp.UnixNano(), Value: smp.Value}
	}
	return rows
}

func fromSampleRows(rows []sampleRow) []model.Sample {
	out := make([]model.Sample, len(rows))
	for i, r := range rows {
		out[i] = model.Sample{Timestamp: time.Unix(0, r.Timestamp).UTC(), Value: r.Value}
	}
	return out
}

func toTariffRows(s []model.TariffRate) []tariffRow {
	rows := make([]tariffRow, len(s))
	for i, r := range s {
		rows[i] = tariffRow{ValidFrom: r.ValidFrom.UnixNano(), UnitPrice: r.UnitPrice}
		if !r.ValidTo.IsZero() {
			to := r.ValidTo.UnixNano()
			rows[i].ValidTo = &to
		}
	}
	return rows
}

func fromTariffRows(rows []tariffRow) []model.TariffRate {
	out := make([]model.TariffRate, len(rows))
	for i, r := range rows {
		out[i] = model.TariffRate{ValidFrom: time.Unix(0, r.ValidFrom).UTC(), UnitPrice: r.UnitPrice}
		if r.ValidTo != nil {
			out[i].ValidTo = time.Unix(0, *r.ValidTo).UTC()
		}
	}
	return out
}
