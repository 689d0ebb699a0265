package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/octowatt/core/model"
)

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestHeatingSeasons(t *testing.T) {
	got := HeatingSeasons(date(2022, 3, 15, 0), date(2023, 11, 2, 12))
	require.Len(t, got, 3)
	assert.Equal(t, "2021/22", got[0].Label)
	assert.Equal(t, date(2021, 10, 1, 0), got[0].From)
	assert.Equal(t, date(2022, 10, 1, 0), got[0].To)
	assert.Equal(t, "2022/23", got[1].Label)
	assert.Equal(t, "2023/24", got[2].Label)
	assert.Equal(t, date(2023, 10, 1, 0), got[2].From)
	assert.Equal(t, date(2023, 11, 2, 12), got[2].To)

	// 1 October opens a new season.
	got = HeatingSeasons(date(2023, 10, 1, 0), date(2023, 10, 2, 0))
	require.Len(t, got, 1)
	assert.Equal(t, "2023/24", got[0].Label)

	assert.Empty(t, HeatingSeasons(date(2023, 10, 2, 0), date(2023, 10, 1, 0)))
}

func TestSeasonContains(t *testing.T) {
	s := Season{From: date(2022, 10, 1, 0), To: date(2023, 10, 1, 0)}
	assert.True(t, s.Contains(date(2022, 10, 1, 0)))
	assert.False(t, s.Contains(date(2022, 9, 30, 23)))
	assert.False(t, s.Contains(date(2023, 10, 1, 0)))

	b := Baseline(date(2021, 1, 1, 0))
	assert.Equal(t, "before 2021-01-01", b.Label)
	assert.True(t, b.Contains(date(2015, 6, 1, 0)))
	assert.False(t, b.Contains(date(2021, 1, 1, 0)))
}

func TestSeasonalDistribution(t *testing.T) {
	conv := GasConversion{VolumeCorrection: 1, CalorificValue: 3.6}
	gas := []model.Sample{
		// 2022-09-30 23:00, last hour of 2021/22: 0.3 m3.
		{Timestamp: date(2022, 9, 30, 23), Value: 0.1},
		{Timestamp: date(2022, 9, 30, 23).Add(30 * time.Minute), Value: 0.2},
		// 2022-10-01 00:00: 0.1 m3, not above the threshold.
		{Timestamp: date(2022, 10, 1, 0), Value: 0.05},
		{Timestamp: date(2022, 10, 1, 0).Add(30 * time.Minute), Value: 0.05},
		// 2022-10-01 01:00 and 02:00 in 2022/23.
		{Timestamp: date(2022, 10, 1, 1), Value: 0.2},
		{Timestamp: date(2022, 10, 1, 2), Value: 0.5},
	}
	seasons := HeatingSeasons(date(2022, 1, 1, 0), date(2023, 10, 1, 0))
	require.Len(t, seasons, 2)

	got := SeasonalDistribution(gas, seasons, 0.1, conv)
	require.Len(t, got, 2)
	assert.Equal(t, "2021/22", got[0].Label)
	require.Len(t, got[0].Values, 1)
	assert.InDelta(t, 0.3, got[0].Values[0], 1e-9)

	assert.Equal(t, "2022/23", got[1].Label)
	require.Len(t, got[1].Values, 2)
	assert.InDelta(t, 0.5, got[1].Peak(), 1e-9)
	assert.InDelta(t, 0.2, got[1].Values[1], 1e-9)
	assert.InDelta(t, 0.7, got[1].Total(), 1e-9)
}

func TestSeasonalDistributionConvertsToKWh(t *testing.T) {
	gas := []model.Sample{{Timestamp: date(2020, 12, 1, 0), Value: 1}}
	got := SeasonalDistribution(gas, []Season{Baseline(date(2021, 1, 1, 0))}, 0.1, DefaultGasConversion)
	require.Len(t, got, 1)
	require.Len(t, got[0].Values, 1)
	assert.InDelta(t, 1.02264*39.1/3.6, got[0].Values[0], 1e-9)

	empty := SeasonalDistribution(nil, []Season{Baseline(date(2021, 1, 1, 0))}, 0.1, DefaultGasConversion)
	require.Len(t, empty, 1)
	assert.NotNil(t, empty[0].Values)
	assert.Zero(t, empty[0].Peak())
}

func TestGasCost(t *testing.T) {
	conv := GasConversion{VolumeCorrection: 1, CalorificValue: 3.6}
	tariff := GasTariff{StandingCharge: 20, UnitRate: 5, VAT: 0.05}
	from := date(2024, 1, 1, 0)
	gas := []model.Sample{
		{Timestamp: from.Add(-time.Hour), Value: 100},
		{Timestamp: from, Value: 2},
		{Timestamp: from.Add(36 * time.Hour), Value: 3},
		{Timestamp: from.AddDate(0, 0, 2), Value: 100},
	}
	c := tariff.Cost(gas, from, from.AddDate(0, 0, 2), conv)
	assert.InDelta(t, 5, c.Volume, 1e-9)
	assert.InDelta(t, 5, c.KWh, 1e-9)
	assert.InDelta(t, (2*20+5*5)*1.05, c.Pence, 1e-9)
	assert.True(t, tariff.Enabled())
	assert.False(t, GasTariff{}.Enabled())
}
