package energy

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tariff "energy-billing/internal/tariff/domain"
	telemetry "energy-billing/internal/telemetry/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testProfile() tariff.Profile {
	return tariff.Profile{
		CountryID:         "KR",
		IndustrialRate:    dec("0.5"),
		CommercialRate:    dec("0.6319"),
		PeakMultiplier:    dec("1.5"),
		MidPeakMultiplier: dec("1.2"),
		OffPeakMultiplier: dec("0.8"),
		PeakHours:         []int{17, 18, 19},
		MidPeakHours:      []int{9, 10, 11},
		OffPeakHours:      []int{0, 1, 2, 3},
	}
}

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func reading(device string, at time.Time, usage string) telemetry.MeterReading {
	return telemetry.MeterReading{DeviceID: device, CompanyID: "c1", Timestamp: at.UTC(), Usage: dec(usage)}
}

func forecastAt(at time.Time, value string) telemetry.ForecastPoint {
	return telemetry.ForecastPoint{CompanyID: "c1", Timestamp: at.UTC(), Forecast: dec(value)}
}

func TestAggregatePeakScenario(t *testing.T) {
	loc := mustLoc(t, "Asia/Seoul")
	summary, err := Aggregate(Input{
		Location: loc,
		Profile:  testProfile(),
		Readings: []telemetry.MeterReading{reading("d1", time.Date(2026, 3, 10, 18, 0, 0, 0, loc), "10")},
	})
	require.NoError(t, err)
	require.Len(t, summary.Months, 1)
	require.Len(t, summary.Months[0].Days, 1)
	require.Len(t, summary.Months[0].Days[0].Hours, 1)

	hour := summary.Months[0].Days[0].Hours[0]
	assert.True(t, hour.Usage.Equal(dec("10")))
	assert.Equal(t, "0.9479", hour.Price.String())
	assert.Equal(t, tariff.BandPeak, hour.Band)
	assert.True(t, hour.Cost.Equal(dec("9.479")))
	assert.True(t, hour.ForecastUsage.IsZero())
	assert.True(t, hour.DeviationRate.Equal(dec("100")))
	assert.True(t, hour.ForecastAccuracy.IsZero())
	assert.Equal(t, "2026-03-10T18:00+09:00", hour.Key.String())
	assert.Equal(t, "2026-03-10", summary.Months[0].Days[0].Key.String())
	assert.Equal(t, "2026-03", summary.Months[0].Key.String())
	assert.True(t, summary.Cost.Equal(dec("9.479")))
}

func TestAggregateBucketsByLocalHour(t *testing.T) {
	loc := mustLoc(t, "Asia/Seoul")
	base := time.Date(2026, 3, 10, 18, 0, 0, 0, loc)
	summary, err := Aggregate(Input{
		Location: loc,
		Profile:  testProfile(),
		Readings: []telemetry.MeterReading{
			reading("d1", base.Add(5*time.Minute), "1.5"),
			reading("d2", base.Add(59*time.Minute+59*time.Second), "2.5"),
			reading("d1", base.Add(time.Hour), "3"),
		},
		Forecasts: []telemetry.ForecastPoint{
			forecastAt(base, "3"),
			forecastAt(base.Add(30*time.Minute), "2"),
			// forecast-only hour
			forecastAt(base.Add(5*time.Hour), "7"),
		},
	})
	require.NoError(t, err)
	hours := summary.Months[0].Days[0].Hours
	require.Len(t, hours, 2)

	assert.True(t, hours[0].Usage.Equal(dec("4")))
	assert.True(t, hours[0].ForecastUsage.Equal(dec("5")))
	assert.True(t, hours[0].UsageDifference.Equal(dec("-1")))
	assert.True(t, hours[0].DeviationRate.Equal(dec("20")))
	assert.True(t, hours[0].ForecastAccuracy.Equal(dec("80")))
	assert.True(t, hours[0].ForecastCost.Equal(dec("5").Mul(dec("0.9479"))))

	assert.Equal(t, 19, hours[1].PeriodStart.Hour())
	assert.True(t, hours[1].ForecastUsage.IsZero())
	assert.True(t, summary.ForecastUsage.Equal(dec("5")))
}

func TestAggregateEmptyRange(t *testing.T) {
	summary, err := Aggregate(Input{Location: time.UTC, Profile: testProfile()})
	require.NoError(t, err)
	assert.Empty(t, summary.Months)
	assert.True(t, summary.Usage.IsZero())
	assert.True(t, summary.DeviationRate.IsZero())
	assert.True(t, summary.ForecastAccuracy.IsZero())
}

func TestAggregateRejectsNegative(t *testing.T) {
	_, err := Aggregate(Input{
		Location: time.UTC,
		Profile:  testProfile(),
		Readings: []telemetry.MeterReading{reading("d1", time.Now(), "-1")},
	})
	assert.ErrorIs(t, err, ErrNegativeQuantity)

	_, err = Aggregate(Input{Profile: testProfile()})
	assert.ErrorIs(t, err, ErrNilLocation)
}

func TestAggregateRollupIsExact(t *testing.T) {
	loc := mustLoc(t, "Europe/Berlin")
	rng := rand.New(rand.NewSource(7))
	start := time.Date(2026, 1, 28, 0, 0, 0, 0, loc)
	var readings []telemetry.MeterReading
	var forecasts []telemetry.ForecastPoint
	for i := 0; i < 24*40; i++ {
		at := start.Add(time.Duration(i) * time.Hour)
		if rng.Intn(5) == 0 {
			continue
		}
		readings = append(readings, reading("d1", at, decimal.New(int64(rng.Intn(100000)), -3).String()))
		if rng.Intn(3) != 0 {
			forecasts = append(forecasts, forecastAt(at.Add(10*time.Minute), decimal.New(int64(rng.Intn(100000)), -3).String()))
		}
	}

	summary, err := Aggregate(Input{Location: loc, Profile: testProfile(), Readings: readings, Forecasts: forecasts})
	require.NoError(t, err)
	require.Len(t, summary.Months, 3)

	var monthUsage, monthCost decimal.Decimal
	for _, m := range summary.Months {
		var dayUsage, dayCost decimal.Decimal
		for _, d := range m.Days {
			var hourUsage, hourCost, hourForecast decimal.Decimal
			for i, h := range d.Hours {
				if i > 0 {
					assert.True(t, d.Hours[i-1].PeriodStart.Before(h.PeriodStart))
				}
				hourUsage = hourUsage.Add(h.Usage)
				hourCost = hourCost.Add(h.Cost)
				hourForecast = hourForecast.Add(h.ForecastUsage)
				assertRatioBounds(t, h.Totals)
			}
			assert.True(t, d.Usage.Equal(hourUsage))
			assert.True(t, d.Cost.Equal(hourCost))
			assert.True(t, d.ForecastUsage.Equal(hourForecast))
			assertRatioBounds(t, d.Totals)
			dayUsage = dayUsage.Add(d.Usage)
			dayCost = dayCost.Add(d.Cost)
		}
		assert.True(t, m.Usage.Equal(dayUsage))
		assert.True(t, m.Cost.Equal(dayCost))
		monthUsage = monthUsage.Add(m.Usage)
		monthCost = monthCost.Add(m.Cost)
	}
	assert.True(t, summary.Usage.Equal(monthUsage))
	assert.True(t, summary.Cost.Equal(monthCost))
	assertRatioBounds(t, summary.Totals)
}

func TestAggregateRatiosRecomputedFromTotals(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, loc)
	summary, err := Aggregate(Input{
		Location: loc,
		Profile:  testProfile(),
		Readings: []telemetry.MeterReading{
			reading("d1", day.Add(1*time.Hour), "10"),
			reading("d1", day.Add(2*time.Hour), "30"),
		},
		Forecasts: []telemetry.ForecastPoint{
			forecastAt(day.Add(1*time.Hour), "20"),
			forecastAt(day.Add(2*time.Hour), "30"),
		},
	})
	require.NoError(t, err)
	hours := summary.Months[0].Days[0].Hours
	assert.True(t, hours[0].DeviationRate.Equal(dec("50")))
	assert.True(t, hours[1].DeviationRate.IsZero())
	// |40-50|/50 = 20%, not the 25% mean of hourly rates.
	assert.True(t, summary.DeviationRate.Equal(dec("20")))
	assert.True(t, summary.ForecastAccuracy.Equal(dec("80")))
}

func TestAggregateDaylightSavingDays(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	cases := []struct {
		name  string
		day   Date
		hours int
	}{
		{"spring forward", Date{Year: 2026, Month: time.March, Day: 8}, 23},
		{"fall back", Date{Year: 2026, Month: time.November, Day: 1}, 25},
		{"regular", Date{Year: 2026, Month: time.June, Day: 1}, 24},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from := tc.day.Midnight(loc)
			to := tc.day.AddDays(1).Midnight(loc)
			var readings []telemetry.MeterReading
			for at := from; at.Before(to); at = at.Add(time.Hour) {
				readings = append(readings, reading("d1", at.Add(15*time.Minute), "1.25"))
			}
			summary, err := Aggregate(Input{Location: loc, Profile: testProfile(), Readings: readings})
			require.NoError(t, err)
			require.Len(t, summary.Months, 1)
			require.Len(t, summary.Months[0].Days, 1)

			day := summary.Months[0].Days[0]
			assert.Len(t, day.Hours, tc.hours)
			assert.Equal(t, tc.hours, summary.HourCount())

			var sum decimal.Decimal
			for _, h := range day.Hours {
				sum = sum.Add(h.Usage)
			}
			assert.True(t, day.Usage.Equal(sum))
			assert.True(t, day.Usage.Equal(dec("1.25").Mul(decimal.NewFromInt(int64(tc.hours)))))
		})
	}
}

func TestHourStartHalfHourTransitions(t *testing.T) {
	loc := mustLoc(t, "Australia/Lord_Howe")
	utc := func(day, hour, minute int) time.Time {
		return time.Date(2024, time.April, day, hour, minute, 0, 0, time.UTC)
	}
	cases := []struct {
		name     string
		at, want time.Time
		hour     int
	}{
		{"regular half-hour offset", utc(6, 16, 10), utc(6, 15, 30), 2},
		{"fall back first 01:00", utc(6, 14, 45), utc(6, 14, 0), 1},
		{"fall back repeated 01:30", utc(6, 15, 15), utc(6, 15, 0), 1},
		{"spring forward short 02:00", time.Date(2024, time.October, 5, 15, 45, 0, 0, time.UTC),
			time.Date(2024, time.October, 5, 15, 30, 0, 0, time.UTC), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := HourStart(tc.at, loc)
			assert.True(t, got.Equal(tc.want), "got %s", got.UTC())
			assert.Equal(t, tc.hour, got.In(loc).Hour())
			assert.False(t, got.After(tc.at))
		})
	}

	ny := mustLoc(t, "America/New_York")
	repeated := time.Date(2026, time.November, 1, 6, 30, 0, 0, time.UTC)
	assert.True(t, HourStart(repeated, ny).Equal(time.Date(2026, time.November, 1, 6, 0, 0, 0, time.UTC)))
}

func TestAggregateIsDeterministic(t *testing.T) {
	loc := mustLoc(t, "Asia/Seoul")
	base := time.Date(2026, 2, 27, 22, 0, 0, 0, loc)
	in := Input{Location: loc, Profile: testProfile()}
	for i := 0; i < 72; i++ {
		in.Readings = append(in.Readings, reading("d1", base.Add(time.Duration(i)*time.Hour), "2"))
		in.Forecasts = append(in.Forecasts, forecastAt(base.Add(time.Duration(i)*time.Hour), "1.5"))
	}
	first, err := Aggregate(in)
	require.NoError(t, err)
	second, err := Aggregate(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first.Months, 2)
	assert.Equal(t, "2026-02", first.Months[0].Key.String())
	assert.Equal(t, "2026-03", first.Months[1].Key.String())
}

func assertRatioBounds(t *testing.T, totals Totals) {
	t.Helper()
	hundred := decimal.NewFromInt(100)
	assert.False(t, totals.DeviationRate.IsNegative())
	assert.False(t, totals.ForecastAccuracy.IsNegative())
	assert.True(t, totals.DeviationRate.LessThanOrEqual(hundred))
	assert.True(t, totals.ForecastAccuracy.LessThanOrEqual(hundred))
	if !totals.Usage.IsZero() && !totals.ForecastUsage.IsZero() {
		assert.True(t, totals.DeviationRate.Add(totals.ForecastAccuracy).Equal(hundred))
	}
}
