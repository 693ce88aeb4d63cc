package energy

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	tariff "energy-billing/internal/tariff/domain"
	telemetry "energy-billing/internal/telemetry/domain"
)

// Input is the eagerly resolved data for one reconciliation.
type Input struct {
	Location   *time.Location
	Industrial bool
	Profile    tariff.Profile
	Readings   []telemetry.MeterReading
	Forecasts  []telemetry.ForecastPoint
}

// Aggregate builds the hour, day, month and summary reconciliation tree.
// Only hours with at least one reading produce a bucket.
func Aggregate(in Input) (Summary, error) {
	if in.Location == nil {
		return Summary{}, ErrNilLocation
	}

	actual := make(map[int64]*hourSum)
	for _, r := range in.Readings {
		if r.Usage.IsNegative() {
			return Summary{}, fmt.Errorf("%w: reading %s at %s", ErrNegativeQuantity, r.DeviceID, r.Timestamp.Format(time.RFC3339))
		}
		start := HourStart(r.Timestamp, in.Location)
		key := start.UnixNano()
		sum, ok := actual[key]
		if !ok {
			sum = &hourSum{start: start}
			actual[key] = sum
		}
		sum.value = sum.value.Add(r.Usage)
	}

	forecast := make(map[int64]decimal.Decimal)
	for _, p := range in.Forecasts {
		if p.Forecast.IsNegative() {
			return Summary{}, fmt.Errorf("%w: forecast at %s", ErrNegativeQuantity, p.Timestamp.Format(time.RFC3339))
		}
		key := HourStart(p.Timestamp, in.Location).UnixNano()
		forecast[key] = forecast[key].Add(p.Forecast)
	}

	rates := in.Profile.Rates(in.Industrial)
	hours := make([]HourBucket, 0, len(actual))
	for key, sum := range actual {
		rate := rates[sum.start.Hour()]
		forecastUsage := forecast[key]
		hourKey, _ := NewTimeKey(GranularityHour, sum.start)
		hours = append(hours, HourBucket{
			PeriodStart: sum.start,
			Key:         hourKey,
			Price:       rate.Price,
			Band:        rate.Band,
			Totals: NewTotals(
				sum.value,
				forecastUsage,
				sum.value.Mul(rate.Price),
				forecastUsage.Mul(rate.Price),
			),
		})
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].PeriodStart.Before(hours[j].PeriodStart) })

	days := rollupDays(hours, in.Location)
	months := rollupMonths(days, in.Location)

	var acc totalsAccumulator
	for _, m := range months {
		acc.add(m.Totals)
	}
	return Summary{Totals: acc.totals(), Months: months}, nil
}

type hourSum struct {
	start time.Time
	value decimal.Decimal
}

// HourStart truncates t to the start of its wall-clock hour in loc. The result
// is an instant, so the two 01:00 hours of a fall-back day stay distinct. In
// zones with a half-hour transition (Australia/Lord_Howe) the hour around the
// transition starts at the transition itself, so its start reads :30.
func HourStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	offset := time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	start := local.Add(-offset)
	if zoneStart, _ := local.ZoneBounds(); !zoneStart.IsZero() && start.Before(zoneStart) {
		start = zoneStart
	}
	return start
}

// hours must be sorted ascending.
func rollupDays(hours []HourBucket, loc *time.Location) []DayBucket {
	var days []DayBucket
	var acc totalsAccumulator
	flush := func() {
		if len(days) == 0 {
			return
		}
		days[len(days)-1].Totals = acc.totals()
		acc = totalsAccumulator{}
	}
	for _, h := range hours {
		dayStart := DateOf(h.PeriodStart.In(loc)).Midnight(loc)
		if len(days) == 0 || !days[len(days)-1].PeriodStart.Equal(dayStart) {
			flush()
			key, _ := NewTimeKey(GranularityDay, dayStart)
			days = append(days, DayBucket{PeriodStart: dayStart, Key: key})
		}
		last := &days[len(days)-1]
		last.Hours = append(last.Hours, h)
		acc.add(h.Totals)
	}
	flush()
	return days
}

// days must be sorted ascending.
func rollupMonths(days []DayBucket, loc *time.Location) []MonthBucket {
	var months []MonthBucket
	var acc totalsAccumulator
	flush := func() {
		if len(months) == 0 {
			return
		}
		months[len(months)-1].Totals = acc.totals()
		acc = totalsAccumulator{}
	}
	for _, d := range days {
		monthStart := DateOf(d.PeriodStart.In(loc)).FirstOfMonth().Midnight(loc)
		if len(months) == 0 || !months[len(months)-1].PeriodStart.Equal(monthStart) {
			flush()
			key, _ := NewTimeKey(GranularityMonth, monthStart)
			months = append(months, MonthBucket{PeriodStart: monthStart, Key: key})
		}
		last := &months[len(months)-1]
		last.Days = append(last.Days, d)
		acc.add(d.Totals)
	}
	flush()
	return months
}
