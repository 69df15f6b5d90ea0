package consumption

import (
	"sort"
	"time"

	"github.com/mgazza/octopus-insights/pkg/timewindow"
)

// QueryFilter is the requested window for one presentation period. Build it
// with NewQueryFilter; the zero value is not usable.
type QueryFilter struct {
	Style          PresentationStyle
	Reference      time.Time
	RequestedStart time.Time
	RequestedEnd   time.Time

	loc *time.Location
}

// NewQueryFilter returns the period of style that contains reference, with
// boundaries computed in loc (nil means time.Local). RequestedEnd is inclusive.
func NewQueryFilter(style PresentationStyle, reference time.Time, loc *time.Location) QueryFilter {
	if loc == nil {
		loc = time.Local
	}
	f := QueryFilter{Style: style, Reference: reference, loc: loc}
	switch style {
	case DayHalfHourly:
		f.RequestedStart = timewindow.StartOfDay(reference, loc)
		f.RequestedEnd = timewindow.EndOfDay(reference, loc)
	case WeekSevenDays:
		f.RequestedStart = timewindow.StartOfWeek(reference, loc)
		f.RequestedEnd = timewindow.EndOfWeek(reference, loc)
	case MonthWeeks, MonthThirtyDays:
		f.RequestedStart = timewindow.StartOfMonth(reference, loc)
		f.RequestedEnd = timewindow.EndOfMonth(reference, loc)
	default:
		f.RequestedStart = timewindow.StartOfYear(reference, loc)
		f.RequestedEnd = timewindow.EndOfYear(reference, loc)
	}
	return f
}

// Location is the zone the boundaries were computed in.
func (f QueryFilter) Location() *time.Location {
	if f.loc == nil {
		return time.Local
	}
	return f.loc
}

// Next is the following period of the same style.
func (f QueryFilter) Next() QueryFilter {
	return NewQueryFilter(f.Style, f.shift(1), f.loc)
}

// Previous is the preceding period of the same style.
func (f QueryFilter) Previous() QueryFilter {
	return NewQueryFilter(f.Style, f.shift(-1), f.loc)
}

func (f QueryFilter) shift(n int) time.Time {
	loc := f.Location()
	switch f.Style {
	case DayHalfHourly:
		return timewindow.AddDays(f.RequestedStart, n, loc)
	case WeekSevenDays:
		return timewindow.AddWeeks(f.RequestedStart, n, loc)
	case MonthWeeks, MonthThirtyDays:
		return timewindow.AddMonths(f.RequestedStart, n, loc)
	default:
		return timewindow.AddYears(f.RequestedStart, n, loc)
	}
}

// CanNavigateForward reports whether the next period has started by now.
func (f QueryFilter) CanNavigateForward(now time.Time) bool {
	return !f.Next().RequestedStart.After(now)
}

// CanNavigateBackward reports whether the previous period ends at or after
// earliest, the first instant data exists for.
func (f QueryFilter) CanNavigateBackward(earliest time.Time) bool {
	return !f.Previous().RequestedEnd.Before(earliest)
}

// Contains reports whether t falls inside the requested window.
func (f QueryFilter) Contains(t time.Time) bool {
	return !t.Before(f.RequestedStart) && !t.After(f.RequestedEnd)
}

// bucketBounds returns the display bucket [start, end) that t falls in,
// clipped to the requested window.
func (f QueryFilter) bucketBounds(t time.Time) (time.Time, time.Time) {
	loc := f.Location()
	var start, end time.Time
	switch f.Style {
	case WeekSevenDays, MonthThirtyDays:
		start = timewindow.StartOfDay(t, loc)
		end = timewindow.AddDays(start, 1, loc)
	case MonthWeeks:
		start = timewindow.StartOfWeek(t, loc)
		end = timewindow.AddWeeks(start, 1, loc)
	default:
		start = timewindow.StartOfMonth(t, loc)
		end = timewindow.AddMonths(start, 1, loc)
	}
	if start.Before(f.RequestedStart) {
		start = f.RequestedStart
	}
	if windowEnd := f.RequestedEnd.Add(time.Nanosecond); end.After(windowEnd) {
		end = windowEnd
	}
	return start, end
}

// Filter returns the records starting inside the window, sorted by start.
func (f QueryFilter) Filter(records []RecordWithCost) []RecordWithCost {
	in := make([]RecordWithCost, 0, len(records))
	for _, r := range records {
		if f.Contains(r.IntervalStart) {
			in = append(in, r)
		}
	}
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].IntervalStart.Before(in[j].IntervalStart)
	})
	return in
}

// Group filters records to the window and buckets them for display.
// DayHalfHourly keeps records as they are; the other styles sum kWh per day,
// week or month. A bucket's costs are summed only when every member has one,
// otherwise they are nil. The result is sorted by start.
func (f QueryFilter) Group(records []RecordWithCost) []RecordWithCost {
	in := f.Filter(records)
	if f.Style == DayHalfHourly {
		return in
	}

	var out []RecordWithCost
	index := map[int64]int{}
	for _, r := range in {
		start, end := f.bucketBounds(r.IntervalStart)
		i, ok := index[start.UnixNano()]
		if !ok {
			out = append(out, RecordWithCost{
				Record:                     Record{IntervalStart: start, IntervalEnd: end},
				VatInclusiveCost:           new(float64),
				VatInclusiveStandingCharge: new(float64),
			})
			i = len(out) - 1
			index[start.UnixNano()] = i
		}
		b := &out[i]
		b.KWhConsumed += r.KWhConsumed
		b.VatInclusiveCost = addOptional(b.VatInclusiveCost, r.VatInclusiveCost)
		b.VatInclusiveStandingCharge = addOptional(b.VatInclusiveStandingCharge, r.VatInclusiveStandingCharge)
	}
	return out
}

// addOptional sums two optional amounts; nil on either side is sticky.
func addOptional(total, v *float64) *float64 {
	if total == nil || v == nil {
		return nil
	}
	sum := *total + *v
	return &sum
}
