// Package timewindow computes calendar-aligned period boundaries.
//
// Every boundary is found by converting the instant to wall-clock time in the
// reference location, moving in calendar terms and converting back. Durations
// are never added to instants directly, so days that are 23 or 25 hours long
// around daylight-saving transitions still produce local midnight boundaries.
package timewindow

import "time"

// Weeks start on Sunday.
const FirstDayOfWeek = time.Sunday

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	loc = location(loc)
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last nanosecond (23:59:59.999999999 local) of the day containing t.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	loc = location(loc)
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 23, 59, 59, 999999999, loc)
}

// StartOfWeek returns local midnight of the Sunday on or before t.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	loc = location(loc)
	l := t.In(loc)
	offset := (int(l.Weekday()) - int(FirstDayOfWeek) + 7) % 7
	return time.Date(l.Year(), l.Month(), l.Day()-offset, 0, 0, 0, 0, loc)
}

// EndOfWeek returns the last nanosecond of the Saturday closing t's week.
func EndOfWeek(t time.Time, loc *time.Location) time.Time {
	loc = location(loc)
	start := StartOfWeek(t, loc)
	return time.Date(start.Year(), start.Month(), start.Day()+6, 23, 59, 59, 999999999, loc)
}

// StartOfMonth returns local midnight on the first day of t's month.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	loc = location(loc)
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, loc)
}

// EndOfMonth is the start of the following month minus one nanosecond.
func EndOfMonth(t time.Time, loc *time.Location) time.Time {
	loc = location(loc)
	l := t.In(loc)
	return time.Date(l.Year(), l.Month()+1, 1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
}

// StartOfQuarter returns local midnight on the first day of t's calendar quarter.
func StartOfQuarter(t time.Time, loc *time.Location) time.Time {
	loc = location(loc)
	l := t.In(loc)
	first := time.Month((int(l.Month())-1)/3*3 + 1)
	return time.Date(l.Year(), first, 1, 0, 0, 0, 0, loc)
}

// EndOfQuarter is the start of the following quarter minus one nanosecond.
func EndOfQuarter(t time.Time, loc *time.Location) time.Time {
	loc = location(loc)
	start := StartOfQuarter(t, loc)
	return time.Date(start.Year(), start.Month()+3, 1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
}

// StartOfYear returns local midnight on 1 January of t's year.
func StartOfYear(t time.Time, loc *time.Location) time.Time {
	loc = location(loc)
	l := t.In(loc)
	return time.Date(l.Year(), time.January, 1, 0, 0, 0, 0, loc)
}

// EndOfYear is 1 January of the following year minus one nanosecond.
func EndOfYear(t time.Time, loc *time.Location) time.Time {
	loc = location(loc)
	l := t.In(loc)
	return time.Date(l.Year()+1, time.January, 1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
}

// AddDays moves t by n calendar days keeping its local wall-clock time.
func AddDays(t time.Time, n int, loc *time.Location) time.Time {
	loc = location(loc)
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day()+n, l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), loc)
}

// AddWeeks moves t by n calendar weeks keeping its local wall-clock time.
func AddWeeks(t time.Time, n int, loc *time.Location) time.Time {
	return AddDays(t, 7*n, loc)
}

// AddMonths moves t by n calendar months. The day of month is clamped to the
// length of the target month, so 31 January plus one month is the end of February.
func AddMonths(t time.Time, n int, loc *time.Location) time.Time {
	loc = location(loc)
	l := t.In(loc)
	first := time.Date(l.Year(), l.Month()+time.Month(n), 1, 0, 0, 0, 0, loc)
	day := l.Day()
	if last := daysIn(first.Year(), first.Month(), loc); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), loc)
}

// AddYears moves t by n calendar years, clamping 29 February to 28 February.
func AddYears(t time.Time, n int, loc *time.Location) time.Time {
	return AddMonths(t, 12*n, loc)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
