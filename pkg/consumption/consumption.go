// Package consumption holds metered electricity readings and the query
// filter that selects and buckets them for one presentation period.
package consumption

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record is kWh consumed over [IntervalStart, IntervalEnd). Half-hourly
// readings and coarser buckets share this shape.
type Record struct {
	IntervalStart time.Time `json:"interval_start" yaml:"interval_start"`
	IntervalEnd   time.Time `json:"interval_end" yaml:"interval_end"`
	KWhConsumed   float64   `json:"kwh_consumed" yaml:"kwh_consumed"`
}

// RecordWithCost pairs a reading with its VAT-inclusive cost and standing
// charge share, both in pence. nil means billing data was not resolved.
type RecordWithCost struct {
	Record                     `yaml:",inline"`
	VatInclusiveCost           *float64 `json:"vat_inclusive_cost,omitempty" yaml:"vat_inclusive_cost,omitempty"`
	VatInclusiveStandingCharge *float64 `json:"vat_inclusive_standing_charge,omitempty" yaml:"vat_inclusive_standing_charge,omitempty"`
}

// ErrUnknownStyle is returned by ParseStyle.
var ErrUnknownStyle = errors.New("unknown presentation style")

// PresentationStyle selects the period length and bucket size of a query.
type PresentationStyle int

const (
	// DayHalfHourly is one local day of half-hourly readings.
	DayHalfHourly PresentationStyle = iota
	// WeekSevenDays is one Sunday-based week bucketed by day.
	WeekSevenDays
	// MonthWeeks is one calendar month bucketed by week.
	MonthWeeks
	// MonthThirtyDays is one calendar month bucketed by day.
	MonthThirtyDays
	// YearTwelveMonths is one calendar year bucketed by month.
	YearTwelveMonths
)

var styleNames = map[PresentationStyle]string{
	DayHalfHourly:    "day-half-hourly",
	WeekSevenDays:    "week-seven-days",
	MonthWeeks:       "month-weeks",
	MonthThirtyDays:  "month-thirty-days",
	YearTwelveMonths: "year-twelve-months",
}

func (s PresentationStyle) String() string {
	if name, ok := styleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PresentationStyle(%d)", int(s))
}

// ParseStyle accepts the names produced by String, case-insensitively.
func ParseStyle(s string) (PresentationStyle, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for style, name := range styleNames {
		if name == s {
			return style, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStyle, s)
}
