// Package insights reduces a priced consumption series into the summary
// shown for a period: totals, daily averages and annual projections.
package insights

import (
	"math"
	"time"

	"github.com/mgazza/octopus-insights/pkg/consumption"
	"github.com/mgazza/octopus-insights/pkg/rounding"
	"github.com/mgazza/octopus-insights/pkg/tariff"
)

const daysPerYear = 365

// Insights is a derived summary computed per query. Consumption figures are
// in kWh rounded half to even; money figures are in pounds rounded to pence.
type Insights struct {
	ConsumptionAggregateRounded float64 `json:"consumption_aggregate_rounded" yaml:"consumption_aggregate_rounded"`
	// ConsumptionTimeSpan is the number of days covered, at least 1.
	ConsumptionTimeSpan    int     `json:"consumption_time_span" yaml:"consumption_time_span"`
	ConsumptionChargeRatio float64 `json:"consumption_charge_ratio" yaml:"consumption_charge_ratio"`
	CostWithCharges        float64 `json:"cost_with_charges" yaml:"cost_with_charges"`
	// IsTrueCost is false when any interval had to be estimated from the tariff.
	IsTrueCost                  bool    `json:"is_true_cost" yaml:"is_true_cost"`
	ConsumptionDailyAverage     float64 `json:"consumption_daily_average" yaml:"consumption_daily_average"`
	CostDailyAverage            float64 `json:"cost_daily_average" yaml:"cost_daily_average"`
	ConsumptionAnnualProjection float64 `json:"consumption_annual_projection" yaml:"consumption_annual_projection"`
	CostAnnualProjection        float64 `json:"cost_annual_projection" yaml:"cost_annual_projection"`
}

// Generate returns nil when t is nil or records is empty.
//
// When every record carries a cost the consumption charge is their sum;
// otherwise it is estimated as total kWh times t.ResolveUnitRate(nil), which
// is zero for time-banded tariffs. Standing charge shares are summed when the
// span is longer than a day and none is missing, else the tariff's daily
// standing charge is applied per day. A zero total cost leaves the charge
// ratio as NaN or Inf.
func Generate(t *tariff.Tariff, records []consumption.RecordWithCost) *Insights {
	if t == nil || len(records) == 0 {
		return nil
	}

	var aggregated, costSum, standingSum float64
	trueCost, allShares := true, true
	earliest, latest := records[0].IntervalStart, records[0].IntervalEnd
	for _, r := range records {
		aggregated += r.KWhConsumed
		if r.VatInclusiveCost == nil {
			trueCost = false
		} else {
			costSum += *r.VatInclusiveCost
		}
		if r.VatInclusiveStandingCharge == nil {
			allShares = false
		} else {
			standingSum += *r.VatInclusiveStandingCharge
		}
		if r.IntervalStart.Before(earliest) {
			earliest = r.IntervalStart
		}
		if r.IntervalEnd.After(latest) {
			latest = r.IntervalEnd
		}
	}

	span := daySpan(earliest, latest)

	consumptionCharge := costSum
	if !trueCost {
		rate, _ := t.ResolveUnitRate(nil)
		consumptionCharge = aggregated * rate
	}

	standingCharge := t.VatInclusiveStandingCharge * float64(span)
	if span > 1 && allShares {
		standingCharge = standingSum
	}

	costWithCharges := (standingCharge + consumptionCharge) / 100
	consumptionDaily := rounding.ConsumptionToNearestEvenHundredth(aggregated / float64(span))
	costDaily := rounding.ToTwoDecimalPlaces(costWithCharges / float64(span))

	return &Insights{
		ConsumptionAggregateRounded: rounding.ConsumptionToNearestEvenHundredth(aggregated),
		ConsumptionTimeSpan:         span,
		ConsumptionChargeRatio:      rounding.ToTwoDecimalPlaces((consumptionCharge / 100) / costWithCharges),
		CostWithCharges:             rounding.ToTwoDecimalPlaces(costWithCharges),
		IsTrueCost:                  trueCost,
		ConsumptionDailyAverage:     consumptionDaily,
		CostDailyAverage:            costDaily,
		ConsumptionAnnualProjection: rounding.ConsumptionToNearestEvenHundredth(consumptionDaily * daysPerYear),
		CostAnnualProjection:        rounding.ToTwoDecimalPlaces(costDaily * daysPerYear),
	}
}

// daySpan is the elapsed time rounded up to whole days, never less than one.
func daySpan(from, to time.Time) int {
	days := int(math.Ceil(to.Sub(from).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}
