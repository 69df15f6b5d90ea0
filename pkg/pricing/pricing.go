// Package pricing assigns a VAT-inclusive cost and standing charge share to
// each consumption interval.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/mgazza/octopus-insights/pkg/consumption"
	"github.com/mgazza/octopus-insights/pkg/rates"
	"github.com/mgazza/octopus-insights/pkg/tariff"
)

var hoursPerDay = decimal.NewFromInt(24)

// Apply prices records in pence. The unit rate for an interval is the
// published rate valid at its start, falling back to the tariff's own rate
// structure. The standing charge share is the daily charge pro rata to the
// interval length. Either figure is nil when it cannot be resolved. t may be nil.
func Apply(records []consumption.Record, unitRates, standingCharges []rates.Rate, t *tariff.Tariff) []consumption.RecordWithCost {
	out := make([]consumption.RecordWithCost, 0, len(records))
	for _, r := range records {
		priced := consumption.RecordWithCost{Record: r}
		if rate, ok := unitRate(r, unitRates, t); ok {
			c := decimal.NewFromFloat(r.KWhConsumed).Mul(decimal.NewFromFloat(rate)).InexactFloat64()
			priced.VatInclusiveCost = &c
		}
		if daily, ok := standingCharge(r, standingCharges, t); ok {
			share := standingShare(r, daily)
			priced.VatInclusiveStandingCharge = &share
		}
		out = append(out, priced)
	}
	return out
}

func unitRate(r consumption.Record, unitRates []rates.Rate, t *tariff.Tariff) (float64, bool) {
	start := r.IntervalStart
	if found := rates.FindForTime(start, unitRates); found != nil {
		return found.ValueIncVat, true
	}
	if t == nil {
		return 0, false
	}
	return t.ResolveUnitRate(&start)
}

func standingCharge(r consumption.Record, standingCharges []rates.Rate, t *tariff.Tariff) (float64, bool) {
	if found := rates.FindForTime(r.IntervalStart, standingCharges); found != nil {
		return found.ValueIncVat, true
	}
	if t == nil {
		return 0, false
	}
	return t.VatInclusiveStandingCharge, true
}

func standingShare(r consumption.Record, daily float64) float64 {
	hours := r.IntervalEnd.Sub(r.IntervalStart).Hours()
	if hours < 0 {
		hours = 0
	}
	return decimal.NewFromFloat(daily).Mul(decimal.NewFromFloat(hours)).Div(hoursPerDay).InexactFloat64()
}
