// Package rates models priced validity windows published for a tariff and
// decides whether a set of them covers a requested period.
package rates

import (
	"sort"
	"time"
)

// Kind identifies what a Rate prices.
type Kind string

const (
	KindStandingCharge   Kind = "standing-charges"
	KindStandardUnitRate Kind = "standard-unit-rates"
	KindDayUnitRate      Kind = "day-unit-rates"
	KindNightUnitRate    Kind = "night-unit-rates"
	KindOffPeakRate      Kind = "off-peak-rates"
)

// Payment methods as reported by the supplier. An empty method applies to all.
const (
	PaymentDirectDebit    = "DIRECT_DEBIT"
	PaymentNonDirectDebit = "NON_DIRECT_DEBIT"
)

// Rate is a price in pence (per kWh, or per day for standing charges) valid over
// [ValidFrom, ValidTo). A nil ValidFrom reaches back to the distant past and a
// nil ValidTo is open-ended.
type Rate struct {
	TariffCode    string
	Kind          Kind
	PaymentMethod string
	ValueExcVat   float64
	ValueIncVat   float64
	ValidFrom     *time.Time
	ValidTo       *time.Time
}

// Contains reports whether t falls inside the rate's validity window.
func (r Rate) Contains(t time.Time) bool {
	startBefore := r.ValidFrom == nil || !t.Before(*r.ValidFrom)
	endAfter := r.ValidTo == nil || t.Before(*r.ValidTo)
	return startBefore && endAfter
}

// FindForTime returns the first rate valid at t, or nil.
func FindForTime(t time.Time, rates []Rate) *Rate {
	for i := range rates {
		if rates[i].Contains(t) {
			return &rates[i]
		}
	}
	return nil
}

// Select returns the rates of the given kind. An empty paymentMethod matches
// every method; otherwise rates without a method are kept as well.
func Select(rates []Rate, kind Kind, paymentMethod string) []Rate {
	var out []Rate
	for _, r := range rates {
		if r.Kind != kind {
			continue
		}
		if paymentMethod != "" && r.PaymentMethod != "" && r.PaymentMethod != paymentMethod {
			continue
		}
		out = append(out, r)
	}
	return out
}

// CoversRange reports whether rates, taken together, span [validFrom, validTo]
// without a gap. Records may touch or overlap; any strict gap, an empty input,
// or a tail that ends before validTo returns false.
func CoversRange(rates []Rate, validFrom, validTo time.Time) bool {
	if len(rates) == 0 {
		return false
	}

	sorted := make([]Rate, len(rates))
	copy(sorted, rates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return startsBefore(sorted[i].ValidFrom, sorted[j].ValidFrom)
	})

	first := sorted[0]
	if first.ValidFrom != nil && first.ValidFrom.After(validFrom) {
		return false
	}

	// nil watermark means "distant past".
	watermark := first.ValidFrom
	for _, r := range sorted {
		if r.ValidFrom != nil && (watermark == nil || r.ValidFrom.After(*watermark)) {
			return false
		}
		if r.ValidTo == nil {
			return true
		}
		if watermark == nil || r.ValidTo.After(*watermark) {
			to := *r.ValidTo
			watermark = &to
		}
	}

	return watermark != nil && !watermark.Before(validTo)
}

func startsBefore(a, b *time.Time) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return a.Before(*b)
	}
}
