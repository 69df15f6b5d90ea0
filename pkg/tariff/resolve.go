package tariff

import (
	"time"
	_ "time/tzdata"
)

// The supplier publishes time-of-use bands in UK local time.
var london = mustLoadLocation("Europe/London")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// band is an inclusive [from, to] window of clock time.
type band struct {
	from, to time.Duration
}

func clock(h, m int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

func (b band) contains(t time.Time) bool {
	tod := clock(t.Hour(), t.Minute()) + time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
	return tod >= b.from && tod <= b.to
}

// Band times are fixed here although real products vary them.
var (
	dayNightNight  = band{from: clock(0, 30), to: clock(7, 30)}
	threeRateNight = band{from: clock(2, 0), to: clock(5, 0)}
	threeRatePeak  = band{from: clock(16, 0), to: clock(19, 0)}
)

// ResolveUnitRate returns the VAT-inclusive unit rate in pence per kWh that
// applies at ref. Standard tariffs ignore ref. Time-banded tariffs need ref,
// and report false without it, as does an Unknown structure.
//
// Day/night bands are evaluated on UTC clock time; three-rate bands on UK local time.
func (t Tariff) ResolveUnitRate(ref *time.Time) (float64, bool) {
	switch r := t.Rates.(type) {
	case Standard:
		return r.UnitRate, true
	case DayNight:
		if ref == nil {
			return 0, false
		}
		if dayNightNight.contains(ref.UTC()) {
			return r.NightRate, true
		}
		return r.DayRate, true
	case ThreeRate:
		if ref == nil {
			return 0, false
		}
		local := ref.In(london)
		switch {
		case threeRateNight.contains(local):
			return r.NightRate, true
		case threeRatePeak.contains(local):
			return r.DayRate, true
		default:
			return r.OffPeakRate, true
		}
	default:
		return 0, false
	}
}
