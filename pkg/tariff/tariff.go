// Package tariff classifies electricity tariffs by pricing structure and
// resolves the unit rate that applies at a given instant.
package tariff

import (
	"fmt"
	"strings"
)

// RateType is the pricing structure of a tariff.
type RateType int

const (
	RateTypeUnknown RateType = iota
	RateTypeStandard
	RateTypeDayNight
	RateTypeThreeRate
)

func (r RateType) String() string {
	switch r {
	case RateTypeStandard:
		return "STANDARD"
	case RateTypeDayNight:
		return "DAY_NIGHT"
	case RateTypeThreeRate:
		return "THREE_RATE"
	default:
		return "UNKNOWN"
	}
}

// ParseRateType is the inverse of RateType.String. Unrecognised names map to RateTypeUnknown.
func ParseRateType(s string) RateType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STANDARD":
		return RateTypeStandard
	case "DAY_NIGHT":
		return RateTypeDayNight
	case "THREE_RATE":
		return RateTypeThreeRate
	default:
		return RateTypeUnknown
	}
}

// Structure is the rate structure of a tariff. Only the types in this package implement it.
type Structure interface {
	Type() RateType
	structure()
}

// Standard is a single unit rate applying at all times.
type Standard struct {
	UnitRate float64
}

// DayNight has a cheaper rate during a fixed overnight band.
type DayNight struct {
	DayRate   float64
	NightRate float64
}

// ThreeRate has night, peak and off-peak bands. The peak band is priced with DayRate.
type ThreeRate struct {
	DayRate     float64
	NightRate   float64
	OffPeakRate float64
}

// Unknown is a tariff whose published rates do not form a usable structure.
type Unknown struct{}

func (Standard) Type() RateType  { return RateTypeStandard }
func (DayNight) Type() RateType  { return RateTypeDayNight }
func (ThreeRate) Type() RateType { return RateTypeThreeRate }
func (Unknown) Type() RateType   { return RateTypeUnknown }

func (Standard) structure()  {}
func (DayNight) structure()  {}
func (ThreeRate) structure() {}
func (Unknown) structure()   {}

// RateFields is the flat shape in which the supplier publishes unit rates
// (pence per kWh, VAT inclusive). Absent rates are nil.
type RateFields struct {
	StandardUnitRate *float64
	DayUnitRate      *float64
	NightUnitRate    *float64
	OffPeakRate      *float64
}

// Classify builds the rate structure from whichever fields are present.
// Day and night rates are only usable together: one without the other is Unknown.
func Classify(f RateFields) Structure {
	switch {
	case f.OffPeakRate != nil && f.DayUnitRate != nil && f.NightUnitRate != nil:
		return ThreeRate{DayRate: *f.DayUnitRate, NightRate: *f.NightUnitRate, OffPeakRate: *f.OffPeakRate}
	case f.DayUnitRate != nil && f.NightUnitRate != nil:
		return DayNight{DayRate: *f.DayUnitRate, NightRate: *f.NightUnitRate}
	case f.StandardUnitRate != nil:
		return Standard{UnitRate: *f.StandardUnitRate}
	default:
		return Unknown{}
	}
}

// Tariff is a priced product instance. It is a value: build it with New and do not mutate it.
type Tariff struct {
	Code        string
	ProductCode string
	DisplayName string
	FullName    string

	// VatInclusiveStandingCharge is in pence per day.
	VatInclusiveStandingCharge float64

	Rates Structure
}

// New classifies fields and returns the tariff. The product code is derived from code when possible.
func New(code string, standingCharge float64, fields RateFields) Tariff {
	productCode, _ := ExtractProductCode(code)
	return Tariff{
		Code:                       code,
		ProductCode:                productCode,
		VatInclusiveStandingCharge: standingCharge,
		Rates:                      Classify(fields),
	}
}

// RateType returns the tariff's pricing structure.
func (t Tariff) RateType() RateType {
	if t.Rates == nil {
		return RateTypeUnknown
	}
	return t.Rates.Type()
}

func (t Tariff) String() string {
	return fmt.Sprintf("%s (%s)", t.Code, t.RateType())
}
