// Package report holds the period report produced for the CLI and the HTTP
// API, and its JSON and YAML encodings.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mgazza/octopus-insights/pkg/consumption"
	"github.com/mgazza/octopus-insights/pkg/insights"
	"github.com/mgazza/octopus-insights/pkg/tariff"
)

// Report is one presentation period of priced consumption.
type Report struct {
	Tariff      TariffSummary                `json:"tariff" yaml:"tariff"`
	Style       string                       `json:"style" yaml:"style"`
	PeriodStart time.Time                    `json:"period_start" yaml:"period_start"`
	PeriodEnd   time.Time                    `json:"period_end" yaml:"period_end"`
	Buckets     []consumption.RecordWithCost `json:"buckets" yaml:"buckets"`
	// Insights is nil when the period has no readings.
	Insights   *insights.Insights `json:"insights" yaml:"insights"`
	Navigation Navigation         `json:"navigation" yaml:"navigation"`
}

// Navigation holds the reference dates of the neighbouring periods. A nil
// date means there is no data in that direction.
type Navigation struct {
	Previous *time.Time `json:"previous,omitempty" yaml:"previous,omitempty"`
	Next     *time.Time `json:"next,omitempty" yaml:"next,omitempty"`
}

// TariffSummary describes a tariff and the rates it resolved to.
type TariffSummary struct {
	Code           string  `json:"code" yaml:"code"`
	ProductCode    string  `json:"product_code,omitempty" yaml:"product_code,omitempty"`
	DisplayName    string  `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Region         string  `json:"region,omitempty" yaml:"region,omitempty"`
	SingleRate     bool    `json:"single_rate" yaml:"single_rate"`
	RateType       string  `json:"rate_type" yaml:"rate_type"`
	StandingCharge float64 `json:"standing_charge" yaml:"standing_charge"`

	StandardUnitRate *float64 `json:"standard_unit_rate,omitempty" yaml:"standard_unit_rate,omitempty"`
	DayUnitRate      *float64 `json:"day_unit_rate,omitempty" yaml:"day_unit_rate,omitempty"`
	NightUnitRate    *float64 `json:"night_unit_rate,omitempty" yaml:"night_unit_rate,omitempty"`
	OffPeakRate      *float64 `json:"off_peak_rate,omitempty" yaml:"off_peak_rate,omitempty"`
}

// Summarize flattens t for display.
func Summarize(t tariff.Tariff) TariffSummary {
	s := TariffSummary{
		Code:           t.Code,
		ProductCode:    t.ProductCode,
		DisplayName:    t.DisplayName,
		SingleRate:     tariff.IsSingleRate(t.Code),
		RateType:       t.RateType().String(),
		StandingCharge: t.VatInclusiveStandingCharge,
	}
	if region, ok := tariff.RetailRegion(t.Code); ok {
		s.Region = region
	}
	switch r := t.Rates.(type) {
	case tariff.Standard:
		s.StandardUnitRate = &r.UnitRate
	case tariff.DayNight:
		s.DayUnitRate, s.NightUnitRate = &r.DayRate, &r.NightRate
	case tariff.ThreeRate:
		s.DayUnitRate, s.NightUnitRate, s.OffPeakRate = &r.DayRate, &r.NightRate, &r.OffPeakRate
	}
	return s
}

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Write encodes v (a Report or TariffSummary) to w.
func Write(w io.Writer, format string, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}
