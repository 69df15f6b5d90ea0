package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mgazza/octopus-insights/pkg/consumption"
	"github.com/mgazza/octopus-insights/pkg/insights"
	"github.com/mgazza/octopus-insights/pkg/tariff"
)

func ptr(v float64) *float64 {
	return &v
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		tariff   tariff.Tariff
		rateType string
		check    func(t *testing.T, s TariffSummary)
	}{
		{
			name:     "standard",
			tariff:   tariff.New("E-1R-AGILE-FLEX-22-11-25-A", 45.5, tariff.RateFields{StandardUnitRate: ptr(24.5)}),
			rateType: "STANDARD",
			check: func(t *testing.T, s TariffSummary) {
				require.NotNil(t, s.StandardUnitRate)
				assert.Equal(t, 24.5, *s.StandardUnitRate)
				assert.Nil(t, s.DayUnitRate)
				assert.True(t, s.SingleRate)
				assert.Equal(t, "A", s.Region)
				assert.Equal(t, "AGILE-FLEX-22-11-25", s.ProductCode)
			},
		},
		{
			name:     "day night",
			tariff:   tariff.New("E-2R-OE-FIX-12M-24-04-11-C", 50, tariff.RateFields{DayUnitRate: ptr(30), NightUnitRate: ptr(12)}),
			rateType: "DAY_NIGHT",
			check: func(t *testing.T, s TariffSummary) {
				assert.Equal(t, 30.0, *s.DayUnitRate)
				assert.Equal(t, 12.0, *s.NightUnitRate)
				assert.Nil(t, s.OffPeakRate)
				assert.False(t, s.SingleRate)
				assert.Equal(t, "C", s.Region)
			},
		},
		{
			name:     "three rate",
			tariff:   tariff.New("E-1R-FLUX-IMPORT-23-02-14-C", 50, tariff.RateFields{DayUnitRate: ptr(35), NightUnitRate: ptr(15), OffPeakRate: ptr(25)}),
			rateType: "THREE_RATE",
			check: func(t *testing.T, s TariffSummary) {
				assert.Equal(t, 25.0, *s.OffPeakRate)
			},
		},
		{
			name:     "unknown",
			tariff:   tariff.New("E-1R-VAR-22-11-01-Z", 50, tariff.RateFields{}),
			rateType: "UNKNOWN",
			check: func(t *testing.T, s TariffSummary) {
				assert.Empty(t, s.Region)
				assert.Nil(t, s.StandardUnitRate)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := Summarize(test.tariff)
			assert.Equal(t, test.rateType, s.RateType)
			assert.Equal(t, test.tariff.VatInclusiveStandingCharge, s.StandingCharge)
			test.check(t, s)
		})
	}
}

func sampleReport() Report {
	start := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
	next := start.AddDate(0, 0, 1)
	return Report{
		Tariff:      Summarize(tariff.New("E-1R-VAR-22-11-01-A", 45.48, tariff.RateFields{StandardUnitRate: ptr(28.62)})),
		Style:       consumption.DayHalfHourly.String(),
		PeriodStart: start,
		PeriodEnd:   next.Add(-time.Nanosecond),
		Buckets: []consumption.RecordWithCost{{
			Record:           consumption.Record{IntervalStart: start, IntervalEnd: start.Add(30 * time.Minute), KWhConsumed: 0.5},
			VatInclusiveCost: ptr(14.31),
		}},
		Insights:   &insights.Insights{ConsumptionAggregateRounded: 0.5, ConsumptionTimeSpan: 1, IsTrueCost: true},
		Navigation: Navigation{Next: &next},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "day-half-hourly", decoded["style"])
	tariffJSON := decoded["tariff"].(map[string]any)
	assert.Equal(t, "STANDARD", tariffJSON["rate_type"])

	buckets := decoded["buckets"].([]any)
	require.Len(t, buckets, 1)
	bucket := buckets[0].(map[string]any)
	assert.Equal(t, 0.5, bucket["kwh_consumed"])
	assert.Equal(t, 14.31, bucket["vat_inclusive_cost"])
	assert.NotContains(t, bucket, "vat_inclusive_standing_charge")

	nav := decoded["navigation"].(map[string]any)
	assert.Contains(t, nav, "next")
	assert.NotContains(t, nav, "previous")
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, sampleReport()))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "day-half-hourly", decoded["style"])
	buckets := decoded["buckets"].([]any)
	require.Len(t, buckets, 1)
	bucket := buckets[0].(map[string]any)
	assert.Equal(t, 0.5, bucket["kwh_consumed"])
	assert.Contains(t, bucket, "interval_start")

	ins := decoded["insights"].(map[string]any)
	assert.Equal(t, true, ins["is_true_cost"])
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xml", sampleReport())
	assert.Error(t, err)
}
