package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mgazza/octopus-insights/internal/report"
)

// Helper function to format float64 values with precision
func formatFloat(val *float64, precision int) string {
	if val != nil {
		return decimal.NewFromFloat(*val).StringFixed(int32(precision))
	}
	return "NaN"
}

// Sum the unit cost and standing charge share of a bucket, in pence.
func computeTotal(cost, standing *float64) string {
	if cost != nil && standing != nil {
		total := decimal.NewFromFloat(*cost).Add(decimal.NewFromFloat(*standing))
		return total.StringFixed(2)
	}
	return "NaN"
}

// Write report buckets to a CSV file
func writeCSV(filename string, rep *report.Report) error {
	if len(rep.Buckets) == 0 {
		return fmt.Errorf("not enough data to write CSV")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{
		"Interval_Start",
		"Interval_End",
		"KWh_Consumed",
		"Unit_PenceCost",
		"Standing_PenceCost",
		"Total_PenceCost",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rep.Buckets {
		kwh := row.KWhConsumed
		record := []string{
			row.IntervalStart.Format(time.RFC3339),
			row.IntervalEnd.Format(time.RFC3339),
			formatFloat(&kwh, 4),
			formatFloat(row.VatInclusiveCost, 4),
			formatFloat(row.VatInclusiveStandingCharge, 4),
			computeTotal(row.VatInclusiveCost, row.VatInclusiveStandingCharge),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
