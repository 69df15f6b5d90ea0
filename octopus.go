package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httptransport "github.com/go-openapi/runtime/client"
	"github.com/go-openapi/strfmt"
	octopus "github.com/mgazza/go-octopus-energy/client"
	"github.com/mgazza/go-octopus-energy/client/accounts"
	"github.com/mgazza/go-octopus-energy/client/electricity_meter_points"
	"github.com/mgazza/go-octopus-energy/client/products"
	"github.com/mgazza/go-octopus-energy/models"
	"go.uber.org/zap"

	"github.com/mgazza/octopus-insights/pkg/consumption"
	"github.com/mgazza/octopus-insights/pkg/rates"
	"github.com/mgazza/octopus-insights/pkg/tariff"
)

// ErrUnsupportedKind is returned by FetchRates for rate kinds the API does
// not publish as a series.
var ErrUnsupportedKind = errors.New("rate kind not available from the API")

// ErrNoImportMeter is returned when the account has no electricity import meter.
var ErrNoImportMeter = errors.New("no electricity import meter on the account")

const readingInterval = 30 * time.Minute

// OctopusService handles interactions with the Octopus Energy API.
type OctopusService struct {
	Client   *octopus.OctopusEnergyRESTAPI
	pageSize int64
	logger   *zap.Logger
}

// NewOctopusService creates a new OctopusService with pre-configured authentication.
func NewOctopusService(rt http.RoundTripper, apiKey string, pageSize int, logger *zap.Logger) *OctopusService {
	cfg := octopus.DefaultTransportConfig()
	transport := httptransport.New(cfg.Host, cfg.BasePath, cfg.Schemes)
	transport.Transport = rt
	transport.DefaultAuthentication = httptransport.BasicAuth(apiKey, "")

	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize < 1 {
		pageSize = 672 // two weeks of half-hour slots
	}

	client := octopus.New(transport, strfmt.Default)
	return &OctopusService{
		Client:   client,
		pageSize: int64(pageSize),
		logger:   logger,
	}
}

// GetMetersAndTariff fetches the electricity meters on the account's first
// property together with their current tariff.
// returns the import and export meter; export is nil when there is none
func (s *OctopusService) GetMetersAndTariff(ctx context.Context, accountID string) (*MeterInfo, *MeterInfo, error) {
	params := accounts.NewGetAccountParams().
		WithContext(ctx).
		WithAccountID(accountID)
	response, err := s.Client.Accounts.GetAccount(params, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch account details: %w", err)
	}

	if len(response.Payload.Properties) < 1 {
		return nil, nil, fmt.Errorf("no properties found on the account")
	}

	property := response.Payload.Properties[0]

	var importMeter, exportMeter *MeterInfo
	for _, meterPoint := range property.ElectricityMeterPoints {
		if len(meterPoint.Meters) < 1 || len(meterPoint.Agreements) < 1 {
			continue
		}

		tariffCode := meterPoint.Agreements[len(meterPoint.Agreements)-1].TariffCode
		productCode, _ := tariff.ExtractProductCode(tariffCode)
		meter := &MeterInfo{
			ProductCode:  productCode,
			TariffCode:   tariffCode,
			SerialNumber: meterPoint.Meters[0].SerialNumber,
			Mpan:         meterPoint.Mpan,
			Export:       meterPoint.IsExport,
		}

		if meterPoint.IsExport {
			exportMeter = meter
		} else {
			importMeter = meter
		}
	}

	if importMeter == nil {
		return nil, exportMeter, ErrNoImportMeter
	}
	return importMeter, exportMeter, nil
}

// GetLastReading fetches the start date time of the last reading from the Octopus API.
func (s *OctopusService) GetLastReading(ctx context.Context, meter *MeterInfo) (time.Time, float64, error) {
	orderBy := "-period"
	params := electricity_meter_points.NewListConsumptionForAnElectricityMeterParams().
		WithContext(ctx).
		WithMpan(meter.Mpan).
		WithSerialNumber(meter.SerialNumber).
		WithOrderBy(&orderBy)

	response, err := s.Client.ElectricityMeterPoints.ListConsumptionForAnElectricityMeter(params, nil)
	if err != nil {
		return time.Time{}, 0, err
	}

	if len(response.Payload.Results) == 0 || response.Payload.Results[0].IntervalStart == nil {
		return time.Time{}, 0, nil
	}

	r := response.Payload.Results[0]
	return time.Time(*r.IntervalStart), r.Consumption, nil
}

// GetFirstReading fetches the start of the earliest reading held for meter.
// The zero time means the meter has no readings.
func (s *OctopusService) GetFirstReading(ctx context.Context, meter *MeterInfo) (time.Time, error) {
	orderBy := "period"
	pageSize := int64(1)
	params := electricity_meter_points.NewListConsumptionForAnElectricityMeterParams().
		WithContext(ctx).
		WithMpan(meter.Mpan).
		WithSerialNumber(meter.SerialNumber).
		WithPageSize(&pageSize).
		WithOrderBy(&orderBy)

	response, err := s.Client.ElectricityMeterPoints.ListConsumptionForAnElectricityMeter(params, nil)
	if err != nil {
		return time.Time{}, err
	}

	if len(response.Payload.Results) == 0 || response.Payload.Results[0].IntervalStart == nil {
		return time.Time{}, nil
	}
	return time.Time(*response.Payload.Results[0].IntervalStart), nil
}

// chargePager fetches one page of a published rate series.
type chargePager func(page int64) (*models.PaginatedHistoricalChargeList, error)

// FetchRates fetches the published rates of kind for tariffCode over [from, to].
// Off-peak rates are not published as a series and return ErrUnsupportedKind.
func (s *OctopusService) FetchRates(ctx context.Context, tariffCode string, kind rates.Kind, from, to time.Time) ([]rates.Rate, error) {
	productCode, ok := tariff.ExtractProductCode(tariffCode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", tariff.ErrInvalidCode, tariffCode)
	}

	fetch, err := s.pagerFor(ctx, productCode, tariffCode, kind, from, to)
	if err != nil {
		return nil, err
	}

	var all []rates.Rate
	page := int64(1)
	for {
		payload, err := fetch(page)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", kind, err)
		}

		for _, rate := range payload.Results {
			if rate == nil {
				continue
			}
			all = append(all, rates.Rate{
				TariffCode:    tariffCode,
				Kind:          kind,
				PaymentMethod: paymentMethod(rate.PaymentMethod),
				ValueExcVat:   rate.ValueExcVat,
				ValueIncVat:   rate.ValueIncVat,
				ValidFrom:     copyTime(rate.ValidFrom),
				ValidTo:       copyTime(rate.ValidTo),
			})
		}

		if payload.Next == nil {
			break
		}

		page++
	}

	s.logger.Debug("fetched rate pages",
		zap.String("tariff_code", tariffCode),
		zap.String("kind", string(kind)),
		zap.Int64("pages", page),
		zap.Int("count", len(all)))

	return all, nil
}

// pagerFor picks the products endpoint that lists kind.
func (s *OctopusService) pagerFor(ctx context.Context, productCode, tariffCode string, kind rates.Kind, from, to time.Time) (chargePager, error) {
	periodFrom, periodTo := (*strfmt.DateTime)(&from), (*strfmt.DateTime)(&to)

	switch kind {
	case rates.KindStandardUnitRate:
		params := products.NewListElectricityTariffStandardUnitRatesParams().
			WithContext(ctx).
			WithProductCode(productCode).
			WithTariffCode(tariffCode).
			WithPeriodFrom(periodFrom).
			WithPeriodTo(periodTo).
			WithPageSize(&s.pageSize)
		return func(page int64) (*models.PaginatedHistoricalChargeList, error) {
			response, err := s.Client.Products.ListElectricityTariffStandardUnitRates(params.WithPage(&page), nil)
			if err != nil {
				return nil, err
			}
			return response.Payload, nil
		}, nil

	case rates.KindDayUnitRate:
		params := products.NewListElectricityTariffDayUnitRatesParams().
			WithContext(ctx).
			WithProductCode(productCode).
			WithTariffCode(tariffCode).
			WithPeriodFrom(periodFrom).
			WithPeriodTo(periodTo).
			WithPageSize(&s.pageSize)
		return func(page int64) (*models.PaginatedHistoricalChargeList, error) {
			response, err := s.Client.Products.ListElectricityTariffDayUnitRates(params.WithPage(&page), nil)
			if err != nil {
				return nil, err
			}
			return response.Payload, nil
		}, nil

	case rates.KindNightUnitRate:
		params := products.NewListElectricityTariffNightUnitRatesParams().
			WithContext(ctx).
			WithProductCode(productCode).
			WithTariffCode(tariffCode).
			WithPeriodFrom(periodFrom).
			WithPeriodTo(periodTo).
			WithPageSize(&s.pageSize)
		return func(page int64) (*models.PaginatedHistoricalChargeList, error) {
			response, err := s.Client.Products.ListElectricityTariffNightUnitRates(params.WithPage(&page), nil)
			if err != nil {
				return nil, err
			}
			return response.Payload, nil
		}, nil

	case rates.KindStandingCharge:
		params := products.NewListElectricityTariffStandingChargesParams().
			WithContext(ctx).
			WithProductCode(productCode).
			WithTariffCode(tariffCode).
			WithPeriodFrom(periodFrom).
			WithPeriodTo(periodTo).
			WithPageSize(&s.pageSize)
		return func(page int64) (*models.PaginatedHistoricalChargeList, error) {
			response, err := s.Client.Products.ListElectricityTariffStandingCharges(params.WithPage(&page), nil)
			if err != nil {
				return nil, err
			}
			return response.Payload, nil
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
}

// GetMeterConsumption gets the half-hourly readings of meter over [start, end].
func (s *OctopusService) GetMeterConsumption(ctx context.Context, meter *MeterInfo, start, end time.Time) ([]consumption.Record, error) {
	var records []consumption.Record
	page := int64(1)
	params := electricity_meter_points.NewListConsumptionForAnElectricityMeterParams().
		WithContext(ctx).
		WithMpan(meter.Mpan).
		WithSerialNumber(meter.SerialNumber).
		WithPeriodFrom((*strfmt.DateTime)(&start)).
		WithPeriodTo((*strfmt.DateTime)(&end)).
		WithPageSize(&s.pageSize).
		WithPage(&page)

	for {
		response, err := s.Client.ElectricityMeterPoints.ListConsumptionForAnElectricityMeter(params, nil)
		if err != nil {
			return nil, fmt.Errorf("error querying octopus data: %w", err)
		}
		if !response.IsSuccess() {
			return nil, fmt.Errorf("error querying octopus data: %v", response.Error())
		}

		for _, r := range response.Payload.Results {
			if r.IntervalStart == nil {
				continue
			}
			intervalStart := time.Time(*r.IntervalStart).Truncate(readingInterval)
			records = append(records, consumption.Record{
				IntervalStart: intervalStart,
				IntervalEnd:   intervalStart.Add(readingInterval),
				KWhConsumed:   r.Consumption,
			})
		}

		if response.Payload.Next == nil {
			break
		}
		page++
	}

	s.logger.Info("fetched octopus readings",
		zap.String("mpan", meter.Mpan),
		zap.Int("count", len(records)))

	return records, nil
}

// paymentMethod maps an absent payment method to the empty method, which
// matches every account.
func paymentMethod(pm *string) string {
	if pm == nil {
		return ""
	}
	return *pm
}

func copyTime(dt *strfmt.DateTime) *time.Time {
	if dt == nil {
		return nil
	}
	t := time.Time(*dt)
	return &t
}
