package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mgazza/octopus-insights/internal/config"
	"github.com/mgazza/octopus-insights/internal/metrics"
	"github.com/mgazza/octopus-insights/internal/ratecache"
	"github.com/mgazza/octopus-insights/internal/report"
	"github.com/mgazza/octopus-insights/internal/store"
	"github.com/mgazza/octopus-insights/pkg/consumption"
	"github.com/mgazza/octopus-insights/pkg/insights"
	"github.com/mgazza/octopus-insights/pkg/pricing"
	"github.com/mgazza/octopus-insights/pkg/rates"
	"github.com/mgazza/octopus-insights/pkg/tariff"
)

// App manages application dependencies and logic.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Octopus   *OctopusService
	DB        *store.DB
	RateStore *store.RateStore
	Rates     *ratecache.Cache
	Location  *time.Location

	now func() time.Time

	mu           sync.Mutex
	meter        *MeterInfo
	firstReading time.Time
}

// NewApp builds the HTTP transport, the Octopus client and the rate store.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	rt, err := newTransport(cfg, logger)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logger, rt)
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, rt http.RoundTripper) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	octopusService := NewOctopusService(rt, cfg.Octopus.APIKey, cfg.Octopus.PageSize, logger)
	rateStore := store.NewRateStore(db)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Octopus:   octopusService,
		DB:        db,
		RateStore: rateStore,
		Rates:     ratecache.New(rateStore, octopusService, ratecache.WithLogger(logger)),
		Location:  loc,
		now:       time.Now,
	}, nil
}

// newTransport rate limits calls to the API and, unless disabled, replays
// cached responses ahead of the limiter.
func newTransport(cfg *config.Config, logger *zap.Logger) (http.RoundTripper, error) {
	var rt http.RoundTripper = NewRateLimitedRoundTripper(http.DefaultTransport, cfg.Octopus.RequestsPerSecond, cfg.Octopus.Burst)

	if cfg.Cache.Dir == "disable" {
		logger.Info("HTTP caching disabled")
		return rt, nil
	}

	cacheDir := cfg.Cache.Dir
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	logger.Info("HTTP caching enabled", zap.String("dir", cacheDir))

	return &CachingRoundTripper{
		UnderlyingTransport: rt,
		CacheDir:            filepath.Clean(cacheDir),
		Logger:              logger,
	}, nil
}

// Close releases the rate store.
func (app *App) Close() error {
	return app.DB.Close()
}

// importMeter looks up the account's import meter once and remembers it.
func (app *App) importMeter(ctx context.Context) (*MeterInfo, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.meter != nil {
		return app.meter, nil
	}
	if err := app.Config.RequireAccount(); err != nil {
		return nil, err
	}

	importMeter, _, err := app.Octopus.GetMetersAndTariff(ctx, app.Config.Octopus.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get meter and tariff details: %w", err)
	}

	first, err := app.Octopus.GetFirstReading(ctx, importMeter)
	if err != nil {
		return nil, fmt.Errorf("failed to get first reading: %w", err)
	}

	app.meter = importMeter
	app.firstReading = first
	app.Logger.Info("found import meter",
		zap.String("mpan", importMeter.Mpan),
		zap.String("tariff_code", importMeter.TariffCode),
		zap.Time("first_reading", first))
	return importMeter, nil
}

// tariffCode is the configured override or the code on the meter's agreement.
func (app *App) tariffCode(meter *MeterInfo) string {
	if app.Config.Tariff.Code != "" {
		return app.Config.Tariff.Code
	}
	return meter.TariffCode
}

// buildTariff combines the published rates with the configured overrides.
func (app *App) buildTariff(code string, published tariff.RateFields, standingCharge *float64) tariff.Tariff {
	tc := app.Config.Tariff
	fields := published
	if !tariff.IsSingleRate(code) || fields.StandardUnitRate == nil {
		fields.DayUnitRate = override(tc.DayUnitRate, fields.DayUnitRate)
		fields.NightUnitRate = override(tc.NightUnitRate, fields.NightUnitRate)
		fields.OffPeakRate = override(tc.OffPeakRate, fields.OffPeakRate)
	}

	var charge float64
	if c := override(tc.StandingCharge, standingCharge); c != nil {
		charge = *c
	}

	t := tariff.New(code, charge, fields)
	t.DisplayName = tc.DisplayName
	return t
}

func override(configured, published *float64) *float64 {
	if configured != nil {
		return configured
	}
	return published
}

// publishedRates fetches, over [from, to], the unit rates code is billed on
// and its standing charges, skipping whatever the configuration overrides.
// Per-interval unit rates are only returned for single-rate tariffs; banded
// tariffs are priced from the rates in force at from.
func (app *App) publishedRates(ctx context.Context, code string, from, to time.Time) (published tariff.RateFields, unitRates, standingCharges []rates.Rate, err error) {
	tc := app.Config.Tariff
	fetch := func(kind rates.Kind) ([]rates.Rate, error) {
		return app.Rates.Rates(ctx, code, kind, tc.PaymentMethod, from, to)
	}

	if tc.StandingCharge == nil {
		if standingCharges, err = fetch(rates.KindStandingCharge); err != nil {
			return published, nil, nil, err
		}
	}

	if tariff.IsSingleRate(code) {
		if unitRates, err = fetch(rates.KindStandardUnitRate); err != nil {
			return published, nil, nil, err
		}
		published.StandardUnitRate = representativeRate(from, unitRates)
		return published, unitRates, standingCharges, nil
	}

	if tc.DayUnitRate == nil {
		day, err := fetch(rates.KindDayUnitRate)
		if err != nil {
			return published, nil, nil, err
		}
		published.DayUnitRate = representativeRate(from, day)
	}
	if tc.NightUnitRate == nil {
		night, err := fetch(rates.KindNightUnitRate)
		if err != nil {
			return published, nil, nil, err
		}
		published.NightUnitRate = representativeRate(from, night)
	}
	return published, nil, standingCharges, nil
}

// LatestReference returns the start of the newest reading, or now when the
// meter has none.
func (app *App) LatestReference(ctx context.Context) (time.Time, error) {
	meter, err := app.importMeter(ctx)
	if err != nil {
		return time.Time{}, err
	}
	last, value, err := app.Octopus.GetLastReading(ctx, meter)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last reading: %w", err)
	}
	if last.IsZero() {
		return app.now(), nil
	}
	app.Logger.Debug("latest reading",
		zap.Time("interval_start", last),
		zap.Float64("kwh", value))
	return last, nil
}

// Insights prices the import meter's readings for the period of style that
// contains reference and summarises them. A zero reference means the period
// of the latest reading.
func (app *App) Insights(ctx context.Context, style consumption.PresentationStyle, reference time.Time) (*report.Report, error) {
	meter, err := app.importMeter(ctx)
	if err != nil {
		return nil, err
	}
	if reference.IsZero() {
		if reference, err = app.LatestReference(ctx); err != nil {
			return nil, err
		}
	}

	filter := consumption.NewQueryFilter(style, reference, app.Location)
	code := app.tariffCode(meter)
	log := app.Logger.With(
		zap.String("style", style.String()),
		zap.String("tariff_code", code),
		zap.Time("period_start", filter.RequestedStart),
		zap.Time("period_end", filter.RequestedEnd))

	records, err := app.Octopus.GetMeterConsumption(ctx, meter, filter.RequestedStart, filter.RequestedEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch consumption: %w", err)
	}

	published, unitRates, standingCharges, err := app.publishedRates(ctx, code, filter.RequestedStart, filter.RequestedEnd)
	if err != nil {
		return nil, err
	}

	t := app.buildTariff(code, published, representativeRate(filter.RequestedStart, standingCharges))
	priced := pricing.Apply(records, unitRates, standingCharges, &t)

	rep := &report.Report{
		Tariff:      report.Summarize(t),
		Style:       style.String(),
		PeriodStart: filter.RequestedStart,
		PeriodEnd:   filter.RequestedEnd,
		Buckets:     filter.Group(priced),
	}

	if inPeriod := filter.Filter(priced); len(inPeriod) > 0 {
		ins := insights.Generate(&t, inPeriod)
		ins.ConsumptionChargeRatio = finiteOrZero(ins.ConsumptionChargeRatio)
		rep.Insights = ins
		metrics.RecordInsights(style.String(), ins.IsTrueCost)
		log.Info("generated insights",
			zap.Int("readings", len(inPeriod)),
			zap.Bool("true_cost", ins.IsTrueCost),
			zap.Float64("cost_with_charges", ins.CostWithCharges))
	} else {
		log.Info("no readings in period")
	}

	if filter.CanNavigateForward(app.now()) {
		next := filter.Next().Reference
		rep.Navigation.Next = &next
	}
	if !app.firstReading.IsZero() && filter.CanNavigateBackward(app.firstReading) {
		previous := filter.Previous().Reference
		rep.Navigation.Previous = &previous
	}

	return rep, nil
}

// representativeRate is the rate in force at the start of the period, else
// the last one published.
func representativeRate(at time.Time, unitRates []rates.Rate) *float64 {
	if r := rates.FindForTime(at, unitRates); r != nil {
		v := r.ValueIncVat
		return &v
	}
	if len(unitRates) > 0 {
		v := unitRates[len(unitRates)-1].ValueIncVat
		return &v
	}
	return nil
}

// finiteOrZero replaces the ratio of a zero-cost period, which JSON cannot carry.
func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Tariff describes code with the rates in force now. When the API cannot be
// reached the newest stored rate of each kind is used instead.
func (app *App) Tariff(ctx context.Context, code string) (*report.TariffSummary, error) {
	if _, err := tariff.ParseCode(code); err != nil {
		return nil, err
	}

	tc := app.Config.Tariff
	var published tariff.RateFields
	var standingCharge *float64
	var err error

	if tc.StandingCharge == nil {
		if standingCharge, err = app.currentRate(ctx, code, rates.KindStandingCharge); err != nil {
			return nil, err
		}
	}
	if tariff.IsSingleRate(code) {
		if published.StandardUnitRate, err = app.currentRate(ctx, code, rates.KindStandardUnitRate); err != nil {
			return nil, err
		}
	} else {
		if tc.DayUnitRate == nil {
			if published.DayUnitRate, err = app.currentRate(ctx, code, rates.KindDayUnitRate); err != nil {
				return nil, err
			}
		}
		if tc.NightUnitRate == nil {
			if published.NightUnitRate, err = app.currentRate(ctx, code, rates.KindNightUnitRate); err != nil {
				return nil, err
			}
		}
	}

	summary := report.Summarize(app.buildTariff(code, published, standingCharge))
	return &summary, nil
}

// currentRate is the rate of kind in force now, falling back to the newest
// stored one when the fetch fails.
func (app *App) currentRate(ctx context.Context, code string, kind rates.Kind) (*float64, error) {
	now := app.now()
	current, err := app.Rates.Rates(ctx, code, kind, app.Config.Tariff.PaymentMethod, now, now)
	if err != nil {
		latest, latestErr := app.RateStore.Latest(ctx, code, kind, app.Config.Tariff.PaymentMethod)
		if latestErr != nil {
			if errors.Is(latestErr, store.ErrNotFound) {
				return nil, err
			}
			return nil, latestErr
		}
		app.Logger.Warn("using stored rate",
			zap.String("tariff_code", code),
			zap.String("kind", string(kind)),
			zap.Error(err))
		current = []rates.Rate{latest}
	}
	return representativeRate(now, current), nil
}

// PurgeRates drops the stored rates of code so the next request refetches them.
func (app *App) PurgeRates(ctx context.Context, code string) error {
	n, err := app.RateStore.Purge(ctx, code)
	if err != nil {
		return err
	}
	app.Logger.Info("purged stored rates", zap.String("tariff_code", code), zap.Int64("count", n))
	return nil
}

// Run writes the report for one period in the configured format.
func (app *App) Run(ctx context.Context, style consumption.PresentationStyle, reference time.Time) error {
	app.Logger.Info("Starting application...")

	rep, err := app.Insights(ctx, style, reference)
	if err != nil {
		return err
	}

	format, output := app.Config.Report.Format, app.Config.Report.Output
	if format == "csv" {
		if err := writeCSV(output, rep); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		app.Logger.Info("wrote CSV", zap.String("path", output), zap.Int("rows", len(rep.Buckets)))
		return nil
	}

	var w io.Writer = os.Stdout
	if output != "" && output != "-" {
		file, err := os.Create(output)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	if err := report.Write(w, format, rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	app.Logger.Info("wrote report", zap.String("format", format), zap.String("path", output))
	return nil
}
