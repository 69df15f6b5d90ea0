// Package ratecache serves tariff rates from the local store when the stored
// records cover the requested window, and fetches and stores them otherwise.
package ratecache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mgazza/octopus-insights/internal/metrics"
	"github.com/mgazza/octopus-insights/pkg/rates"
)

// Store is the persistence the cache reads from and writes to.
type Store interface {
	Range(ctx context.Context, tariffCode string, kind rates.Kind, paymentMethod string, from, to time.Time) ([]rates.Rate, error)
	Save(ctx context.Context, rs []rates.Rate) error
}

// Fetcher loads rates from the supplier.
type Fetcher interface {
	FetchRates(ctx context.Context, tariffCode string, kind rates.Kind, from, to time.Time) ([]rates.Rate, error)
}

// Cache checks stored rates with rates.CoversRange before trusting them.
type Cache struct {
	store   Store
	fetcher Fetcher
	logger  *zap.Logger
}

// Option configures the cache
type Option func(*Cache)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a rate cache
func New(store Store, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		fetcher: fetcher,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rates returns one rate series covering [from, to]. Stored records are used
// when they cover the whole window without a gap. Otherwise the window is
// fetched, saved and returned. A failing store is logged and bypassed.
func (c *Cache) Rates(ctx context.Context, tariffCode string, kind rates.Kind, paymentMethod string, from, to time.Time) ([]rates.Rate, error) {
	log := c.logger.With(
		zap.String("tariff_code", tariffCode),
		zap.String("kind", string(kind)),
		zap.Time("from", from),
		zap.Time("to", to),
	)

	stored, err := c.store.Range(ctx, tariffCode, kind, paymentMethod, from, to)
	if err != nil {
		log.Warn("reading stored rates failed", zap.Error(err))
	}
	if err == nil && rates.CoversRange(stored, from, to) {
		metrics.RecordRateCacheLookup(string(kind), true)
		log.Debug("stored rates cover window", zap.Int("count", len(stored)))
		return stored, nil
	}
	metrics.RecordRateCacheLookup(string(kind), false)

	fetched, err := c.fetcher.FetchRates(ctx, tariffCode, kind, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s for %s: %w", kind, tariffCode, err)
	}
	metrics.RecordRatesFetched(string(kind), len(fetched))
	log.Info("fetched rates", zap.Int("count", len(fetched)))

	if err := c.store.Save(ctx, fetched); err != nil {
		log.Warn("saving fetched rates failed", zap.Error(err))
	}

	selected := rates.Select(fetched, kind, paymentMethod)
	if !rates.CoversRange(selected, from, to) {
		log.Warn("fetched rates leave gaps in window", zap.Int("count", len(selected)))
	}
	return selected, nil
}
