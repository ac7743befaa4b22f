package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fxrate-service/internal/adapter/postgres"
	"fxrate-service/internal/entity"
	"fxrate-service/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type TimeseriesRequest struct {
	Base     string
	Targets  []string
	Start    time.Time
	End      time.Time
	Provider string
}

type Point struct {
	ValuationDate time.Time
	RateValue     decimal.Decimal
}

// SeriesResult holds either the ascending points of one target or its error.
type SeriesResult struct {
	Points    []Point
	FromCache bool
	Err       error
}

type Assembler struct {
	rates          postgres.RateRepository
	currencies     postgres.CurrencyRepository
	registry       ProviderRegistry
	maxConcurrency int
	metrics        *metrics.RateMetrics
	logger         *logrus.Logger
}

func NewAssembler(rates postgres.RateRepository, currencies postgres.CurrencyRepository, registry ProviderRegistry, maxConcurrency int, m *metrics.RateMetrics, logger *logrus.Logger) *Assembler {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &Assembler{
		rates:          rates,
		currencies:     currencies,
		registry:       registry,
		maxConcurrency: maxConcurrency,
		metrics:        m,
		logger:         logger,
	}
}

// coversRange reports whether stored rates span [start, end]. Interior gaps are not checked.
func coversRange(stored []entity.ExchangeRate, start, end time.Time) bool {
	if len(stored) == 0 {
		return false
	}
	return !stored[0].ValuationDate.After(start) && !stored[len(stored)-1].ValuationDate.Before(end)
}

// Assemble resolves the series of every target against base over [start, end]. A target
// whose stored data does not span the whole range is refetched in full.
func (a *Assembler) Assemble(ctx context.Context, req TimeseriesRequest) (map[string]SeriesResult, error) {
	start, end := entity.Day(req.Start), entity.Day(req.End)
	if start.After(end) {
		return nil, fmt.Errorf("%w: start date %s is after end date %s",
			entity.ErrValidation, start.Format(entity.DateLayout), end.Format(entity.DateLayout))
	}

	if _, err := a.currencies.GetCurrency(ctx, req.Base); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, fmt.Errorf("%w: base currency %s", entity.ErrCurrencyNotFound, req.Base)
		}
		return nil, fmt.Errorf("get currency %s: %w", req.Base, err)
	}

	targets := uniqueCodes(req.Targets)
	results := make(map[string]SeriesResult, len(targets))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(a.maxConcurrency)
	for _, target := range targets {
		g.Go(func() error {
			res := a.series(ctx, req.Base, target, start, end, req.Provider)

			mu.Lock()
			results[target] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (a *Assembler) series(ctx context.Context, base, target string, start, end time.Time, providerName string) SeriesResult {
	fields := logrus.Fields{
		"base":   base,
		"target": target,
		"start":  start.Format(entity.DateLayout),
		"end":    end.Format(entity.DateLayout),
	}

	if target == base {
		return SeriesResult{Err: fmt.Errorf("%w: base and target are both %s", entity.ErrValidation, base)}
	}

	if _, err := a.currencies.GetCurrency(ctx, target); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return SeriesResult{Err: fmt.Errorf("%w: target currency %s", entity.ErrCurrencyNotFound, target)}
		}
		return SeriesResult{Err: fmt.Errorf("get currency %s: %w", target, err)}
	}

	stored, err := a.rates.FindRange(ctx, base, target, start, end)
	if err != nil {
		return SeriesResult{Err: fmt.Errorf("find range: %w", err)}
	}

	if coversRange(stored, start, end) {
		a.metrics.RecordCacheLookup(metrics.LookupRange, true)
		points := make([]Point, 0, len(stored))
		for _, rate := range stored {
			points = append(points, Point{ValuationDate: rate.ValuationDate, RateValue: rate.RateValue})
		}
		return SeriesResult{Points: points, FromCache: true}
	}
	a.metrics.RecordCacheLookup(metrics.LookupRange, false)
	a.logger.WithFields(fields).WithField("stored", len(stored)).Info("Stored range incomplete, fetching full range")

	client, err := a.registry.Client(ctx, providerName)
	if err != nil {
		return SeriesResult{Err: err}
	}

	fetched, err := client.FetchTimeseries(ctx, base, target, start, end)
	if err != nil {
		a.logger.WithError(err).WithFields(fields).Error("Failed to fetch timeseries")
		return SeriesResult{Err: fmt.Errorf("fetch timeseries from %s: %w", client.Name(), err)}
	}

	points := make([]Point, 0, len(fetched))
	toStore := make([]entity.ExchangeRate, 0, len(fetched))
	skipped := 0
	for day, value := range fetched {
		day = entity.Day(day)
		if day.Before(start) || day.After(end) {
			continue
		}
		rate := entity.NewExchangeRate(base, target, day, value)
		if !rate.RateValue.IsPositive() {
			skipped++
			continue
		}
		points = append(points, Point{ValuationDate: rate.ValuationDate, RateValue: rate.RateValue})
		toStore = append(toStore, rate)
	}
	if skipped > 0 {
		a.logger.WithFields(fields).WithField("skipped", skipped).Warn("Dropped non-positive fetched rates")
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].ValuationDate.Before(points[j].ValuationDate)
	})

	if len(toStore) > 0 {
		if _, err := a.rates.UpsertRates(ctx, toStore); err != nil {
			a.logger.WithError(err).WithFields(fields).Warn("Failed to persist fetched timeseries")
		}
	}

	return SeriesResult{Points: points}
}
