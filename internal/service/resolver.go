package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fxrate-service/internal/adapter/postgres"
	"fxrate-service/internal/entity"
	"fxrate-service/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultMaxConcurrency = 8

// Resolution is a resolved rate for one pair and date.
type Resolution struct {
	Source          string
	Target          string
	ValuationDate   time.Time
	Rate            decimal.Decimal
	ConvertedAmount decimal.Decimal
	FromCache       bool
	// FetchedFrom is "database (YYYY-MM-DD)" for stored rates, "api:YYYY-MM-DD" for fetched ones.
	FetchedFrom string
}

// PairResult holds either a resolution or the error of one target.
type PairResult struct {
	Resolution *Resolution
	Err        error
}

type ConversionRequest struct {
	Source   string
	Targets  []string
	Date     time.Time
	Provider string
	Amount   decimal.Decimal
}

type resolvedRate struct {
	rate        decimal.Decimal
	fromCache   bool
	fetchedFrom string
}

type Resolver struct {
	rates          postgres.RateRepository
	currencies     postgres.CurrencyRepository
	registry       ProviderRegistry
	maxConcurrency int
	group          singleflight.Group
	metrics        *metrics.RateMetrics
	logger         *logrus.Logger
	now            func() time.Time
}

func NewResolver(rates postgres.RateRepository, currencies postgres.CurrencyRepository, registry ProviderRegistry, maxConcurrency int, m *metrics.RateMetrics, logger *logrus.Logger) *Resolver {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &Resolver{
		rates:          rates,
		currencies:     currencies,
		registry:       registry,
		maxConcurrency: maxConcurrency,
		metrics:        m,
		logger:         logger,
		now:            time.Now,
	}
}

func databaseOrigin(date time.Time) string {
	return fmt.Sprintf("database (%s)", date.Format(entity.DateLayout))
}

func apiOrigin(fetched time.Time) string {
	return "api:" + fetched.UTC().Format(entity.DateLayout)
}

// Resolve returns the rate of source in target on date and the converted amount. Stored
// rates are served without contacting any provider.
func (r *Resolver) Resolve(ctx context.Context, source, target string, date time.Time, providerName string, amount decimal.Decimal) (*Resolution, error) {
	date = entity.Day(date)
	if source == target {
		return nil, fmt.Errorf("%w: source and target are both %s", entity.ErrValidation, source)
	}

	// callers share one lookup detached from their cancellation; each stops waiting on its own ctx
	key := fmt.Sprintf("%s|%s|%s|%s", source, target, date.Format(entity.DateLayout), providerName)
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		return r.resolveRate(shared, source, target, date, providerName, amount)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	rr := res.Val.(resolvedRate)

	return &Resolution{
		Source:          source,
		Target:          target,
		ValuationDate:   date,
		Rate:            rr.rate,
		ConvertedAmount: rr.rate.Mul(amount).Round(entity.ConversionPrecision),
		FromCache:       rr.fromCache,
		FetchedFrom:     rr.fetchedFrom,
	}, nil
}

func (r *Resolver) resolveRate(ctx context.Context, source, target string, date time.Time, providerName string, amount decimal.Decimal) (resolvedRate, error) {
	fields := logrus.Fields{"source": source, "target": target, "date": date.Format(entity.DateLayout)}

	stored, err := r.rates.FindRate(ctx, source, target, date)
	switch {
	case err == nil:
		r.metrics.RecordCacheLookup(metrics.LookupPoint, true)
		return resolvedRate{rate: stored.RateValue, fromCache: true, fetchedFrom: databaseOrigin(stored.ValuationDate)}, nil
	case !errors.Is(err, postgres.ErrNotFound):
		return resolvedRate{}, fmt.Errorf("find rate: %w", err)
	}
	r.metrics.RecordCacheLookup(metrics.LookupPoint, false)

	if _, err := r.currencies.GetCurrency(ctx, target); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return resolvedRate{}, fmt.Errorf("%w: %s", entity.ErrCurrencyNotFound, target)
		}
		return resolvedRate{}, fmt.Errorf("get currency %s: %w", target, err)
	}

	client, err := r.registry.Client(ctx, providerName)
	if err != nil {
		r.logger.WithError(err).WithFields(fields).Warn("No provider for rate")
		return resolvedRate{}, err
	}

	fetched, err := client.FetchRate(ctx, source, target, amount, date)
	if err != nil {
		r.logger.WithError(err).WithFields(fields).WithField("provider", client.Name()).Error("Failed to fetch rate")
		return resolvedRate{}, fmt.Errorf("fetch rate from %s: %w", client.Name(), err)
	}
	fetchedAt := r.now()
	rate := fetched.Round(entity.StoragePrecision)

	if err := r.rates.UpsertRate(ctx, source, target, date, rate); err != nil {
		if !errors.Is(err, entity.ErrDuplicateKey) {
			r.logger.WithError(err).WithFields(fields).Error("Failed to store fetched rate")
			return resolvedRate{}, fmt.Errorf("store rate: %w", err)
		}
		// a concurrent writer stored the same key first
		existing, findErr := r.rates.FindRate(ctx, source, target, date)
		if findErr != nil {
			return resolvedRate{}, fmt.Errorf("re-read rate after duplicate key: %w", findErr)
		}
		rate = existing.RateValue
	}

	r.logger.WithFields(fields).WithFields(logrus.Fields{
		"provider": client.Name(),
		"rate":     rate.StringFixed(entity.StoragePrecision),
	}).Info("Resolved rate from provider")

	return resolvedRate{rate: rate, fetchedFrom: apiOrigin(fetchedAt)}, nil
}

// ResolveMany resolves every target independently. An unknown source fails the whole
// request; any other failure is reported in that target's slot only.
func (r *Resolver) ResolveMany(ctx context.Context, req ConversionRequest) (map[string]PairResult, error) {
	if _, err := r.currencies.GetCurrency(ctx, req.Source); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", entity.ErrCurrencyNotFound, req.Source)
		}
		return nil, fmt.Errorf("get currency %s: %w", req.Source, err)
	}

	targets := uniqueCodes(req.Targets)
	results := make(map[string]PairResult, len(targets))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.maxConcurrency)
	for _, target := range targets {
		g.Go(func() error {
			res, err := r.Resolve(ctx, req.Source, target, req.Date, req.Provider, req.Amount)

			mu.Lock()
			results[target] = PairResult{Resolution: res, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func uniqueCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
