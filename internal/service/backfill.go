package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fxrate-service/internal/adapter/postgres"
	"fxrate-service/internal/adapter/provider"
	"fxrate-service/internal/entity"
	"fxrate-service/internal/metrics"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// LoadReport summarizes one historical load.
type LoadReport struct {
	Provider string
	Stored   int64
	Failed   int
}

type Backfill struct {
	currencies postgres.CurrencyRepository
	rates      postgres.RateRepository
	registry   ProviderRegistry
	metrics    *metrics.RateMetrics
	logger     *logrus.Logger
	now        func() time.Time
}

func NewBackfill(currencies postgres.CurrencyRepository, rates postgres.RateRepository, registry ProviderRegistry, m *metrics.RateMetrics, logger *logrus.Logger) *Backfill {
	return &Backfill{
		currencies: currencies,
		rates:      rates,
		registry:   registry,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// LoadCurrencies imports the currency list of the first active provider able to supply one.
// Existing codes are kept as they are.
func (b *Backfill) LoadCurrencies(ctx context.Context) (int64, error) {
	providers, err := b.registry.ActiveProvidersOrdered(ctx)
	if err != nil {
		return 0, err
	}

	var errs error
	for _, p := range providers {
		client, err := b.registry.ClientFor(p)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		lister, ok := client.(provider.CurrencyLister)
		if !ok {
			continue
		}

		currencies, err := lister.FetchCurrencies(ctx)
		if err != nil {
			b.logger.WithError(err).WithField("provider", p.Name).Warn("Failed to fetch currency list, trying next provider")
			errs = multierr.Append(errs, err)
			continue
		}

		inserted, err := b.currencies.InsertCurrencies(ctx, currencies)
		if err != nil {
			return 0, fmt.Errorf("insert currencies: %w", err)
		}
		b.logger.WithFields(logrus.Fields{
			"provider": p.Name,
			"received": len(currencies),
			"inserted": inserted,
		}).Info("Currencies loaded")
		return inserted, nil
	}

	if errs == nil {
		errs = fmt.Errorf("%w: no active provider lists currencies", entity.ErrProviderNotFound)
	}
	return 0, fmt.Errorf("load currencies: %w", errs)
}

// SetLoadHistorical flags codes for the historical load. Unknown codes are returned
// and do not stop the known ones from being flagged.
func (b *Backfill) SetLoadHistorical(ctx context.Context, codes []string, enabled bool) (int64, []string, error) {
	var known, unknown []string
	for _, code := range uniqueCodes(normalizeCodes(codes)) {
		_, err := b.currencies.GetCurrency(ctx, code)
		switch {
		case err == nil:
			known = append(known, code)
		case errors.Is(err, postgres.ErrNotFound):
			unknown = append(unknown, code)
		default:
			return 0, nil, fmt.Errorf("get currency %s: %w", code, err)
		}
	}

	if len(unknown) > 0 {
		b.logger.WithField("codes", unknown).Warn("Skipping unknown currencies")
	}

	updated, err := b.currencies.SetLoadHistorical(ctx, known, enabled)
	if err != nil {
		return 0, unknown, err
	}
	return updated, unknown, nil
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// LoadHistorical stores rates between every pair of flagged currencies for each day in
// [start, end]. Providers are tried in priority order and the first one that stores any
// rate ends the run. Each day is written as soon as it is fetched so an interrupted run
// can simply be repeated.
func (b *Backfill) LoadHistorical(ctx context.Context, start, end time.Time) (LoadReport, error) {
	days := entity.Days(start, end)
	if days == nil {
		return LoadReport{}, fmt.Errorf("%w: start date is after end date", entity.ErrValidation)
	}

	flagged, err := b.currencies.ListHistoricalCurrencies(ctx)
	if err != nil {
		return LoadReport{}, fmt.Errorf("list historical currencies: %w", err)
	}
	if len(flagged) < 2 {
		b.logger.WithField("flagged", len(flagged)).Warn("Not enough currencies flagged for historical load")
		return LoadReport{}, nil
	}
	codes := make([]string, 0, len(flagged))
	for _, c := range flagged {
		codes = append(codes, c.Code)
	}

	providers, err := b.registry.ActiveProvidersOrdered(ctx)
	if err != nil {
		return LoadReport{}, err
	}

	b.logger.WithFields(logrus.Fields{
		"currencies": codes,
		"start":      days[0].Format(entity.DateLayout),
		"end":        days[len(days)-1].Format(entity.DateLayout),
		"providers":  len(providers),
	}).Info("Starting historical load")

	var errs error
	for _, p := range providers {
		client, err := b.registry.ClientFor(p)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		report, err := b.loadFrom(ctx, client, codes, days)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
		errs = multierr.Append(errs, err)

		if report.Stored > 0 {
			b.logger.WithFields(logrus.Fields{
				"provider": report.Provider,
				"stored":   report.Stored,
				"failed":   report.Failed,
			}).Info("Historical load finished")
			return report, nil
		}
		b.logger.WithField("provider", p.Name).Warn("Provider yielded no historical data, trying next")
	}

	if errs == nil {
		errs = entity.ErrProviderUnavailable
	}
	return LoadReport{}, fmt.Errorf("no provider yielded historical data: %w", errs)
}

func (b *Backfill) loadFrom(ctx context.Context, client provider.Client, codes []string, days []time.Time) (LoadReport, error) {
	report := LoadReport{Provider: client.Name()}
	var errs error

	for _, base := range codes {
		targets := make([]string, 0, len(codes)-1)
		for _, c := range codes {
			if c != base {
				targets = append(targets, c)
			}
		}

		for _, day := range days {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}

			fetched, err := client.FetchHistorical(ctx, base, targets, day)
			if err != nil {
				report.Failed++
				errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", base, day.Format(entity.DateLayout), err))
				continue
			}

			rates := make([]entity.ExchangeRate, 0, len(fetched))
			for target, value := range fetched {
				rate := entity.NewExchangeRate(base, target, day, value)
				if !rate.RateValue.IsPositive() {
					continue
				}
				rates = append(rates, rate)
			}
			if len(rates) == 0 {
				continue
			}

			stored, err := b.rates.UpsertRates(ctx, rates)
			if err != nil {
				report.Failed++
				errs = multierr.Append(errs, fmt.Errorf("store %s %s: %w", base, day.Format(entity.DateLayout), err))
				continue
			}
			report.Stored += stored
			b.metrics.RecordBackfillStored(client.Name(), stored)
		}
	}

	return report, errs
}

// LoadRecent loads the last lookbackDays days up to and including today.
func (b *Backfill) LoadRecent(ctx context.Context, lookbackDays int) (LoadReport, error) {
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	end := entity.Day(b.now())
	start := end.AddDate(0, 0, -(lookbackDays - 1))
	return b.LoadHistorical(ctx, start, end)
}
