// Package provider defines the contract every external exchange rate source implements.
package provider

import (
	"context"
	"time"

	"fxrate-service/internal/entity"

	"github.com/shopspring/decimal"
)

// Client fetches rates from one external source. Implementations wrap every transport,
// status and decoding failure in entity.ErrProviderUnavailable.
type Client interface {
	Name() string
	// FetchRate returns the rate for one unit of source in target on date.
	FetchRate(ctx context.Context, source, target string, amount decimal.Decimal, date time.Time) (decimal.Decimal, error)
	// FetchHistorical returns the rates of base against each target on date. Targets the
	// source does not quote are absent from the result.
	FetchHistorical(ctx context.Context, base string, targets []string, date time.Time) (map[string]decimal.Decimal, error)
	// FetchTimeseries returns one rate per quoted day in [start, end], keyed by UTC day.
	FetchTimeseries(ctx context.Context, base, target string, start, end time.Time) (map[time.Time]decimal.Decimal, error)
}

// CurrencyLister is implemented by clients able to enumerate the currencies they quote.
type CurrencyLister interface {
	FetchCurrencies(ctx context.Context) ([]entity.Currency, error)
}
