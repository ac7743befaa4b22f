package postgres

import (
	"context"
	"time"

	"fxrate-service/internal/entity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type CurrencyRepository interface {
	GetCurrency(ctx context.Context, code string) (*entity.Currency, error)
	ListCurrencies(ctx context.Context) ([]entity.Currency, error)
	ListHistoricalCurrencies(ctx context.Context) ([]entity.Currency, error)
	InsertCurrencies(ctx context.Context, currencies []entity.Currency) (int64, error)
	SetLoadHistorical(ctx context.Context, codes []string, enabled bool) (int64, error)
}

type RateRepository interface {
	FindRate(ctx context.Context, source, target string, date time.Time) (*entity.ExchangeRate, error)
	FindRange(ctx context.Context, source, target string, start, end time.Time) ([]entity.ExchangeRate, error)
	UpsertRate(ctx context.Context, source, target string, date time.Time, value decimal.Decimal) error
	UpsertRates(ctx context.Context, rates []entity.ExchangeRate) (int64, error)
}

type ProviderRepository interface {
	ListActiveProviders(ctx context.Context) ([]entity.Provider, error)
	GetProviderByName(ctx context.Context, name string) (*entity.Provider, error)
}

type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
}
