package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fxrate-service/internal/entity"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const upsertRateSuffix = `
    ON CONFLICT (source_currency_id, target_currency_id, valuation_date) DO UPDATE SET
        rate_value = EXCLUDED.rate_value,
        updated_at = NOW()
`

var rateColumns = []string{"s.code", "t.code", "r.valuation_date", "r.rate_value::text", "r.updated_at"}

func selectRates() sq.SelectBuilder {
	return psql.
		Select(rateColumns...).
		From("exchange_rates r").
		Join("currencies s ON s.id = r.source_currency_id").
		Join("currencies t ON t.id = r.target_currency_id").
		Where("r.deleted_at IS NULL")
}

func findRateQuery(source, target string, date time.Time) sq.SelectBuilder {
	return selectRates().
		Where(sq.Eq{"s.code": source, "t.code": target, "r.valuation_date": entity.Day(date)}).
		Limit(1)
}

func findRangeQuery(source, target string, start, end time.Time) sq.SelectBuilder {
	return selectRates().
		Where(sq.Eq{"s.code": source, "t.code": target}).
		Where(sq.GtOrEq{"r.valuation_date": entity.Day(start)}).
		Where(sq.LtOrEq{"r.valuation_date": entity.Day(end)}).
		OrderBy("r.valuation_date ASC")
}

// upsertRateQuery resolves both currency ids and writes the rate in one statement,
// so an unknown or soft-deleted code yields zero affected rows instead of a foreign key error.
func upsertRateQuery(rate entity.ExchangeRate) sq.InsertBuilder {
	ids := sq.Select("s.id", "t.id").
		Column("?::date", rate.ValuationDate).
		Column("?::numeric", rate.RateValue).
		From("currencies s").
		Join("currencies t ON t.code = ? AND t.deleted_at IS NULL", rate.TargetCode).
		Where(sq.Eq{"s.code": rate.SourceCode}).
		Where("s.deleted_at IS NULL")

	return psql.Insert("exchange_rates").
		Columns("source_currency_id", "target_currency_id", "valuation_date", "rate_value").
		Select(ids).
		Suffix(upsertRateSuffix)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRate(row rowScanner) (entity.ExchangeRate, error) {
	var (
		rate  entity.ExchangeRate
		value string
	)
	if err := row.Scan(&rate.SourceCode, &rate.TargetCode, &rate.ValuationDate, &value, &rate.UpdatedAt); err != nil {
		return rate, err
	}
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return rate, fmt.Errorf("parse rate value %q: %w", value, err)
	}
	rate.RateValue = dec
	rate.ValuationDate = entity.Day(rate.ValuationDate)
	return rate, nil
}

func (r *PostgresRepo) FindRate(ctx context.Context, source, target string, date time.Time) (*entity.ExchangeRate, error) {
	fields := logrus.Fields{"source": source, "target": target, "date": date.Format(entity.DateLayout)}
	r.logger.WithFields(fields).Debug("Looking up exchange rate")

	query, args, err := findRateQuery(source, target, date).ToSql()
	if err != nil {
		r.logger.WithError(err).Error("Failed to build select query")
		return nil, fmt.Errorf("build select: %w", err)
	}

	rate, err := scanRate(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.WithError(err).WithFields(fields).Error("Failed to query exchange rate")
		return nil, fmt.Errorf("query exchange rate: %w", err)
	}

	return &rate, nil
}

func (r *PostgresRepo) FindRange(ctx context.Context, source, target string, start, end time.Time) ([]entity.ExchangeRate, error) {
	fields := logrus.Fields{
		"source": source,
		"target": target,
		"start":  start.Format(entity.DateLayout),
		"end":    end.Format(entity.DateLayout),
	}
	r.logger.WithFields(fields).Debug("Looking up exchange rate range")

	query, args, err := findRangeQuery(source, target, start, end).ToSql()
	if err != nil {
		r.logger.WithError(err).Error("Failed to build range query")
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).WithFields(fields).Error("Failed to query exchange rate range")
		return nil, fmt.Errorf("query exchange rate range: %w", err)
	}
	defer rows.Close()

	var rates []entity.ExchangeRate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exchange rate: %w", err)
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchange rates: %w", err)
	}

	return rates, nil
}

func (r *PostgresRepo) UpsertRate(ctx context.Context, source, target string, date time.Time, value decimal.Decimal) error {
	rate := entity.NewExchangeRate(source, target, date, value)
	fields := logrus.Fields{
		"source": source,
		"target": target,
		"date":   rate.ValuationDate.Format(entity.DateLayout),
		"value":  rate.RateValue.StringFixed(entity.StoragePrecision),
	}

	query, args, err := upsertRateQuery(rate).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert for %s/%s: %w", source, target, err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).WithFields(fields).Error("Failed to upsert exchange rate")
		return fmt.Errorf("upsert exchange rate: %w", mapWriteError(err))
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("upsert %s/%s: %w", source, target, entity.ErrCurrencyNotFound)
	}

	r.logger.WithFields(fields).Debug("Stored exchange rate")
	return nil
}

// UpsertRates writes all rates in one transaction. Rates whose currencies are unknown
// are skipped by the statement and excluded from the returned count.
func (r *PostgresRepo) UpsertRates(ctx context.Context, rates []entity.ExchangeRate) (int64, error) {
	if len(rates) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rate := range rates {
		rate = entity.NewExchangeRate(rate.SourceCode, rate.TargetCode, rate.ValuationDate, rate.RateValue)
		query, args, err := upsertRateQuery(rate).ToSql()
		if err != nil {
			return 0, fmt.Errorf("build upsert for %s/%s: %w", rate.SourceCode, rate.TargetCode, err)
		}
		batch.Queue(query, args...)
	}

	stored, err := r.execBatch(ctx, "exchange rates", batch)
	if err != nil {
		return 0, err
	}

	r.logger.Infof("Successfully stored %d of %d exchange rates", stored, len(rates))
	return stored, nil
}
