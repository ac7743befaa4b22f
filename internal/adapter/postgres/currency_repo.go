package postgres

import (
	"context"
	"errors"
	"fmt"

	"fxrate-service/internal/entity"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

var currencyColumns = []string{"id", "code", "name", "symbol", "load_historical_data", "created_at", "updated_at"}

func selectCurrencies() sq.SelectBuilder {
	return psql.
		Select(currencyColumns...).
		From("currencies").
		Where("deleted_at IS NULL")
}

func getCurrencyQuery(code string) sq.SelectBuilder {
	return selectCurrencies().Where(sq.Eq{"code": code}).Limit(1)
}

func listCurrenciesQuery() sq.SelectBuilder {
	return selectCurrencies().OrderBy("code ASC")
}

func listHistoricalCurrenciesQuery() sq.SelectBuilder {
	return selectCurrencies().Where(sq.Eq{"load_historical_data": true}).OrderBy("code ASC")
}

func insertCurrencyQuery(c entity.Currency) sq.InsertBuilder {
	return psql.Insert("currencies").
		Columns("code", "name", "symbol").
		Values(c.Code, c.Name, c.Symbol).
		Suffix("ON CONFLICT (code) DO NOTHING")
}

func setLoadHistoricalQuery(codes []string, enabled bool) sq.UpdateBuilder {
	return psql.Update("currencies").
		Set("load_historical_data", enabled).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"code": codes})
}

func scanCurrency(row rowScanner) (entity.Currency, error) {
	var c entity.Currency
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Symbol, &c.LoadHistoricalData, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *PostgresRepo) GetCurrency(ctx context.Context, code string) (*entity.Currency, error) {
	query, args, err := getCurrencyQuery(code).ToSql()
	if err != nil {
		r.logger.WithError(err).Error("Failed to build select query")
		return nil, fmt.Errorf("build select: %w", err)
	}

	c, err := scanCurrency(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.WithError(err).WithField("code", code).Error("Failed to query currency")
		return nil, fmt.Errorf("query currency: %w", err)
	}

	return &c, nil
}

func (r *PostgresRepo) ListCurrencies(ctx context.Context) ([]entity.Currency, error) {
	return r.queryCurrencies(ctx, listCurrenciesQuery())
}

func (r *PostgresRepo) ListHistoricalCurrencies(ctx context.Context) ([]entity.Currency, error) {
	return r.queryCurrencies(ctx, listHistoricalCurrenciesQuery())
}

func (r *PostgresRepo) queryCurrencies(ctx context.Context, qb sq.SelectBuilder) ([]entity.Currency, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		r.logger.WithError(err).Error("Failed to build select query")
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to query currencies")
		return nil, fmt.Errorf("query currencies: %w", err)
	}
	defer rows.Close()

	var currencies []entity.Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		currencies = append(currencies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currencies: %w", err)
	}

	return currencies, nil
}

// InsertCurrencies adds currencies that are not yet known. Existing codes are left untouched.
func (r *PostgresRepo) InsertCurrencies(ctx context.Context, currencies []entity.Currency) (int64, error) {
	if len(currencies) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range currencies {
		query, args, err := insertCurrencyQuery(c).ToSql()
		if err != nil {
			return 0, fmt.Errorf("build insert for %s: %w", c.Code, err)
		}
		batch.Queue(query, args...)
	}

	inserted, err := r.execBatch(ctx, "currencies", batch)
	if err != nil {
		return 0, err
	}

	r.logger.WithFields(logrus.Fields{
		"received": len(currencies),
		"inserted": inserted,
	}).Info("Imported currencies")
	return inserted, nil
}

func (r *PostgresRepo) SetLoadHistorical(ctx context.Context, codes []string, enabled bool) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}

	query, args, err := setLoadHistoricalQuery(codes, enabled).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).WithField("codes", codes).Error("Failed to update historical flag")
		return 0, fmt.Errorf("update historical flag: %w", err)
	}

	return ct.RowsAffected(), nil
}
