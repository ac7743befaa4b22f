package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"fxrate-service/internal/entity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) (*PostgresRepo, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()

	repo := NewPostgresRepo(mock, logger)
	return repo, mock
}

var (
	day1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
)

func rateRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"source", "target", "valuation_date", "rate_value", "updated_at"})
}

func TestFindRate(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	updated := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	query, args, err := findRateQuery("USD", "EUR", day1).ToSql()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnRows(rateRows().AddRow("USD", "EUR", day1, "0.910000", updated))

	rate, err := repo.FindRate(ctx, "USD", "EUR", day1)
	require.NoError(t, err)
	assert.Equal(t, "USD", rate.SourceCode)
	assert.Equal(t, "EUR", rate.TargetCode)
	assert.Equal(t, day1, rate.ValuationDate)
	assert.Equal(t, "0.910000", rate.RateValue.StringFixed(entity.StoragePrecision))
	assert.Equal(t, updated, rate.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindRate_TruncatesDate(t *testing.T) {
	query, args, err := findRateQuery("USD", "EUR", day1.Add(15*time.Hour)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "r.deleted_at IS NULL")
	assert.Contains(t, args, day1)
}

func TestFindRate_NotFound(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	query, args, err := findRateQuery("USD", "EUR", day1).ToSql()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnError(pgx.ErrNoRows)

	rate, err := repo.FindRate(ctx, "USD", "EUR", day1)
	assert.Nil(t, rate)
	assert.Equal(t, ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindRate_Error(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	query, args, err := findRateQuery("USD", "EUR", day1).ToSql()
	require.NoError(t, err)

	expectedErr := errors.New("database error")
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnError(expectedErr)

	rate, err := repo.FindRate(ctx, "USD", "EUR", day1)
	assert.Nil(t, rate)
	assert.ErrorContains(t, err, expectedErr.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindRange(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	query, args, err := findRangeQuery("USD", "EUR", day1, day3).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "ORDER BY r.valuation_date ASC")

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnRows(rateRows().
			AddRow("USD", "EUR", day1, "0.910000", now).
			AddRow("USD", "EUR", day2, "0.920000", now).
			AddRow("USD", "EUR", day3, "0.930000", now))

	rates, err := repo.FindRange(ctx, "USD", "EUR", day1, day3)
	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, day1, rates[0].ValuationDate)
	assert.Equal(t, day3, rates[2].ValuationDate)
	assert.True(t, rates[1].RateValue.Equal(decimal.RequireFromString("0.92")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindRange_Empty(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	query, args, err := findRangeQuery("USD", "EUR", day1, day3).ToSql()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnRows(rateRows())

	rates, err := repo.FindRange(ctx, "USD", "EUR", day1, day3)
	require.NoError(t, err)
	assert.Empty(t, rates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindRange_BadRateValue(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	query, args, err := findRangeQuery("USD", "EUR", day1, day1).ToSql()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnRows(rateRows().AddRow("USD", "EUR", day1, "not-a-number", time.Now()))

	_, err = repo.FindRange(ctx, "USD", "EUR", day1, day1)
	assert.ErrorContains(t, err, "parse rate value")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRateQuery_ResolvesCurrencyIDsInline(t *testing.T) {
	rate := entity.NewExchangeRate("USD", "EUR", day1, decimal.RequireFromString("0.91"))

	query, args, err := upsertRateQuery(rate).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "INSERT INTO exchange_rates (source_currency_id,target_currency_id,valuation_date,rate_value) SELECT s.id, t.id, $1::date, $2::numeric FROM currencies s JOIN currencies t ON t.code = $3 AND t.deleted_at IS NULL WHERE s.code = $4 AND s.deleted_at IS NULL")
	assert.Contains(t, query, "ON CONFLICT (source_currency_id, target_currency_id, valuation_date) DO UPDATE SET")
	require.Len(t, args, 4)
	assert.Equal(t, day1, args[0])
	assert.Equal(t, "EUR", args[2])
	assert.Equal(t, "USD", args[3])
}

func TestUpsertRate(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	value := decimal.RequireFromString("1.23456789")
	query, args, err := upsertRateQuery(entity.NewExchangeRate("USD", "EUR", day1, value)).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "1.234568", args[1].(decimal.Decimal).StringFixed(entity.StoragePrecision))

	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnResult(pgconn.NewCommandTag("INSERT 0 1"))

	err = repo.UpsertRate(ctx, "USD", "EUR", day1, value)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRate_SameKeyTwiceUpdates(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	for _, v := range []string{"0.91", "0.95"} {
		value := decimal.RequireFromString(v)
		query, args, err := upsertRateQuery(entity.NewExchangeRate("USD", "EUR", day1, value)).ToSql()
		require.NoError(t, err)
		mock.ExpectExec(regexp.QuoteMeta(query)).
			WithArgs(args...).
			WillReturnResult(pgconn.NewCommandTag("INSERT 0 1"))
	}

	require.NoError(t, repo.UpsertRate(ctx, "USD", "EUR", day1, decimal.RequireFromString("0.91")))
	require.NoError(t, repo.UpsertRate(ctx, "USD", "EUR", day1, decimal.RequireFromString("0.95")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRate_UnknownCurrency(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	value := decimal.RequireFromString("0.91")
	query, args, err := upsertRateQuery(entity.NewExchangeRate("USD", "XXX", day1, value)).ToSql()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnResult(pgconn.NewCommandTag("INSERT 0 0"))

	err = repo.UpsertRate(ctx, "USD", "XXX", day1, value)
	assert.ErrorIs(t, err, entity.ErrCurrencyNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRate_UniqueViolation(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	value := decimal.RequireFromString("0.91")
	query, args, err := upsertRateQuery(entity.NewExchangeRate("USD", "EUR", day1, value)).ToSql()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "uniq_exchange_rate_pair_date"})

	err = repo.UpsertRate(ctx, "USD", "EUR", day1, value)
	assert.ErrorIs(t, err, entity.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRates(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	rates := []entity.ExchangeRate{
		entity.NewExchangeRate("USD", "EUR", day1, decimal.RequireFromString("0.91")),
		entity.NewExchangeRate("USD", "EUR", day2, decimal.RequireFromString("0.92")),
	}

	mock.ExpectBegin()
	eb := mock.ExpectBatch()
	for _, rate := range rates {
		query, args, err := upsertRateQuery(rate).ToSql()
		require.NoError(t, err)
		eb.ExpectExec(regexp.QuoteMeta(query)).
			WithArgs(args...).
			WillReturnResult(pgconn.NewCommandTag("INSERT 0 1"))
	}
	mock.ExpectCommit()

	stored, err := repo.UpsertRates(ctx, rates)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRates_Empty(t *testing.T) {
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	stored, err := repo.UpsertRates(context.Background(), nil)
	assert.NoError(t, err)
	assert.Zero(t, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRates_ErrorInBatch(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	rates := []entity.ExchangeRate{
		entity.NewExchangeRate("USD", "EUR", day1, decimal.RequireFromString("0.91")),
		entity.NewExchangeRate("USD", "EUR", day2, decimal.RequireFromString("0.92")),
	}

	mock.ExpectBegin()
	eb := mock.ExpectBatch()

	query1, args1, err := upsertRateQuery(rates[0]).ToSql()
	require.NoError(t, err)
	eb.ExpectExec(regexp.QuoteMeta(query1)).
		WithArgs(args1...).
		WillReturnResult(pgconn.NewCommandTag("INSERT 0 1"))

	query2, args2, err := upsertRateQuery(rates[1]).ToSql()
	require.NoError(t, err)
	expectedErr := errors.New("insert error")
	eb.ExpectExec(regexp.QuoteMeta(query2)).
		WithArgs(args2...).
		WillReturnError(expectedErr)

	mock.ExpectRollback()

	stored, err := repo.UpsertRates(ctx, rates)
	assert.Error(t, err)
	assert.ErrorContains(t, err, expectedErr.Error())
	assert.Zero(t, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRates_BeginError(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	_, err := repo.UpsertRates(ctx, []entity.ExchangeRate{
		entity.NewExchangeRate("USD", "EUR", day1, decimal.RequireFromString("0.91")),
	})
	assert.ErrorContains(t, err, "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapWriteError(t *testing.T) {
	assert.ErrorIs(t, mapWriteError(&pgconn.PgError{Code: pgUniqueViolation}), entity.ErrDuplicateKey)
	assert.ErrorIs(t, mapWriteError(&pgconn.PgError{Code: pgForeignKeyViolation}), entity.ErrCurrencyNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, mapWriteError(other))
}
