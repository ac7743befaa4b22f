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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func currencyRows() *pgxmock.Rows {
	return pgxmock.NewRows(currencyColumns)
}

func TestGetCurrency(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	now := time.Now().UTC()
	query, args, err := getCurrencyQuery("USD").ToSql()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnRows(currencyRows().AddRow(int64(1), "USD", "US Dollar", "$", true, now, now))

	c, err := repo.GetCurrency(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, &entity.Currency{
		ID:                 1,
		Code:               "USD",
		Name:               "US Dollar",
		Symbol:             "$",
		LoadHistoricalData: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrency_NotFound(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	query, args, err := getCurrencyQuery("XXX").ToSql()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnError(pgx.ErrNoRows)

	c, err := repo.GetCurrency(ctx, "XXX")
	assert.Nil(t, c)
	assert.Equal(t, ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCurrencies(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	now := time.Now().UTC()
	query, _, err := listCurrenciesQuery().ToSql()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WillReturnRows(currencyRows().
			AddRow(int64(2), "EUR", "Euro", "€", false, now, now).
			AddRow(int64(1), "USD", "US Dollar", "$", true, now, now))

	currencies, err := repo.ListCurrencies(ctx)
	require.NoError(t, err)
	require.Len(t, currencies, 2)
	assert.Equal(t, "EUR", currencies[0].Code)
	assert.Equal(t, "USD", currencies[1].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListHistoricalCurrencies(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	now := time.Now().UTC()
	query, args, err := listHistoricalCurrenciesQuery().ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "load_historical_data = $1")

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnRows(currencyRows().AddRow(int64(1), "USD", "US Dollar", "$", true, now, now))

	currencies, err := repo.ListHistoricalCurrencies(ctx)
	require.NoError(t, err)
	require.Len(t, currencies, 1)
	assert.True(t, currencies[0].LoadHistoricalData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCurrencies_Error(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	query, _, err := listCurrenciesQuery().ToSql()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(query)).WillReturnError(errors.New("database error"))

	currencies, err := repo.ListCurrencies(ctx)
	assert.Nil(t, currencies)
	assert.ErrorContains(t, err, "query currencies")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCurrencies_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	currencies := []entity.Currency{
		{Code: "USD", Name: "US Dollar", Symbol: "$"},
		{Code: "EUR", Name: "Euro", Symbol: "€"},
	}

	mock.ExpectBegin()
	eb := mock.ExpectBatch()

	query1, args1, err := insertCurrencyQuery(currencies[0]).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query1, "ON CONFLICT (code) DO NOTHING")
	eb.ExpectExec(regexp.QuoteMeta(query1)).
		WithArgs(args1...).
		WillReturnResult(pgconn.NewCommandTag("INSERT 0 0"))

	query2, args2, err := insertCurrencyQuery(currencies[1]).ToSql()
	require.NoError(t, err)
	eb.ExpectExec(regexp.QuoteMeta(query2)).
		WithArgs(args2...).
		WillReturnResult(pgconn.NewCommandTag("INSERT 0 1"))

	mock.ExpectCommit()

	inserted, err := repo.InsertCurrencies(ctx, currencies)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetLoadHistorical(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	codes := []string{"USD", "EUR"}
	query, args, err := setLoadHistoricalQuery(codes, true).ToSql()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(args...).
		WillReturnResult(pgconn.NewCommandTag("UPDATE 2"))

	updated, err := repo.SetLoadHistorical(ctx, codes, true)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetLoadHistorical_NoCodes(t *testing.T) {
	repo, mock := setupTestRepo(t)
	defer mock.Close()

	updated, err := repo.SetLoadHistorical(context.Background(), nil, true)
	assert.NoError(t, err)
	assert.Zero(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}
