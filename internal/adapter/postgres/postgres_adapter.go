package postgres

import (
	"context"
	"errors"
	"fmt"

	"fxrate-service/internal/entity"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var (
	psql        = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	ErrNotFound = errors.New("not found")
)

var (
	_ CurrencyRepository = (*PostgresRepo)(nil)
	_ RateRepository     = (*PostgresRepo)(nil)
	_ ProviderRepository = (*PostgresRepo)(nil)
)

type PostgresRepo struct {
	pool   Pool
	logger *logrus.Logger
}

func NewPostgresRepo(pool Pool, logger *logrus.Logger) *PostgresRepo {
	return &PostgresRepo{
		pool:   pool,
		logger: logger,
	}
}

// mapWriteError translates constraint violations into the domain error taxonomy.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", entity.ErrDuplicateKey, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", entity.ErrCurrencyNotFound, pgErr.ConstraintName)
	}
	return err
}

// execBatch runs queued statements in one transaction and returns the summed rows affected.
// Any statement error rolls the whole batch back.
func (r *PostgresRepo) execBatch(ctx context.Context, name string, batch *pgx.Batch) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to begin transaction for %s", name)
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	br := tx.SendBatch(ctx, batch)

	var batchErrs error
	var affected int64
	for i := 0; i < batch.Len(); i++ {
		ct, err := br.Exec()
		if err != nil {
			batchErrs = multierr.Append(batchErrs, mapWriteError(err))
			r.logger.WithError(err).Errorf("Failed batch exec for %s #%d", name, i)
			continue
		}
		affected += ct.RowsAffected()
	}

	if err := br.Close(); err != nil {
		batchErrs = multierr.Append(batchErrs, err)
		r.logger.WithError(err).Errorf("Failed to close batch results for %s", name)
	}

	if batchErrs != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.logger.WithError(rbErr).Errorf("Failed to rollback %s tx", name)
		}
		return 0, fmt.Errorf("batch exec/close errors for %s: %w", name, batchErrs)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithError(err).Errorf("Failed to commit %s tx", name)
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return affected, nil
}
