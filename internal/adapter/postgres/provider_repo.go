package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fxrate-service/internal/entity"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

var providerColumns = []string{
	"id", "provider_name", "provider_url", "is_active", "priority",
	"COALESCE(credentials, '{}'::jsonb)::text", "created_at",
}

func listActiveProvidersQuery() sq.SelectBuilder {
	return psql.
		Select(providerColumns...).
		From("providers").
		Where(sq.Eq{"is_active": true}).
		Where("deleted_at IS NULL").
		OrderBy("priority ASC", "id ASC")
}

func getProviderByNameQuery(name string) sq.SelectBuilder {
	return psql.
		Select(providerColumns...).
		From("providers").
		Where(sq.Eq{"provider_name": name}).
		Where("deleted_at IS NULL").
		Limit(1)
}

func scanProvider(row rowScanner) (entity.Provider, error) {
	var (
		p     entity.Provider
		creds string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.URL, &p.IsActive, &p.Priority, &creds, &p.CreatedAt); err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(creds), &p.Credentials); err != nil {
		return p, fmt.Errorf("decode credentials of %s: %w", p.Name, err)
	}
	return p, nil
}

func (r *PostgresRepo) ListActiveProviders(ctx context.Context) ([]entity.Provider, error) {
	query, args, err := listActiveProvidersQuery().ToSql()
	if err != nil {
		r.logger.WithError(err).Error("Failed to build select query")
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to query providers")
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var providers []entity.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}

	return providers, nil
}

// GetProviderByName returns the provider regardless of its active flag.
func (r *PostgresRepo) GetProviderByName(ctx context.Context, name string) (*entity.Provider, error) {
	query, args, err := getProviderByNameQuery(name).ToSql()
	if err != nil {
		r.logger.WithError(err).Error("Failed to build select query")
		return nil, fmt.Errorf("build select: %w", err)
	}

	p, err := scanProvider(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.WithError(err).WithField("provider", name).Error("Failed to query provider")
		return nil, fmt.Errorf("query provider: %w", err)
	}

	return &p, nil
}
