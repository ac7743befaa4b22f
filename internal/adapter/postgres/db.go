package postgres

import (
	"context"
	"fmt"
	"time"

	"fxrate-service/pkg/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const (
	connectAttempts       = 5
	connectAttemptTimeout = 5 * time.Second
)

func InitDBPool(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	for i := 0; i < connectAttempts; i++ {
		logger.Infof("DB connection attempt #%d", i+1)

		var pool *pgxpool.Pool
		pool, err = connect(ctx, poolConfig)
		if err == nil {
			logger.Infof("successfully connected to DB on attempt #%d", i+1)
			return pool, nil
		}
		logger.WithError(err).Warnf("failed to connect to DB on attempt #%d", i+1)

		if i < connectAttempts-1 {
			sleepDuration := time.Second * time.Duration(i+1)
			logger.Infof("waiting %s before next attempt", sleepDuration)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("connect to DB: %w", ctx.Err())
			case <-time.After(sleepDuration):
			}
		}
	}

	logger.Errorf("Failed to create and ping DB pool after %d attempts: %v", connectAttempts, err)
	return nil, fmt.Errorf("failed to create and ping DB pool after %d retries: %w", connectAttempts, err)
}

func connect(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, connectAttemptTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(attemptCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(attemptCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
