package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"fxrate-service/pkg/config"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

// RunMigrations applies every pending "up" migration found under cfg.Migrations.Path.
func RunMigrations(cfg config.Config, logger *logrus.Logger) error {
	return RunMigrationsDSN(BuildDSN(cfg), cfg.Migrations.Path, logger)
}

func RunMigrationsDSN(dsn, path string, logger *logrus.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.WithError(cerr).Warn("Failed to close migration connection")
		}
	}()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping migration connection: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No new migrations to apply")
	} else {
		logger.WithField("path", path).Info("Database migrations applied")
	}
	return nil
}
