package db

import (
	"database/sql"
	"embed"

	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunMigrations applies the embedded schema migrations to the database at dsn
func RunMigrations(dsn string, log logger.Logger) error {
	const op = "db.RunMigrations"

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer sqlDB.Close()

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, op)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return errors.Wrap(err, op)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, op)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("Database schema is up to date", nil)
			return nil
		}
		return errors.Wrap(err, op)
	}

	version, _, _ := m.Version()
	log.Info("Migrations applied successfully", map[string]interface{}{"version": version})
	return nil
}
