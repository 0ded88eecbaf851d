// Package database runs the job store's schema migrations at startup.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/veridocs/trainforge/internal/logger"
)

const migrationsPath = "file://migrations/versioned"

// RunMigrations applies all pending migrations to the database at dsn.
// A dirty migration state aborts with instructions rather than guessing;
// a half-applied migration needs a human.
func RunMigrations(dsn string) error {
	ctx := context.Background()

	m, err := migrate.New(migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("database: create migrator: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.GetLogger(ctx).Infof("database has no migration history, starting from scratch")
	case err != nil:
		return fmt.Errorf("database: read migration version: %w", err)
	case dirty:
		return fmt.Errorf(
			"database: dirty migration state at version %d; a previous migration failed partway through. "+
				"Inspect the schema, then force the version back with `migrate force %d` and restart",
			version, int(version)-1)
	default:
		logger.GetLogger(ctx).Infof("database at migration version %d", version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("database: run migrations: %w", err)
	}

	newVersion, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("database: read migration version after upgrade: %w", err)
	}
	if newVersion != version {
		logger.GetLogger(ctx).Infof("database migrated from version %d to %d", version, newVersion)
	}
	return nil
}

// Version reports the current migration version and dirty flag for dsn.
func Version(dsn string) (uint, bool, error) {
	m, err := migrate.New(migrationsPath, dsn)
	if err != nil {
		return 0, false, fmt.Errorf("database: create migrator: %w", err)
	}
	defer m.Close()
	return m.Version()
}
