// Package db provides schema migration and the change notification bridge
// of the PostgreSQL backend.
//
// Migration files live in internal/db/migrations/ and are embedded via
// //go:embed. Up and down steps share one file (-- +goose Up / -- +goose Down).
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/db/migrations"
	"github.com/persistorai/spacestore/internal/dbpool"
)

// Migrate applies all pending embedded migrations.
func Migrate(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger) error {
	return RunMigrations(ctx, pool, log, migrations.FS)
}

// RunMigrations applies all pending migrations from the provided filesystem.
// The fsys should contain goose-annotated SQL files (e.g. "001_initial.sql").
func RunMigrations(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger, fsys fs.FS) error {
	provider, closeDB, err := newProvider(pool, fsys)
	if err != nil {
		return err
	}
	defer closeDB()

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
		}

		log.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"file":     r.Source.Path,
			"duration": r.Duration,
		}).Info("migration applied")
	}

	if len(results) == 0 {
		log.Debug("all migrations already applied")
	}

	return nil
}

// MigrationState is one row of Status.
type MigrationState struct {
	Version int64
	File    string
	Applied bool
}

// Status reports which embedded migrations are applied.
func Status(ctx context.Context, pool *dbpool.Pool) ([]MigrationState, error) {
	provider, closeDB, err := newProvider(pool, migrations.FS)
	if err != nil {
		return nil, err
	}
	defer closeDB()

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading migration status: %w", err)
	}

	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationState{
			Version: s.Source.Version,
			File:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}

	return out, nil
}

// newProvider wraps the pool's connection string in a *sql.DB, which goose
// requires, and builds a provider on it.
func newProvider(pool *dbpool.Pool, fsys fs.FS) (*goose.Provider, func(), error) {
	sqlDB, err := sql.Open("pgx", pool.ConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("opening sql.DB for migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		sqlDB.Close() //nolint:errcheck // best-effort close on setup failure.
		return nil, nil, fmt.Errorf("creating goose provider: %w", err)
	}

	return provider, func() { sqlDB.Close() }, nil //nolint:errcheck // best-effort close.
}
