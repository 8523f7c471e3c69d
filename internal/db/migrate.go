// Package db owns schema migrations and the LISTEN/NOTIFY bridge that turns
// database change notifications into WebSocket events.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx as the database/sql driver goose runs on
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/dbpool"
)

// MigrationState describes one embedded migration against the live schema.
type MigrationState struct {
	Version   int64
	File      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator applies the embedded tenants/records/filters schema.
type Migrator struct {
	log      *logrus.Logger
	sqlDB    *sql.DB
	provider *goose.Provider
}

// NewMigrator opens a database/sql handle on the pool's DSN for goose.
// Close releases it.
func NewMigrator(pool *dbpool.Pool, log *logrus.Logger, fsys fs.FS) (*Migrator, error) {
	sqlDB, err := sql.Open("pgx", pool.ConnString())
	if err != nil {
		return nil, fmt.Errorf("opening migration handle: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	return &Migrator{log: log, sqlDB: sqlDB, provider: provider}, nil
}

// Up applies pending migrations and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrating schema: %w", err)
	}

	for _, r := range results {
		if r.Error != nil {
			return 0, fmt.Errorf("migration %s: %w", r.Source.Path, r.Error)
		}

		m.log.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"file":     r.Source.Path,
			"duration": r.Duration,
		}).Info("schema migration applied")
	}

	return len(results), nil
}

// Status lists every embedded migration in version order.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading migration status: %w", err)
	}

	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationState{
			Version:   s.Source.Version,
			File:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}

	return out, nil
}

// Close releases the migration handle.
func (m *Migrator) Close() error {
	return m.sqlDB.Close()
}

// RunMigrations brings the schema up to date; the server calls it at boot.
func RunMigrations(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger, fsys fs.FS) error {
	m, err := NewMigrator(pool, log, fsys)
	if err != nil {
		return err
	}
	defer m.Close()

	n, err := m.Up(ctx)
	if err != nil {
		return err
	}

	if n == 0 {
		log.WithField("schema_version", SchemaVersion()).Debug("schema current")
	}

	return nil
}
