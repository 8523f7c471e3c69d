package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/neonviz/neon/internal/config"
	"github.com/neonviz/neon/internal/db"
	"github.com/neonviz/neon/internal/db/migrations"
	"github.com/neonviz/neon/internal/dbpool"
	"github.com/neonviz/neon/internal/store"
)

var errNoDatabase = errors.New("DATABASE_URL is not set")

// connectDatabase loads the config and opens a small admin pool.
func connectDatabase(ctx context.Context) (*config.Config, *logrus.Logger, *dbpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	log := newLogger(cfg)

	if !cfg.HasDatabase() {
		return nil, nil, nil, errNoDatabase
	}

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(),
		dbpool.WithMaxConns(2),
		dbpool.WithApplicationName("neon-admin"),
		dbpool.WithStatementTimeout(5*time.Minute),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	return cfg, log, pool, nil
}

// openDatabase connects and applies pending migrations.
func openDatabase(ctx context.Context) (*config.Config, *logrus.Logger, *dbpool.Pool, error) {
	cfg, log, pool, err := connectDatabase(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	return cfg, log, pool, nil
}

func printMigrations(w io.Writer, states []db.MigrationState) {
	for _, s := range states {
		applied := "pending"
		if s.Applied {
			applied = "applied " + s.AppliedAt.UTC().Format(time.RFC3339)
		}

		fmt.Fprintf(w, "%03d  %-24s %s\n", s.Version, s.File, applied)
	}
}

func migrationStatus(ctx context.Context, w io.Writer) error {
	_, log, pool, err := connectDatabase(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	m, err := db.NewMigrator(pool, log, migrations.FS)
	if err != nil {
		return err
	}
	defer m.Close()

	states, err := m.Status(ctx)
	if err != nil {
		return err
	}

	printMigrations(w, states)

	return nil
}

func migrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if status {
				return migrationStatus(ctx, cmd.OutOrStdout())
			}

			_, log, pool, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			log.WithField("schema_version", db.SchemaVersion()).Info("database is up to date")
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "list migrations and whether each is applied")

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a tenant and print its API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, pool, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			tenantID, apiKey, err := store.NewTenantStore(pool).CreateTenant(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tenant_id: %s\n", tenantID)
			fmt.Fprintf(out, "api_key:   %s\n", apiKey)
			fmt.Fprintln(out, "The API key is shown once; store it now.")

			return nil
		},
	})

	return cmd
}
