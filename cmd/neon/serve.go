package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/neonviz/neon/internal/api"
	"github.com/neonviz/neon/internal/config"
	"github.com/neonviz/neon/internal/datastore"
	"github.com/neonviz/neon/internal/db"
	"github.com/neonviz/neon/internal/db/migrations"
	"github.com/neonviz/neon/internal/dbpool"
	"github.com/neonviz/neon/internal/filter"
	"github.com/neonviz/neon/internal/middleware"
	"github.com/neonviz/neon/internal/service"
	"github.com/neonviz/neon/internal/store"
	"github.com/neonviz/neon/internal/widgets"
	"github.com/neonviz/neon/internal/ws"
)

const (
	shutdownTimeout = 15 * time.Second
	badgerGCEvery   = 10 * time.Minute
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, newLogger(cfg))
		},
	}
}

// recordBackend is the datastore a deployment searches and ingests into.
type recordBackend interface {
	service.RecordSearcher
	service.RecordInserter
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	log.WithFields(logrus.Fields{
		"version":      config.Version,
		"filter_store": cfg.FilterStore,
		"widgets":      cfg.WidgetsFile,
		"auth":         !cfg.AuthDisabled,
	}).Info("starting neon")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(log)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	var (
		pool    *dbpool.Pool
		records recordBackend
		lookup  middleware.TenantLookup
		err     error
	)

	if cfg.HasDatabase() {
		pool, err = dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), dbpool.WithMaxConns(int32(cfg.DBMaxConns))) //nolint:gosec // bounded by config validation.
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
			return err
		}

		if err := db.NewNotifyBridge(log, pool, hub).Start(ctx); err != nil {
			return fmt.Errorf("starting notify bridge: %w", err)
		}

		base := store.Base{Pool: pool, Log: log}
		records = store.NewRecordStore(base)

		tenants := store.NewTenantStore(pool)
		if cfg.AuthDisabled {
			if err := tenants.EnsureTenant(ctx, store.LocalTenantID, "local"); err != nil {
				return err
			}
		} else {
			lookup = tenants
		}
	} else {
		records = datastore.NewMemory(hub)
	}

	filters, closeFilters, err := openFilters(ctx, g, cfg, log, pool, hub)
	if err != nil {
		return err
	}
	defer closeFilters()

	registry, err := widgets.LoadRegistry(cfg.WidgetsFile, log)
	if err != nil {
		return err
	}
	g.Go(func() error { return registry.Watch(ctx, widgets.DefaultDebounce) })

	taxonomySvc := service.NewTaxonomyService(filters, records, registry, log, service.WithSearchLimit(cfg.SearchLimit))
	filterSvc := service.NewFilterService(filters, log)
	recordSvc := service.NewRecordService(records, taxonomySvc, log)

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:            log,
		Pool:           pool,
		Hub:            hub,
		Taxonomy:       taxonomySvc,
		Filters:        filterSvc,
		Records:        recordSvc,
		TenantLookup:   lookup,
		LocalTenant:    store.LocalTenantID,
		CORSOrigins:    cfg.CORSOrigins,
		Version:        config.Version,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	runServer(ctx, g, log, &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}, hub.Shutdown)
	runServer(ctx, g, log, &http.Server{
		Addr:              cfg.MetricsAddr(),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}, nil)

	return g.Wait()
}

// openFilters builds the filter collection over the configured store. With
// PostgreSQL, changes are published through pg_notify and reach the hub via
// the notify bridge; otherwise they go to the hub directly.
func openFilters(
	ctx context.Context, g *errgroup.Group, cfg *config.Config, log *logrus.Logger, pool *dbpool.Pool, hub *ws.Hub,
) (*filter.Collection, func(), error) {
	switch cfg.FilterStore {
	case config.FilterStorePostgres:
		base := store.Base{Pool: pool, Log: log}
		return filter.NewCollection(store.NewFilterStore(base), log, filter.WithBroadcaster(store.NewNotifier(base))), func() {}, nil

	case config.FilterStoreBadger:
		bs, err := filter.OpenBadger(filter.BadgerConfig{Path: cfg.BadgerPath}, log)
		if err != nil {
			return nil, nil, err
		}

		g.Go(func() error {
			bs.RunGC(ctx, badgerGCEvery)
			return nil
		})

		closeFn := func() {
			if err := bs.Close(); err != nil {
				log.WithError(err).Warn("closing badger filter store")
			}
		}

		return filter.NewCollection(bs, log, filter.WithBroadcaster(hub)), closeFn, nil

	default:
		return filter.NewCollection(filter.NewMemoryStore(), log, filter.WithBroadcaster(hub)), func() {}, nil
	}
}

// runServer serves srv until ctx is done, then shuts it down. beforeShutdown
// runs first so long-lived connections can be drained.
func runServer(ctx context.Context, g *errgroup.Group, log *logrus.Logger, srv *http.Server, beforeShutdown func()) {
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving %s: %w", srv.Addr, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if beforeShutdown != nil {
			beforeShutdown()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})
}
