// Package dbpool opens and health-checks the PostgreSQL pool shared by the
// stores, the migrator and the LISTEN/NOTIFY bridge.
package dbpool

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultMaxConns is the query connection budget when none is configured.
const DefaultMaxConns = 20

type settings struct {
	maxConns         int32
	appName          string
	statementTimeout time.Duration
}

// Option adjusts how the pool is opened.
type Option func(*settings)

// WithMaxConns sets the query connection budget. One extra connection is
// always reserved for the LISTEN/NOTIFY bridge.
func WithMaxConns(n int32) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// WithStatementTimeout bounds every statement server-side.
func WithStatementTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.statementTimeout = d
		}
	}
}

// WithApplicationName labels the pool's sessions in pg_stat_activity.
func WithApplicationName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.appName = name
		}
	}
}

func (s *settings) apply(cfg *pgxpool.Config) {
	cfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(s.statementTimeout.Milliseconds(), 10)
	cfg.ConnConfig.RuntimeParams["application_name"] = s.appName

	cfg.MaxConns = s.maxConns + 1
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
}

// Pool is the neon connection pool. Stores reach PostgreSQL only through
// the methods below.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool opens the pool and verifies it can reach the database.
func NewPool(ctx context.Context, databaseURL string, opts ...Option) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	s := settings{maxConns: DefaultMaxConns, appName: "neon", statementTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&s)
	}
	s.apply(cfg)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Pool{pool: pool}, nil
}

// Acquire reserves a dedicated connection, used for LISTEN.
func (p *Pool) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	return p.pool.Acquire(ctx)
}

// Exec executes a statement that returns no rows.
func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

// QueryRow executes a query that returns at most one row.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// Begin starts a read-write transaction.
func (p *Pool) Begin(ctx context.Context) (pgx.Tx, error) {
	return p.pool.Begin(ctx)
}

// BeginReadOnly starts a read-only transaction.
func (p *Pool) BeginReadOnly(ctx context.Context) (pgx.Tx, error) {
	return p.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
}

// Ping verifies the pool can reach the database.
func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// HealthCheck round-trips a query and confirms each named table exists in
// the public schema.
func (p *Pool) HealthCheck(ctx context.Context, tables ...string) error {
	var one int
	if err := p.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("health check query: %w", err)
	}

	for _, table := range tables {
		var exists bool
		if err := p.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", "public."+table).Scan(&exists); err != nil {
			return fmt.Errorf("schema check: %w", err)
		}

		if !exists {
			return fmt.Errorf("schema check: %s table missing", table)
		}
	}

	return nil
}

// ConnString returns the connection string used to create the pool.
func (p *Pool) ConnString() string {
	return p.pool.Config().ConnString()
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.pool.Close()
}
