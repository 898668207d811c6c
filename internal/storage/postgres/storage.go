package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polkiloo/plotcatalog/internal/domain/repository"
)

type pgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Storage acts as repository facade backed by PostgreSQL with PostGIS.
type Storage struct {
	pool   pgxPool
	logger *slog.Logger
}

type plotRepository struct {
	storage *Storage
}

type orderRepository struct {
	storage *Storage
}

type importRepository struct {
	storage *Storage
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Factory methods for domain repositories.
func (s *Storage) Plots() repository.PlotRepository {
	return &plotRepository{storage: s}
}

func (s *Storage) Orders() repository.OrderRepository {
	return &orderRepository{storage: s}
}

func (s *Storage) Imports() repository.ImportRepository {
	return &importRepository{storage: s}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis`,
		`CREATE TABLE IF NOT EXISTS land_plots (
            id UUID PRIMARY KEY,
            plot_code TEXT UNIQUE NOT NULL,
            status TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'pending', 'taken')),
            area_hectares NUMERIC(14,4) NOT NULL CHECK (area_hectares > 0),
            district TEXT NOT NULL,
            ward TEXT NOT NULL,
            village TEXT NOT NULL,
            dataset_name TEXT NOT NULL,
            geometry geometry(MultiPolygon, 4326) NOT NULL,
            fingerprint TEXT NOT NULL,
            attributes JSONB NOT NULL DEFAULT '{}'::jsonb,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS plot_orders (
            id UUID PRIMARY KEY,
            plot_id UUID NOT NULL REFERENCES land_plots(id),
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL,
            phone TEXT NOT NULL,
            email TEXT NOT NULL,
            status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
            note TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS plot_imports (
            dataset_name TEXT PRIMARY KEY,
            source_crs TEXT NOT NULL DEFAULT '',
            code_prefix TEXT NOT NULL DEFAULT '',
            source_hash TEXT NOT NULL DEFAULT '',
            feature_count INTEGER NOT NULL DEFAULT 0,
            inserted INTEGER NOT NULL DEFAULT 0,
            updated INTEGER NOT NULL DEFAULT 0,
            unchanged INTEGER NOT NULL DEFAULT 0,
            skipped INTEGER NOT NULL DEFAULT 0,
            failures JSONB NOT NULL DEFAULT '[]'::jsonb,
            min_lon DOUBLE PRECISION,
            min_lat DOUBLE PRECISION,
            max_lon DOUBLE PRECISION,
            max_lat DOUBLE PRECISION,
            status TEXT NOT NULL,
            error TEXT NOT NULL DEFAULT '',
            imported_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_land_plots_geometry ON land_plots USING GIST (geometry)`,
		`CREATE INDEX IF NOT EXISTS idx_land_plots_location ON land_plots (LOWER(district), LOWER(ward), LOWER(village))`,
		`CREATE INDEX IF NOT EXISTS idx_land_plots_fingerprint ON land_plots (dataset_name, fingerprint)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_plot_orders_one_pending ON plot_orders (plot_id) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_plot_orders_status ON plot_orders (status, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// WithinTransaction runs a lifecycle event inside one transaction. Row
// locks and conditional updates serialize competing events.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(context.Context, repository.LifecycleTx) error) error {
	return s.withinTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &lifecycleTx{tx: tx})
	})
}

func (s *Storage) withinTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Logger returns storage logger.
func (s *Storage) Logger() *slog.Logger {
	return s.logger
}

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

var _ repository.Store = (*Storage)(nil)
