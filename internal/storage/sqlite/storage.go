// Package sqlite is the embedded catalog backend. Plot geometries are WKB
// blobs indexed by an R*Tree over their bounds.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/polkiloo/plotcatalog/internal/domain/repository"
)

// timeLayout sorts lexicographically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Storage acts as repository facade backed by a SQLite file.
type Storage struct {
	db     *sqlx.DB
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

// New opens the database file, creating it and its schema when missing.
func New(ctx context.Context, path string, logger *slog.Logger) (*Storage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	storage := &Storage{db: db, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.db != nil {
		_ = s.db.Close()
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
		`CREATE TABLE IF NOT EXISTS land_plots (
            rid INTEGER PRIMARY KEY,
            id TEXT UNIQUE NOT NULL,
            plot_code TEXT UNIQUE NOT NULL,
            status TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'pending', 'taken')),
            area_hectares REAL NOT NULL CHECK (area_hectares > 0),
            district TEXT NOT NULL,
            ward TEXT NOT NULL,
            village TEXT NOT NULL,
            dataset_name TEXT NOT NULL,
            geometry BLOB NOT NULL,
            fingerprint TEXT NOT NULL,
            attributes TEXT NOT NULL DEFAULT '{}',
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
        )`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS land_plots_rtree USING rtree(rid, min_lon, max_lon, min_lat, max_lat)`,
		`CREATE TABLE IF NOT EXISTS plot_orders (
            id TEXT PRIMARY KEY,
            plot_id TEXT NOT NULL REFERENCES land_plots(id),
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL,
            phone TEXT NOT NULL,
            email TEXT NOT NULL,
            status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
            note TEXT NOT NULL DEFAULT '',
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
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
            failures TEXT NOT NULL DEFAULT '[]',
            min_lon REAL,
            min_lat REAL,
            max_lon REAL,
            max_lat REAL,
            status TEXT NOT NULL,
            error TEXT NOT NULL DEFAULT '',
            imported_at TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_land_plots_location ON land_plots (LOWER(district), LOWER(ward), LOWER(village))`,
		`CREATE INDEX IF NOT EXISTS idx_land_plots_fingerprint ON land_plots (dataset_name, fingerprint)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_plot_orders_one_pending ON plot_orders (plot_id) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_plot_orders_status ON plot_orders (status, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// WithinTransaction runs a lifecycle event inside one immediate
// transaction, which holds the database write lock until it ends.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(context.Context, repository.LifecycleTx) error) error {
	return s.withinTx(ctx, func(tx *sqlx.Tx) error {
		return fn(ctx, &lifecycleTx{tx: tx})
	})
}

func (s *Storage) withinTx(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck verifies the database file is reachable.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Logger returns storage logger.
func (s *Storage) Logger() *slog.Logger {
	return s.logger
}

// isUniqueViolation matches a UNIQUE failure on the given "table.column".
func isUniqueViolation(err error, column string) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return false
	}
	return column == "" || strings.Contains(sqliteErr.Error(), column)
}

func stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseStamp(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

var _ repository.Store = (*Storage)(nil)
