// Package storage selects the catalog backend from the database URI.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/fx"

	"github.com/polkiloo/plotcatalog/internal/config"
	"github.com/polkiloo/plotcatalog/internal/domain/repository"
	"github.com/polkiloo/plotcatalog/internal/storage/postgres"
	"github.com/polkiloo/plotcatalog/internal/storage/sqlite"
)

const sqliteScheme = "sqlite://"

// Module wires the configured backend and its repositories.
var Module = fx.Options(
	fx.Provide(newStore),
	fx.Provide(
		func(s repository.Store) repository.PlotRepository { return s.Plots() },
		func(s repository.Store) repository.OrderRepository { return s.Orders() },
		func(s repository.Store) repository.ImportRepository { return s.Imports() },
		func(s repository.Store) repository.Transactor { return s },
	),
	fx.Invoke(registerLifecycle),
)

// Open connects to postgres://, postgresql:// or sqlite://path URIs.
func Open(ctx context.Context, uri string, logger *slog.Logger) (repository.Store, error) {
	switch {
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		st, err := postgres.New(ctx, uri, logger)
		if err != nil {
			return nil, err
		}
		return st, nil
	case strings.HasPrefix(uri, sqliteScheme):
		st, err := sqlite.New(ctx, strings.TrimPrefix(uri, sqliteScheme), logger)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	scheme, _, _ := strings.Cut(uri, "://")
	return nil, fmt.Errorf("unsupported database scheme %q", scheme)
}

type storeParams struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

func newStore(p storeParams) (repository.Store, error) {
	return Open(p.Ctx, p.Config.DatabaseURI, p.Logger)
}

func registerLifecycle(lc fx.Lifecycle, store repository.Store) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			store.Close()
			return nil
		},
	})
}
