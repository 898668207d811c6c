package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/fx"

	"github.com/polkiloo/plotcatalog/internal/config"
	"github.com/polkiloo/plotcatalog/internal/storage"
)

func TestModuleProvidesUseCases(t *testing.T) {
	cfg := &config.Config{DatabaseURI: "sqlite://" + filepath.Join(t.TempDir(), "catalog.db"), DefaultSourceCRS: "EPSG:4326"}

	var (
		orders  *OrderLifecycle
		catalog *CatalogUseCase
		imports *ImportUseCase
	)
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg, discardLogger()),
		fx.Provide(func() context.Context { return context.Background() }),
		storage.Module,
		Module,
		fx.Populate(&orders, &catalog, &imports),
	)
	if err := app.Err(); err != nil {
		t.Fatalf("unexpected fx error: %v", err)
	}
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer app.Stop(context.Background())

	if orders == nil || catalog == nil || imports == nil {
		t.Fatal("expected use cases to be provided")
	}
	if imports.defaultCRS != "EPSG:4326" {
		t.Fatalf("expected default crs from config, got %q", imports.defaultCRS)
	}
}

func TestModuleRejectsBrokenAliasFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	if err := os.WriteFile(path, []byte("district: [unclosed"), 0o600); err != nil {
		t.Fatalf("write alias file: %v", err)
	}
	cfg := &config.Config{DatabaseURI: "sqlite://" + filepath.Join(t.TempDir(), "catalog.db"), AliasFile: path}

	var imports *ImportUseCase
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg, discardLogger()),
		fx.Provide(func() context.Context { return context.Background() }),
		storage.Module,
		Module,
		fx.Populate(&imports),
	)
	if app.Err() == nil {
		t.Fatal("expected alias file error")
	}
}
