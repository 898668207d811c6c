package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/plotcatalog/internal/adapter/featuresource"
	"github.com/polkiloo/plotcatalog/internal/app"
	"github.com/polkiloo/plotcatalog/internal/config"
	"github.com/polkiloo/plotcatalog/internal/logger"
	"github.com/polkiloo/plotcatalog/internal/server/http/handlers"
	"github.com/polkiloo/plotcatalog/internal/server/http/router"
	"github.com/polkiloo/plotcatalog/internal/storage"
	"github.com/polkiloo/plotcatalog/internal/usecase"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		storage.Module,
		featuresource.Module,
		usecase.Module,
		fx.Provide(func(f *app.CatalogFacade) handlers.CatalogFacade { return f }),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
