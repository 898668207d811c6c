package usecase

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/plotcatalog/internal/config"
	"github.com/polkiloo/plotcatalog/internal/domain/repository"
	"github.com/polkiloo/plotcatalog/internal/geometry"
	"github.com/polkiloo/plotcatalog/internal/ingest"
)

// Module provides core business use cases to the fx container.
var Module = fx.Provide(
	NewOrderLifecycle,
	NewCatalogUseCase,
	geometry.NewNormalizer,
	newMapper,
	newPipeline,
	newImportUseCase,
)

func newMapper(cfg *config.Config) (*ingest.Mapper, error) {
	aliases, err := ingest.LoadAliases(cfg.AliasFile)
	if err != nil {
		return nil, err
	}
	return ingest.NewMapper(aliases), nil
}

func newPipeline(plots repository.PlotRepository, normalizer *geometry.Normalizer, mapper *ingest.Mapper, cfg *config.Config, logger *slog.Logger) *ingest.Pipeline {
	return ingest.NewPipeline(plots, normalizer, mapper, ingest.Options{TrustSourceArea: cfg.TrustSourceArea}, logger)
}

func newImportUseCase(pipeline *ingest.Pipeline, imports repository.ImportRepository, cfg *config.Config, logger *slog.Logger) *ImportUseCase {
	return NewImportUseCase(pipeline, imports, cfg.DefaultSourceCRS, logger)
}
