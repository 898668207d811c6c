package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

// PlotRepository describes catalog persistence for land plots.
// Status is never written through this interface; see LifecycleTx.
type PlotRepository interface {
	Search(ctx context.Context, filter model.PlotFilter) ([]model.LandPlot, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.LandPlot, error)
	GetByCode(ctx context.Context, code string) (*model.LandPlot, error)
	FindByFingerprint(ctx context.Context, dataset, fingerprint string) (*model.LandPlot, error)
	CodesWithPrefix(ctx context.Context, prefix string) ([]string, error)
	Insert(ctx context.Context, plot *model.LandPlot) error
	UpdateContent(ctx context.Context, plot *model.LandPlot) error
	Stats(ctx context.Context) (*model.CatalogStats, error)
}
