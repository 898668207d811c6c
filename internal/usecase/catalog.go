package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/domain/repository"
)

// CatalogUseCase serves read access to the plot catalog.
type CatalogUseCase struct {
	plots repository.PlotRepository
}

// NewCatalogUseCase constructs CatalogUseCase.
func NewCatalogUseCase(plots repository.PlotRepository) *CatalogUseCase {
	return &CatalogUseCase{plots: plots}
}

// Search validates the filter and returns one page of matching plots
// ordered by plot code.
func (u *CatalogUseCase) Search(ctx context.Context, filter model.PlotFilter) ([]model.LandPlot, error) {
	filter, err := ValidatePlotFilter(filter)
	if err != nil {
		return nil, err
	}
	return u.plots.Search(ctx, filter)
}

// All walks every page of the filter and returns the concatenated result.
// Paging fields of the filter are ignored.
func (u *CatalogUseCase) All(ctx context.Context, filter model.PlotFilter) ([]model.LandPlot, error) {
	filter.Limit, filter.Offset = MaxPageSize, 0
	filter, err := ValidatePlotFilter(filter)
	if err != nil {
		return nil, err
	}

	var out []model.LandPlot
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := u.plots.Search(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < filter.Limit {
			return out, nil
		}
		filter.Offset += len(page)
	}
}

func (u *CatalogUseCase) Plot(ctx context.Context, id uuid.UUID) (*model.LandPlot, error) {
	return u.plots.GetByID(ctx, id)
}

func (u *CatalogUseCase) PlotByCode(ctx context.Context, code string) (*model.LandPlot, error) {
	return u.plots.GetByCode(ctx, strings.TrimSpace(code))
}

func (u *CatalogUseCase) Stats(ctx context.Context) (*model.CatalogStats, error) {
	return u.plots.Stats(ctx)
}
