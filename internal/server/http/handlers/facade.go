package handlers

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

// PlotFacade describes catalog reads required by handlers.
type PlotFacade interface {
	SearchPlots(ctx context.Context, filter model.PlotFilter) ([]model.LandPlot, error)
	Plot(ctx context.Context, id uuid.UUID) (*model.LandPlot, error)
	PlotByCode(ctx context.Context, code string) (*model.LandPlot, error)
	Stats(ctx context.Context) (*model.CatalogStats, error)
	ExportPlots(ctx context.Context, filter model.PlotFilter, w io.Writer) error
}

// OrderFacade encapsulates order operations exposed via HTTP.
type OrderFacade interface {
	Reserve(ctx context.Context, plotID uuid.UUID, customer model.Customer) (*model.Order, error)
	Approve(ctx context.Context, orderID uuid.UUID, note string) (*model.Order, error)
	Reject(ctx context.Context, orderID uuid.UUID, note string) (*model.Order, error)
	Order(ctx context.Context, id uuid.UUID) (*model.OrderView, error)
	Orders(ctx context.Context, filter model.OrderFilter) ([]model.OrderView, error)
}

// ImportFacade provides dataset import operations.
type ImportFacade interface {
	SubmitImport(ctx context.Context, s model.ImportSubmission) (*model.ImportRecord, error)
	Imports(ctx context.Context) ([]model.ImportRecord, error)
	Import(ctx context.Context, dataset string) (*model.ImportRecord, error)
}

// CatalogFacade aggregates the full set of operations used across handlers.
type CatalogFacade interface {
	PlotFacade
	OrderFacade
	ImportFacade
	HealthChecker
}
