package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/polkiloo/plotcatalog/internal/adapter/featuresource"
	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/export"
	"github.com/polkiloo/plotcatalog/internal/usecase"
)

type ImportSubmitter interface {
	Submit(req usecase.ImportRequest) error
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type CatalogFacade struct {
	catalog *usecase.CatalogUseCase
	orders  *usecase.OrderLifecycle
	imports *usecase.ImportUseCase
	queue   ImportSubmitter
	source  featuresource.Source
	health  HealthChecker
	logger  *slog.Logger
}

func NewCatalogFacade(
	catalog *usecase.CatalogUseCase,
	orders *usecase.OrderLifecycle,
	imports *usecase.ImportUseCase,
	queue ImportSubmitter,
	source featuresource.Source,
	health HealthChecker,
	logger *slog.Logger,
) *CatalogFacade {
	return &CatalogFacade{
		catalog: catalog,
		orders:  orders,
		imports: imports,
		queue:   queue,
		source:  source,
		health:  health,
		logger:  logger,
	}
}

func (f *CatalogFacade) SearchPlots(ctx context.Context, filter model.PlotFilter) ([]model.LandPlot, error) {
	return f.catalog.Search(ctx, filter)
}

func (f *CatalogFacade) Plot(ctx context.Context, id uuid.UUID) (*model.LandPlot, error) {
	return f.catalog.Plot(ctx, id)
}

func (f *CatalogFacade) PlotByCode(ctx context.Context, code string) (*model.LandPlot, error) {
	return f.catalog.PlotByCode(ctx, code)
}

func (f *CatalogFacade) Stats(ctx context.Context) (*model.CatalogStats, error) {
	return f.catalog.Stats(ctx)
}

func (f *CatalogFacade) ExportPlots(ctx context.Context, filter model.PlotFilter, w io.Writer) error {
	plots, err := f.catalog.All(ctx, filter)
	if err != nil {
		return err
	}
	return export.WritePlots(w, plots)
}

func (f *CatalogFacade) Reserve(ctx context.Context, plotID uuid.UUID, customer model.Customer) (*model.Order, error) {
	return f.orders.Reserve(ctx, plotID, customer)
}

func (f *CatalogFacade) Approve(ctx context.Context, orderID uuid.UUID, note string) (*model.Order, error) {
	return f.orders.Approve(ctx, orderID, note)
}

func (f *CatalogFacade) Reject(ctx context.Context, orderID uuid.UUID, note string) (*model.Order, error) {
	return f.orders.Reject(ctx, orderID, note)
}

func (f *CatalogFacade) Order(ctx context.Context, id uuid.UUID) (*model.OrderView, error) {
	return f.orders.Order(ctx, id)
}

func (f *CatalogFacade) Orders(ctx context.Context, filter model.OrderFilter) ([]model.OrderView, error) {
	return f.orders.Orders(ctx, filter)
}

// SubmitImport decodes or fetches the collection, records the import as
// queued and hands it to the background queue.
func (f *CatalogFacade) SubmitImport(ctx context.Context, s model.ImportSubmission) (*model.ImportRecord, error) {
	collection, err := f.collect(ctx, s)
	if err != nil {
		return nil, err
	}

	crs := strings.TrimSpace(s.SourceCRS)
	if crs == "" {
		crs = collection.CRS
	}
	req, record, err := f.imports.Accept(ctx, usecase.ImportRequest{
		Dataset:    s.Dataset,
		SourceCRS:  crs,
		CodePrefix: s.CodePrefix,
		SourceHash: collection.Hash,
		Defaults:   s.Defaults,
		Features:   collection.Features,
	})
	if err != nil {
		return nil, err
	}

	if err := f.queue.Submit(req); err != nil {
		f.imports.Abandon(ctx, req, err)
		return nil, err
	}
	return record, nil
}

func (f *CatalogFacade) collect(ctx context.Context, s model.ImportSubmission) (*featuresource.Collection, error) {
	url := strings.TrimSpace(s.SourceURL)
	switch {
	case url != "" && len(s.Payload) > 0:
		return nil, fmt.Errorf("either features or source_url must be given, not both: %w", domainErrors.ErrInvalidImport)
	case url != "":
		c, err := f.source.Fetch(ctx, url)
		if err != nil {
			f.logger.Warn("fetch feature source failed", slog.String("dataset", s.Dataset), slog.String("error", err.Error()))
			return nil, fmt.Errorf("fetch %s: %v: %w", url, err, domainErrors.ErrInvalidImport)
		}
		return c, nil
	case len(s.Payload) > 0:
		return featuresource.Decode(s.Payload)
	}
	return nil, fmt.Errorf("features or source_url is required: %w", domainErrors.ErrInvalidImport)
}

func (f *CatalogFacade) Imports(ctx context.Context) ([]model.ImportRecord, error) {
	return f.imports.Imports(ctx)
}

func (f *CatalogFacade) Import(ctx context.Context, dataset string) (*model.ImportRecord, error) {
	return f.imports.ImportByDataset(ctx, dataset)
}

func (f *CatalogFacade) HealthCheck(ctx context.Context) error {
	return f.health.HealthCheck(ctx)
}
