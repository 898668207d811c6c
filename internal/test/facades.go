package test

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

// PlotFacadeStub provides controllable behaviour for catalog endpoints.
type PlotFacadeStub struct {
	SearchFn     func(context.Context, model.PlotFilter) ([]model.LandPlot, error)
	PlotFn       func(context.Context, uuid.UUID) (*model.LandPlot, error)
	PlotByCodeFn func(context.Context, string) (*model.LandPlot, error)
	StatsFn      func(context.Context) (*model.CatalogStats, error)
	ExportFn     func(context.Context, model.PlotFilter, io.Writer) error
}

// SearchPlots delegates to SearchFn or returns no plots.
func (s PlotFacadeStub) SearchPlots(ctx context.Context, filter model.PlotFilter) ([]model.LandPlot, error) {
	if s.SearchFn != nil {
		return s.SearchFn(ctx, filter)
	}
	return nil, nil
}

// Plot delegates to PlotFn or returns an available plot with the given id.
func (s PlotFacadeStub) Plot(ctx context.Context, id uuid.UUID) (*model.LandPlot, error) {
	if s.PlotFn != nil {
		return s.PlotFn(ctx, id)
	}
	return &model.LandPlot{ID: id, PlotCode: "PLT-0001", Status: model.PlotStatusAvailable}, nil
}

// PlotByCode delegates to PlotByCodeFn or returns a plot with the given code.
func (s PlotFacadeStub) PlotByCode(ctx context.Context, code string) (*model.LandPlot, error) {
	if s.PlotByCodeFn != nil {
		return s.PlotByCodeFn(ctx, code)
	}
	return &model.LandPlot{ID: uuid.New(), PlotCode: code, Status: model.PlotStatusAvailable}, nil
}

// Stats delegates to StatsFn or returns empty counters.
func (s PlotFacadeStub) Stats(ctx context.Context) (*model.CatalogStats, error) {
	if s.StatsFn != nil {
		return s.StatsFn(ctx)
	}
	return &model.CatalogStats{}, nil
}

// ExportPlots delegates to ExportFn or writes a placeholder body.
func (s PlotFacadeStub) ExportPlots(ctx context.Context, filter model.PlotFilter, w io.Writer) error {
	if s.ExportFn != nil {
		return s.ExportFn(ctx, filter, w)
	}
	_, err := io.WriteString(w, "xlsx")
	return err
}

// OrderFacadeStub simulates order lifecycle operations.
type OrderFacadeStub struct {
	ReserveFn func(context.Context, uuid.UUID, model.Customer) (*model.Order, error)
	ApproveFn func(context.Context, uuid.UUID, string) (*model.Order, error)
	RejectFn  func(context.Context, uuid.UUID, string) (*model.Order, error)
	OrderFn   func(context.Context, uuid.UUID) (*model.OrderView, error)
	OrdersFn  func(context.Context, model.OrderFilter) ([]model.OrderView, error)
}

// Reserve returns a pending order for the plot unless overridden.
func (s OrderFacadeStub) Reserve(ctx context.Context, plotID uuid.UUID, customer model.Customer) (*model.Order, error) {
	if s.ReserveFn != nil {
		return s.ReserveFn(ctx, plotID, customer)
	}
	now := time.Unix(0, 0).UTC()
	return &model.Order{
		ID:        uuid.New(),
		PlotID:    plotID,
		Customer:  customer,
		Status:    model.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Approve returns an approved order unless overridden.
func (s OrderFacadeStub) Approve(ctx context.Context, orderID uuid.UUID, note string) (*model.Order, error) {
	if s.ApproveFn != nil {
		return s.ApproveFn(ctx, orderID, note)
	}
	return &model.Order{ID: orderID, Status: model.OrderStatusApproved, Note: note}, nil
}

// Reject returns a rejected order unless overridden.
func (s OrderFacadeStub) Reject(ctx context.Context, orderID uuid.UUID, note string) (*model.Order, error) {
	if s.RejectFn != nil {
		return s.RejectFn(ctx, orderID, note)
	}
	return &model.Order{ID: orderID, Status: model.OrderStatusRejected, Note: note}, nil
}

// Order delegates to OrderFn or returns a pending order view.
func (s OrderFacadeStub) Order(ctx context.Context, id uuid.UUID) (*model.OrderView, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, id)
	}
	return &model.OrderView{Order: model.Order{ID: id, Status: model.OrderStatusPending}, PlotCode: "PLT-0001"}, nil
}

// Orders delegates to OrdersFn or returns no orders.
func (s OrderFacadeStub) Orders(ctx context.Context, filter model.OrderFilter) ([]model.OrderView, error) {
	if s.OrdersFn != nil {
		return s.OrdersFn(ctx, filter)
	}
	return nil, nil
}

// ImportFacadeStub simulates dataset imports.
type ImportFacadeStub struct {
	SubmitFn  func(context.Context, model.ImportSubmission) (*model.ImportRecord, error)
	ImportsFn func(context.Context) ([]model.ImportRecord, error)
	ImportFn  func(context.Context, string) (*model.ImportRecord, error)
}

// SubmitImport returns a queued record unless overridden.
func (s ImportFacadeStub) SubmitImport(ctx context.Context, sub model.ImportSubmission) (*model.ImportRecord, error) {
	if s.SubmitFn != nil {
		return s.SubmitFn(ctx, sub)
	}
	return &model.ImportRecord{
		Dataset:    sub.Dataset,
		SourceCRS:  sub.SourceCRS,
		CodePrefix: sub.CodePrefix,
		Status:     model.ImportStatusQueued,
		ImportedAt: time.Unix(0, 0).UTC(),
	}, nil
}

// Imports delegates to ImportsFn or returns no records.
func (s ImportFacadeStub) Imports(ctx context.Context) ([]model.ImportRecord, error) {
	if s.ImportsFn != nil {
		return s.ImportsFn(ctx)
	}
	return nil, nil
}

// Import delegates to ImportFn or returns a completed record.
func (s ImportFacadeStub) Import(ctx context.Context, dataset string) (*model.ImportRecord, error) {
	if s.ImportFn != nil {
		return s.ImportFn(ctx, dataset)
	}
	return &model.ImportRecord{Dataset: dataset, Status: model.ImportStatusCompleted}, nil
}

// HealthStub reports the configured error from HealthCheck.
type HealthStub struct {
	Err error
}

// HealthCheck returns the configured error.
func (s HealthStub) HealthCheck(context.Context) error {
	return s.Err
}

// CatalogFacadeStub aggregates facade dependencies for HTTP layer tests.
type CatalogFacadeStub struct {
	PlotFacadeStub
	OrderFacadeStub
	ImportFacadeStub
	HealthStub
}
