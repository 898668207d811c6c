package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/polkiloo/plotcatalog/internal/adapter/featuresource"
	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/export"
	"github.com/polkiloo/plotcatalog/internal/ingest"
	testhelpers "github.com/polkiloo/plotcatalog/internal/test"
	"github.com/polkiloo/plotcatalog/internal/usecase"
)

type submitterStub struct {
	requests []usecase.ImportRequest
	err      error
}

func (s *submitterStub) Submit(req usecase.ImportRequest) error {
	if s.err != nil {
		return s.err
	}
	s.requests = append(s.requests, req)
	return nil
}

type sourceStub struct {
	collection *featuresource.Collection
	err        error
	urls       []string
}

func (s *sourceStub) Fetch(_ context.Context, rawURL string) (*featuresource.Collection, error) {
	s.urls = append(s.urls, rawURL)
	return s.collection, s.err
}

type facadeDeps struct {
	plots     *testhelpers.PlotRepositoryStub
	tx        *testhelpers.TransactorStub
	imports   *testhelpers.ImportRepositoryStub
	submitter *submitterStub
	source    *sourceStub
}

func newFacade(health HealthChecker) (*CatalogFacade, *facadeDeps) {
	deps := &facadeDeps{
		plots:     testhelpers.NewPlotRepositoryStub(),
		tx:        testhelpers.NewTransactorStub(),
		imports:   &testhelpers.ImportRepositoryStub{},
		submitter: &submitterStub{},
		source:    &sourceStub{},
	}
	logger := discardLogger()
	facade := NewCatalogFacade(
		usecase.NewCatalogUseCase(deps.plots),
		usecase.NewOrderLifecycle(deps.tx, &testhelpers.OrderRepositoryStub{}, logger),
		usecase.NewImportUseCase(&batchRunnerStub{}, deps.imports, "", logger),
		deps.submitter,
		deps.source,
		health,
		logger,
	)
	return facade, deps
}

const goodCollection = `{
	"type": "FeatureCollection",
	"crs": {"type": "name", "properties": {"name": "EPSG:21037"}},
	"features": [{
		"type": "Feature",
		"id": "GOBA-7",
		"geometry": {"type": "Polygon", "coordinates": [[[500000, 9250000], [500100, 9250000], [500100, 9250100], [500000, 9250100], [500000, 9250000]]]},
		"properties": {"village": "Goba"}
	}]
}`

func TestCatalogFacadeReads(t *testing.T) {
	facade, deps := newFacade(testhelpers.HealthStub{})
	plot := deps.plots.Add(model.LandPlot{PlotCode: "GOB-0001", District: "Kinondoni", AreaHectares: decimal.RequireFromString("1.5")})
	deps.plots.Add(model.LandPlot{PlotCode: "GOB-0002", District: "Ubungo", Status: model.PlotStatusTaken})

	plots, err := facade.SearchPlots(context.Background(), model.PlotFilter{District: "Kinondoni"})
	if err != nil || len(plots) != 1 || plots[0].ID != plot.ID {
		t.Fatalf("unexpected search result %v %v", plots, err)
	}

	got, err := facade.PlotByCode(context.Background(), " GOB-0001 ")
	if err != nil || got.ID != plot.ID {
		t.Fatalf("unexpected plot by code %v %v", got, err)
	}
	if _, err := facade.Plot(context.Background(), uuid.New()); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := facade.Stats(context.Background()); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if err := facade.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}

	unhealthy, _ := newFacade(testhelpers.HealthStub{Err: errors.New("down")})
	if err := unhealthy.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health error")
	}
}

func TestCatalogFacadeExportPlots(t *testing.T) {
	facade, deps := newFacade(testhelpers.HealthStub{})
	square := orb.MultiPolygon{{{{39.2, -6.7}, {39.201, -6.7}, {39.201, -6.699}, {39.2, -6.699}, {39.2, -6.7}}}}
	deps.plots.Add(model.LandPlot{PlotCode: "GOB-0001", Status: model.PlotStatusAvailable, Geometry: square})
	deps.plots.Add(model.LandPlot{PlotCode: "GOB-0002", Status: model.PlotStatusTaken, Geometry: square})

	var buf bytes.Buffer
	if err := facade.ExportPlots(context.Background(), model.PlotFilter{Status: model.PlotStatusTaken}, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })

	rows, err := f.GetRows(export.PlotsSheet)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header and one plot, got %d rows", len(rows))
	}
	if rows[1][1] != "GOB-0002" {
		t.Fatalf("unexpected exported code %q", rows[1][1])
	}

	deps.plots.Err = errors.New("db down")
	if err := facade.ExportPlots(context.Background(), model.PlotFilter{}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected search error to surface")
	}
}

func TestCatalogFacadeOrderLifecycle(t *testing.T) {
	facade, deps := newFacade(testhelpers.HealthStub{})
	plotID := uuid.New()
	deps.tx.PlotStatus[plotID] = model.PlotStatusAvailable

	order, err := facade.Reserve(context.Background(), plotID, testhelpers.RandomCustomer())
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := facade.Reserve(context.Background(), plotID, testhelpers.RandomCustomer()); !errors.Is(err, domainErrors.ErrPlotUnavailable) {
		t.Fatalf("expected plot unavailable, got %v", err)
	}

	approved, err := facade.Approve(context.Background(), order.ID, "paid")
	if err != nil || approved.Status != model.OrderStatusApproved {
		t.Fatalf("approve: %v %v", approved, err)
	}
	if deps.tx.PlotStatus[plotID] != model.PlotStatusTaken {
		t.Fatalf("expected plot taken, got %s", deps.tx.PlotStatus[plotID])
	}
	if _, err := facade.Reject(context.Background(), order.ID, ""); !errors.Is(err, domainErrors.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestCatalogFacadeSubmitImportPayload(t *testing.T) {
	facade, deps := newFacade(testhelpers.HealthStub{})

	record, err := facade.SubmitImport(context.Background(), model.ImportSubmission{
		Dataset:  "goba",
		Defaults: model.Location{District: "Kinondoni"},
		Payload:  []byte(goodCollection),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if record.Status != model.ImportStatusQueued || record.SourceCRS != "EPSG:21037" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.SourceHash == "" || record.FeatureCount != 1 {
		t.Fatalf("expected hash and feature count, got %+v", record)
	}

	if len(deps.submitter.requests) != 1 {
		t.Fatalf("expected one queued request, got %d", len(deps.submitter.requests))
	}
	req := deps.submitter.requests[0]
	if req.Defaults.District != "Kinondoni" || req.Features[0].Properties["plot_id"] != "GOBA-7" {
		t.Fatalf("unexpected request %+v", req)
	}

	stored, err := deps.imports.GetByDataset(context.Background(), "goba")
	if err != nil || stored.Status != model.ImportStatusQueued {
		t.Fatalf("expected stored queued record, got %v %v", stored, err)
	}

	// A declared CRS wins over the collection's.
	if _, err := facade.SubmitImport(context.Background(), model.ImportSubmission{
		Dataset:   "goba",
		SourceCRS: "EPSG:32737",
		Payload:   []byte(goodCollection),
	}); err != nil {
		t.Fatalf("submit with crs: %v", err)
	}
	if got := deps.submitter.requests[1].SourceCRS; got != "EPSG:32737" {
		t.Fatalf("expected declared crs, got %q", got)
	}
}

func TestCatalogFacadeSubmitImportURL(t *testing.T) {
	facade, deps := newFacade(testhelpers.HealthStub{})
	deps.source.collection = &featuresource.Collection{
		Features: []ingest.Feature{squareFeature()},
		Hash:     "abc",
	}

	record, err := facade.SubmitImport(context.Background(), model.ImportSubmission{
		Dataset:   "remote",
		SourceCRS: "EPSG:4326",
		SourceURL: " https://example.com/plots.geojson ",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if record.SourceHash != "abc" {
		t.Fatalf("expected source hash, got %q", record.SourceHash)
	}
	if len(deps.source.urls) != 1 || deps.source.urls[0] != "https://example.com/plots.geojson" {
		t.Fatalf("unexpected fetches %v", deps.source.urls)
	}

	deps.source.err = errors.New("connection refused")
	_, err = facade.SubmitImport(context.Background(), model.ImportSubmission{Dataset: "remote", SourceURL: "https://example.com/x"})
	if !errors.Is(err, domainErrors.ErrInvalidImport) {
		t.Fatalf("expected invalid import for fetch failure, got %v", err)
	}
}

func TestCatalogFacadeSubmitImportRejected(t *testing.T) {
	cases := []struct {
		name string
		sub  model.ImportSubmission
		want error
	}{
		{"nothing", model.ImportSubmission{Dataset: "d"}, domainErrors.ErrInvalidImport},
		{"both sources", model.ImportSubmission{Dataset: "d", SourceURL: "https://example.com", Payload: []byte(goodCollection)}, domainErrors.ErrInvalidImport},
		{"not a collection", model.ImportSubmission{Dataset: "d", Payload: []byte(`{"type":"Feature"}`)}, domainErrors.ErrInvalidImport},
		{"bad dataset", model.ImportSubmission{Dataset: "a/b", Payload: []byte(goodCollection)}, domainErrors.ErrInvalidImport},
		{"unknown crs", model.ImportSubmission{Dataset: "d", SourceCRS: "EPSG:2193", Payload: []byte(goodCollection)}, domainErrors.ErrUnsupportedCRS},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			facade, deps := newFacade(testhelpers.HealthStub{})
			if _, err := facade.SubmitImport(context.Background(), tc.sub); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(deps.submitter.requests) != 0 || len(deps.imports.Saved) != 0 {
				t.Fatal("rejected submissions must not be queued or recorded")
			}
		})
	}
}

func TestCatalogFacadeSubmitImportQueueFull(t *testing.T) {
	facade, deps := newFacade(testhelpers.HealthStub{})
	deps.submitter.err = domainErrors.ErrQueueFull

	_, err := facade.SubmitImport(context.Background(), model.ImportSubmission{Dataset: "goba", Payload: []byte(goodCollection)})
	if !errors.Is(err, domainErrors.ErrQueueFull) {
		t.Fatalf("expected queue full, got %v", err)
	}

	stored, err := deps.imports.GetByDataset(context.Background(), "goba")
	if err != nil {
		t.Fatalf("expected abandoned record, got %v", err)
	}
	if stored.Status != model.ImportStatusFailed || stored.Error == "" {
		t.Fatalf("expected failed record with error, got %+v", stored)
	}

	records, err := facade.Imports(context.Background())
	if err != nil || len(records) != 1 {
		t.Fatalf("unexpected imports %v %v", records, err)
	}
	if _, err := facade.Import(context.Background(), "missing"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
