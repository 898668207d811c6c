package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/domain/repository"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	st, err := New(context.Background(), filepath.Join(t.TempDir(), "catalog.db"), logger)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

func square(lon, lat, size float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{{lon, lat}, {lon + size, lat}, {lon + size, lat + size}, {lon, lat + size}, {lon, lat}}}}
}

func newPlot(code string, geom orb.MultiPolygon) *model.LandPlot {
	return &model.LandPlot{
		ID:           uuid.New(),
		PlotCode:     code,
		Status:       model.PlotStatusAvailable,
		AreaHectares: decimal.RequireFromString("1.2345"),
		District:     "Kinondoni",
		Ward:         "Mbezi",
		Village:      "Mbuyuni",
		Dataset:      "mbuyuni",
		Geometry:     geom,
		Fingerprint:  "fp-" + code,
		Attributes:   map[string]any{"owner": "Juma"},
	}
}

func insertPlot(t *testing.T, st *Storage, plot *model.LandPlot) *model.LandPlot {
	t.Helper()
	if err := st.Plots().Insert(context.Background(), plot); err != nil {
		t.Fatalf("insert %s: %v", plot.PlotCode, err)
	}
	return plot
}

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	if _, err := New(context.Background(), "  ", logger); err == nil {
		t.Fatal("expected error for empty path")
	}

	path := filepath.Join(t.TempDir(), "nested", "dir", "catalog.db")
	st, err := New(context.Background(), path, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Logger() != logger {
		t.Fatal("expected storage to keep the injected logger")
	}
	if err := st.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check: %v", err)
	}
	st.Close()

	reopened, err := New(context.Background(), path, logger)
	if err != nil {
		t.Fatalf("reopen with existing schema: %v", err)
	}
	reopened.Close()
}

func TestPlotRepositoryInsertAndGet(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()
	plot := insertPlot(t, st, newPlot("MBY-0001", square(39, -6, 0.001)))

	if plot.CreatedAt.IsZero() || !plot.CreatedAt.Equal(plot.UpdatedAt) {
		t.Fatalf("expected timestamps to be set, got %v %v", plot.CreatedAt, plot.UpdatedAt)
	}

	byID, err := st.Plots().GetByID(ctx, plot.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.PlotCode != "MBY-0001" || byID.Status != model.PlotStatusAvailable {
		t.Fatalf("unexpected plot %+v", byID)
	}
	if !byID.AreaHectares.Equal(decimal.RequireFromString("1.2345")) {
		t.Fatalf("unexpected area %s", byID.AreaHectares)
	}
	if byID.Attributes["owner"] != "Juma" || len(byID.Geometry) != 1 {
		t.Fatalf("unexpected content %+v", byID)
	}
	if !byID.CreatedAt.Equal(plot.CreatedAt) {
		t.Fatalf("expected created_at %v, got %v", plot.CreatedAt, byID.CreatedAt)
	}

	if _, err := st.Plots().GetByCode(ctx, "MBY-0001"); err != nil {
		t.Fatalf("get by code: %v", err)
	}
	found, err := st.Plots().FindByFingerprint(ctx, "mbuyuni", "fp-MBY-0001")
	if err != nil || found.ID != plot.ID {
		t.Fatalf("find by fingerprint: %v %+v", err, found)
	}
	if _, err := st.Plots().FindByFingerprint(ctx, "other", "fp-MBY-0001"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found for other dataset, got %v", err)
	}
	if _, err := st.Plots().GetByID(ctx, uuid.New()); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	dup := newPlot("MBY-0001", square(39.1, -6, 0.001))
	err = st.Plots().Insert(ctx, dup)
	var conflict *domainErrors.DuplicateCodeConflict
	if !errors.As(err, &conflict) || conflict.Code != "MBY-0001" {
		t.Fatalf("expected duplicate code conflict, got %v", err)
	}
}

func TestPlotRepositoryUpdateContent(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()
	plot := insertPlot(t, st, newPlot("A-1", square(39, -6, 0.001)))

	err := st.WithinTransaction(ctx, func(ctx context.Context, tx repository.LifecycleTx) error {
		return tx.SwapPlotStatus(ctx, plot.ID, model.PlotStatusAvailable, model.PlotStatusPending)
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}

	moved := *plot
	moved.Geometry = square(35, -8, 0.002)
	moved.Fingerprint = "fp-moved"
	moved.Village = "Goba"
	moved.Status = model.PlotStatusAvailable
	if err := st.Plots().UpdateContent(ctx, &moved); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := st.Plots().GetByCode(ctx, "A-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.PlotStatusPending {
		t.Fatalf("content update must not touch status, got %s", got.Status)
	}
	if got.Village != "Goba" || got.Fingerprint != "fp-moved" {
		t.Fatalf("unexpected content %+v", got)
	}

	old, err := st.Plots().Search(ctx, model.PlotFilter{BBox: &orb.Bound{Min: orb.Point{38.9, -6.1}, Max: orb.Point{39.1, -5.9}}})
	if err != nil {
		t.Fatalf("search old bound: %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("expected spatial index to follow the new geometry, got %d plots", len(old))
	}
	moved2, err := st.Plots().Search(ctx, model.PlotFilter{BBox: &orb.Bound{Min: orb.Point{34.9, -8.1}, Max: orb.Point{35.1, -7.9}}})
	if err != nil || len(moved2) != 1 {
		t.Fatalf("expected plot at new bound, got %v %d", err, len(moved2))
	}

	missing := newPlot("A-2", square(39, -6, 0.001))
	if err := st.Plots().UpdateContent(ctx, missing); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPlotRepositorySearch(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	a := newPlot("A-1", square(39, -6, 0.01))
	b := newPlot("A-2", square(39.02, -6, 0.01))
	b.District, b.Ward, b.Village = "Ubungo", "Kimara", "Kilungule"
	b.AreaHectares = decimal.RequireFromString("5")
	// L-shaped plot whose bound covers the query box but whose area does not.
	c := newPlot("A-3", orb.MultiPolygon{{{{40, -6}, {40.1, -6}, {40.1, -5.99}, {40.01, -5.99}, {40.01, -5.9}, {40, -5.9}, {40, -6}}}})
	c.Status = model.PlotStatusTaken
	for _, p := range []*model.LandPlot{a, b, c} {
		insertPlot(t, st, p)
	}

	minArea := 2.0
	cases := []struct {
		name   string
		filter model.PlotFilter
		want   []string
	}{
		{"all", model.PlotFilter{}, []string{"A-1", "A-2", "A-3"}},
		{"exact district ignores case", model.PlotFilter{District: "kinondoni"}, []string{"A-1", "A-3"}},
		{"prefix village", model.PlotFilter{Village: "KIL", Match: model.MatchPrefix}, []string{"A-2"}},
		{"exact does not match prefix", model.PlotFilter{Village: "Kil"}, nil},
		{"status", model.PlotFilter{Status: model.PlotStatusTaken}, []string{"A-3"}},
		{"min area", model.PlotFilter{MinArea: &minArea}, []string{"A-2"}},
		{"bbox", model.PlotFilter{BBox: &orb.Bound{Min: orb.Point{39.015, -6.1}, Max: orb.Point{39.025, -5.9}}}, []string{"A-2"}},
		{"bbox refines bound candidates", model.PlotFilter{BBox: &orb.Bound{Min: orb.Point{40.05, -5.95}, Max: orb.Point{40.09, -5.92}}}, nil},
		{"page", model.PlotFilter{Limit: 1, Offset: 1}, []string{"A-2"}},
		{"bbox page", model.PlotFilter{BBox: &orb.Bound{Min: orb.Point{38, -7}, Max: orb.Point{41, -5}}, Limit: 2, Offset: 1}, []string{"A-2", "A-3"}},
		{"bbox page past end", model.PlotFilter{BBox: &orb.Bound{Min: orb.Point{38, -7}, Max: orb.Point{41, -5}}, Limit: 2, Offset: 5}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plots, err := st.Plots().Search(ctx, tc.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(plots) != len(tc.want) {
				t.Fatalf("expected %v, got %d plots", tc.want, len(plots))
			}
			for i, code := range tc.want {
				if plots[i].PlotCode != code {
					t.Fatalf("expected %s at %d, got %s", code, i, plots[i].PlotCode)
				}
			}
		})
	}
}

func TestPlotRepositoryCodesWithPrefix(t *testing.T) {
	st := newTestStorage(t)
	for i, code := range []string{"MBY_A-0001", "MBY_A-0002", "MBYXA-0003", "OTHER-0001"} {
		insertPlot(t, st, newPlot(code, square(39+float64(i)*0.01, -6, 0.001)))
	}

	codes, err := st.Plots().CodesWithPrefix(context.Background(), "MBY_A-")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes) != 2 || codes[0] != "MBY_A-0001" || codes[1] != "MBY_A-0002" {
		t.Fatalf("underscore must match literally, got %v", codes)
	}
}

func reserve(ctx context.Context, st *Storage, plotID uuid.UUID) (*model.Order, error) {
	order := &model.Order{
		ID:       uuid.New(),
		PlotID:   plotID,
		Customer: model.Customer{FirstName: "Asha", LastName: "Said", Phone: "+255700000000", Email: "asha@example.com"},
		Status:   model.OrderStatusPending,
	}
	err := st.WithinTransaction(ctx, func(ctx context.Context, tx repository.LifecycleTx) error {
		if err := tx.SwapPlotStatus(ctx, plotID, model.PlotStatusAvailable, model.PlotStatusPending); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func TestLifecycleTransactions(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()
	plot := insertPlot(t, st, newPlot("A-1", square(39, -6, 0.001)))

	order, err := reserve(ctx, st, plot.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := reserve(ctx, st, plot.ID); !errors.Is(err, domainErrors.ErrStatusConflict) {
		t.Fatalf("expected status conflict on second reserve, got %v", err)
	}
	if _, err := reserve(ctx, st, uuid.New()); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found for unknown plot, got %v", err)
	}

	err = st.WithinTransaction(ctx, func(ctx context.Context, tx repository.LifecycleTx) error {
		second := &model.Order{ID: uuid.New(), PlotID: plot.ID, Status: model.OrderStatusPending}
		return tx.InsertOrder(ctx, second)
	})
	if !errors.Is(err, domainErrors.ErrPlotUnavailable) {
		t.Fatalf("expected pending index to reject a second pending order, got %v", err)
	}

	err = st.WithinTransaction(ctx, func(ctx context.Context, tx repository.LifecycleTx) error {
		locked, err := tx.LockOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if locked.Status != model.OrderStatusPending || locked.Customer.Email != "asha@example.com" {
			return fmt.Errorf("unexpected locked order %+v", locked)
		}
		n, err := tx.CountPendingOrders(ctx, plot.ID, order.ID)
		if err != nil {
			return err
		}
		if n != 0 {
			return fmt.Errorf("expected no other pending orders, got %d", n)
		}
		locked.Status = model.OrderStatusApproved
		locked.Note = "paid"
		if err := tx.SetOrderStatus(ctx, locked); err != nil {
			return err
		}
		return tx.SwapPlotStatus(ctx, plot.ID, model.PlotStatusPending, model.PlotStatusTaken)
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	view, err := st.Orders().GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if view.Status != model.OrderStatusApproved || view.Note != "paid" || view.PlotCode != "A-1" {
		t.Fatalf("unexpected order %+v", view)
	}
	got, _ := st.Plots().GetByID(ctx, plot.ID)
	if got.Status != model.PlotStatusTaken {
		t.Fatalf("expected taken plot, got %s", got.Status)
	}

	err = st.WithinTransaction(ctx, func(ctx context.Context, tx repository.LifecycleTx) error {
		_, err := tx.LockOrder(ctx, uuid.New())
		return err
	})
	if !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	err = st.WithinTransaction(ctx, func(ctx context.Context, tx repository.LifecycleTx) error {
		return tx.SetOrderStatus(ctx, &model.Order{ID: uuid.New(), Status: model.OrderStatusRejected})
	})
	if !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWithinTransactionRollsBack(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()
	plot := insertPlot(t, st, newPlot("A-1", square(39, -6, 0.001)))

	boom := errors.New("boom")
	err := st.WithinTransaction(ctx, func(ctx context.Context, tx repository.LifecycleTx) error {
		if err := tx.SwapPlotStatus(ctx, plot.ID, model.PlotStatusAvailable, model.PlotStatusPending); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := st.Plots().GetByID(ctx, plot.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.PlotStatusAvailable {
		t.Fatalf("expected rollback to keep plot available, got %s", got.Status)
	}
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()
	plot := insertPlot(t, st, newPlot("A-1", square(39, -6, 0.001)))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := reserve(ctx, st, plot.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domainErrors.ErrStatusConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d conflicts", successes, conflicts)
	}

	views, err := st.Orders().List(ctx, model.OrderFilter{PlotID: &plot.ID, Status: model.OrderStatusPending})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected one pending order, got %d", len(views))
	}
}

func TestOrderRepositoryList(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	var orders []*model.Order
	for i := 0; i < 3; i++ {
		plot := insertPlot(t, st, newPlot(fmt.Sprintf("A-%d", i), square(39+float64(i)*0.01, -6, 0.001)))
		order, err := reserve(ctx, st, plot.ID)
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		orders = append(orders, order)
		time.Sleep(time.Millisecond)
	}

	all, err := st.Orders().List(ctx, model.OrderFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != orders[2].ID || all[0].PlotCode != "A-2" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	paged, err := st.Orders().List(ctx, model.OrderFilter{Limit: 1, Offset: 1})
	if err != nil || len(paged) != 1 || paged[0].ID != orders[1].ID {
		t.Fatalf("unexpected page %v %+v", err, paged)
	}

	none, err := st.Orders().List(ctx, model.OrderFilter{Status: model.OrderStatusApproved})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no approved orders, got %v %d", err, len(none))
	}

	if _, err := st.Orders().GetByID(ctx, uuid.New()); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestImportRepository(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()
	repo := st.Imports()

	first := &model.ImportRecord{
		Dataset:    "mbuyuni",
		SourceCRS:  "EPSG:32737",
		CodePrefix: "MBUYUNI",
		Inserted:   2,
		Skipped:    1,
		Failures:   []model.FeatureFailure{{Index: 1, Kind: "geometry", Message: "unrepairable self-intersection"}},
		Bound:      &orb.Bound{Min: orb.Point{39, -6}, Max: orb.Point{39.1, -5.9}},
		Status:     model.ImportStatusCompleted,
		ImportedAt: time.Now().Add(-time.Hour),
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.GetByDataset(ctx, "mbuyuni")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Inserted != 2 || len(got.Failures) != 1 || got.Bound == nil || got.Bound.Max[1] != -5.9 {
		t.Fatalf("unexpected record %+v", got)
	}

	rerun := *first
	rerun.Inserted, rerun.Unchanged, rerun.Failures, rerun.ImportedAt = 0, 2, nil, time.Now()
	if err := repo.Save(ctx, &rerun); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	other := &model.ImportRecord{Dataset: "goba", Status: model.ImportStatusFailed, Error: "cancelled", ImportedAt: time.Now().Add(-2 * time.Hour)}
	if err := repo.Save(ctx, other); err != nil {
		t.Fatalf("save other: %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Dataset != "mbuyuni" || list[0].Unchanged != 2 || len(list[0].Failures) != 0 {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[1].Bound != nil || list[1].Error != "cancelled" {
		t.Fatalf("unexpected failed record %+v", list[1])
	}

	if _, err := repo.GetByDataset(ctx, "missing"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPlotRepositoryStats(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	a := insertPlot(t, st, newPlot("A-1", square(39, -6, 0.001)))
	b := newPlot("A-2", square(39.01, -6, 0.001))
	b.Village = "goba"
	insertPlot(t, st, b)
	if _, err := reserve(ctx, st, a.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	stats, err := st.Plots().Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalPlots != 2 || stats.PendingPlots != 1 || stats.AvailablePlots != 1 || stats.TakenPlots != 0 {
		t.Fatalf("unexpected plot counters %+v", stats)
	}
	if stats.TotalOrders != 1 || stats.PendingOrders != 1 {
		t.Fatalf("unexpected order counters %+v", stats)
	}
	if stats.Districts != 1 || stats.Villages != 2 {
		t.Fatalf("unexpected location counters %+v", stats)
	}
	if !stats.TotalAreaHectares.Equal(decimal.RequireFromString("2.469")) {
		t.Fatalf("unexpected total area %s", stats.TotalAreaHectares)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if isUniqueViolation(errors.New("UNIQUE constraint failed: plot_orders.plot_id"), "") {
		t.Fatal("plain errors must not match")
	}
}
