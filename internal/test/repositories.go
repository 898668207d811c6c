package test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/domain/repository"
)

// PlotRepositoryStub stores plots in-memory keyed by plot code.
type PlotRepositoryStub struct {
	mu sync.Mutex

	Plots    map[string]*model.LandPlot
	Err      error
	CodesErr error
	InsertFn func(context.Context, *model.LandPlot) error
	SearchFn func(context.Context, model.PlotFilter) ([]model.LandPlot, error)
	StatsFn  func(context.Context) (*model.CatalogStats, error)

	Inserts int
	Updates int
}

// NewPlotRepositoryStub constructs stub repository with initialized map.
func NewPlotRepositoryStub() *PlotRepositoryStub {
	return &PlotRepositoryStub{Plots: make(map[string]*model.LandPlot)}
}

// Add seeds a plot directly, bypassing counters.
func (s *PlotRepositoryStub) Add(plot model.LandPlot) *model.LandPlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Plots == nil {
		s.Plots = make(map[string]*model.LandPlot)
	}
	if plot.ID == uuid.Nil {
		plot.ID = uuid.New()
	}
	if plot.Status == "" {
		plot.Status = model.PlotStatusAvailable
	}
	s.Plots[plot.PlotCode] = &plot
	return &plot
}

// Search returns all plots ordered by code unless overridden.
func (s *PlotRepositoryStub) Search(ctx context.Context, filter model.PlotFilter) ([]model.LandPlot, error) {
	if s.SearchFn != nil {
		return s.SearchFn(ctx, filter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]model.LandPlot, 0, len(s.Plots))
	for _, p := range s.Plots {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.District != "" && !strings.EqualFold(p.District, filter.District) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlotCode < out[j].PlotCode })
	return out, nil
}

// GetByID returns plot with the identifier or not found.
func (s *PlotRepositoryStub) GetByID(ctx context.Context, id uuid.UUID) (*model.LandPlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, p := range s.Plots {
		if p.ID == id {
			plot := *p
			return &plot, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

// GetByCode returns plot with the code or not found.
func (s *PlotRepositoryStub) GetByCode(ctx context.Context, code string) (*model.LandPlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if p, ok := s.Plots[code]; ok {
		plot := *p
		return &plot, nil
	}
	return nil, domainErrors.ErrNotFound
}

// FindByFingerprint returns the first plot of the dataset with the fingerprint.
func (s *PlotRepositoryStub) FindByFingerprint(ctx context.Context, dataset, fingerprint string) (*model.LandPlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	codes := make([]string, 0, len(s.Plots))
	for code := range s.Plots {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		p := s.Plots[code]
		if p.Dataset == dataset && p.Fingerprint == fingerprint {
			plot := *p
			return &plot, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

// CodesWithPrefix lists stored codes starting with prefix.
func (s *PlotRepositoryStub) CodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CodesErr != nil {
		return nil, s.CodesErr
	}
	var out []string
	for code := range s.Plots {
		if strings.HasPrefix(code, prefix) {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Insert stores a new plot, rejecting duplicate codes.
func (s *PlotRepositoryStub) Insert(ctx context.Context, plot *model.LandPlot) error {
	if s.InsertFn != nil {
		if err := s.InsertFn(ctx, plot); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if s.Plots == nil {
		s.Plots = make(map[string]*model.LandPlot)
	}
	if _, exists := s.Plots[plot.PlotCode]; exists {
		return fmt.Errorf("duplicate plot code %s", plot.PlotCode)
	}
	now := time.Now().UTC()
	stored := *plot
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.Plots[plot.PlotCode] = &stored
	s.Inserts++
	return nil
}

// UpdateContent replaces content fields, keeping status.
func (s *PlotRepositoryStub) UpdateContent(ctx context.Context, plot *model.LandPlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	current, ok := s.Plots[plot.PlotCode]
	if !ok || current.ID != plot.ID {
		return domainErrors.ErrNotFound
	}
	updated := *plot
	updated.Status = current.Status
	updated.Dataset = current.Dataset
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.Plots[plot.PlotCode] = &updated
	s.Updates++
	return nil
}

// Stats counts stored plots per status.
func (s *PlotRepositoryStub) Stats(ctx context.Context) (*model.CatalogStats, error) {
	if s.StatsFn != nil {
		return s.StatsFn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &model.CatalogStats{}
	for _, p := range s.Plots {
		stats.TotalPlots++
		stats.TotalAreaHectares = stats.TotalAreaHectares.Add(p.AreaHectares)
		switch p.Status {
		case model.PlotStatusAvailable:
			stats.AvailablePlots++
		case model.PlotStatusPending:
			stats.PendingPlots++
		case model.PlotStatusTaken:
			stats.TakenPlots++
		}
	}
	return stats, nil
}

// OrderRepositoryStub allows tests to customize order reads.
type OrderRepositoryStub struct {
	GetByIDFn func(context.Context, uuid.UUID) (*model.OrderView, error)
	ListFn    func(context.Context, model.OrderFilter) ([]model.OrderView, error)
	Orders    []model.OrderView
}

// GetByID returns matched order either via override or stored slice.
func (s *OrderRepositoryStub) GetByID(ctx context.Context, id uuid.UUID) (*model.OrderView, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	for _, o := range s.Orders {
		if o.ID == id {
			order := o
			return &order, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

// List returns orders from configured slice.
func (s *OrderRepositoryStub) List(ctx context.Context, filter model.OrderFilter) ([]model.OrderView, error) {
	if s.ListFn != nil {
		return s.ListFn(ctx, filter)
	}
	return s.Orders, nil
}

// ImportRepositoryStub keeps import records by dataset.
type ImportRepositoryStub struct {
	mu      sync.Mutex
	Records map[string]model.ImportRecord
	SaveErr error
	Saved   []model.ImportRecord
}

// Save upserts the record by dataset.
func (s *ImportRepositoryStub) Save(ctx context.Context, record *model.ImportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if s.Records == nil {
		s.Records = make(map[string]model.ImportRecord)
	}
	s.Records[record.Dataset] = *record
	s.Saved = append(s.Saved, *record)
	return nil
}

// List returns records ordered by dataset.
func (s *ImportRepositoryStub) List(ctx context.Context) ([]model.ImportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ImportRecord, 0, len(s.Records))
	for _, r := range s.Records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dataset < out[j].Dataset })
	return out, nil
}

// GetByDataset returns the stored record or not found.
func (s *ImportRepositoryStub) GetByDataset(ctx context.Context, dataset string) (*model.ImportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.Records[dataset]; ok {
		return &r, nil
	}
	return nil, domainErrors.ErrNotFound
}

// TransactorStub applies lifecycle transactions to in-memory state. A
// transaction works on copies and only commits when fn succeeds.
type TransactorStub struct {
	mu sync.Mutex

	PlotStatus map[uuid.UUID]model.PlotStatus
	Orders     map[uuid.UUID]model.Order
	Err        error

	Commits   int
	Rollbacks int
}

// NewTransactorStub constructs a stub with initialized state.
func NewTransactorStub() *TransactorStub {
	return &TransactorStub{
		PlotStatus: make(map[uuid.UUID]model.PlotStatus),
		Orders:     make(map[uuid.UUID]model.Order),
	}
}

// WithinTransaction runs fn serially against a snapshot of the state.
func (s *TransactorStub) WithinTransaction(ctx context.Context, fn func(context.Context, repository.LifecycleTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	tx := &memoryTx{
		plots:  make(map[uuid.UUID]model.PlotStatus, len(s.PlotStatus)),
		orders: make(map[uuid.UUID]model.Order, len(s.Orders)),
	}
	for k, v := range s.PlotStatus {
		tx.plots[k] = v
	}
	for k, v := range s.Orders {
		tx.orders[k] = v
	}

	if err := fn(ctx, tx); err != nil {
		s.Rollbacks++
		return err
	}
	s.PlotStatus, s.Orders = tx.plots, tx.orders
	s.Commits++
	return nil
}

type memoryTx struct {
	plots  map[uuid.UUID]model.PlotStatus
	orders map[uuid.UUID]model.Order
}

func (t *memoryTx) SwapPlotStatus(ctx context.Context, plotID uuid.UUID, from, to model.PlotStatus) error {
	current, ok := t.plots[plotID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	if current != from {
		return domainErrors.ErrStatusConflict
	}
	t.plots[plotID] = to
	return nil
}

func (t *memoryTx) InsertOrder(ctx context.Context, order *model.Order) error {
	for _, o := range t.orders {
		if o.PlotID == order.PlotID && o.Status == model.OrderStatusPending {
			return domainErrors.ErrPlotUnavailable
		}
	}
	t.orders[order.ID] = *order
	return nil
}

func (t *memoryTx) LockOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	o, ok := t.orders[orderID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &o, nil
}

func (t *memoryTx) SetOrderStatus(ctx context.Context, order *model.Order) error {
	if _, ok := t.orders[order.ID]; !ok {
		return domainErrors.ErrNotFound
	}
	t.orders[order.ID] = *order
	return nil
}

func (t *memoryTx) CountPendingOrders(ctx context.Context, plotID uuid.UUID, exclude uuid.UUID) (int, error) {
	n := 0
	for id, o := range t.orders {
		if id != exclude && o.PlotID == plotID && o.Status == model.OrderStatusPending {
			n++
		}
	}
	return n, nil
}

var (
	_ repository.PlotRepository   = (*PlotRepositoryStub)(nil)
	_ repository.OrderRepository  = (*OrderRepositoryStub)(nil)
	_ repository.ImportRepository = (*ImportRepositoryStub)(nil)
	_ repository.Transactor       = (*TransactorStub)(nil)
)
