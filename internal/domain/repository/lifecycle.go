package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

// LifecycleTx exposes the mutations of the order state machine. All calls
// belong to one storage transaction.
type LifecycleTx interface {
	// SwapPlotStatus moves a plot from one status to another atomically.
	// Returns ErrNotFound for unknown plots and ErrStatusConflict when the
	// current status differs from "from".
	SwapPlotStatus(ctx context.Context, plotID uuid.UUID, from, to model.PlotStatus) error
	InsertOrder(ctx context.Context, order *model.Order) error
	// LockOrder reads an order and holds it for the rest of the transaction.
	LockOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	SetOrderStatus(ctx context.Context, order *model.Order) error
	CountPendingOrders(ctx context.Context, plotID uuid.UUID, exclude uuid.UUID) (int, error)
}

// Transactor runs fn inside a single storage transaction. Returning an
// error from fn rolls every write back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx LifecycleTx) error) error
}
