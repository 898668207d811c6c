package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/domain/repository"
)

// OrderLifecycle is the only writer of plot and order statuses. Every
// event runs in one storage transaction; competing events are serialized
// by the store, not by this type.
type OrderLifecycle struct {
	tx     repository.Transactor
	orders repository.OrderRepository
	logger *slog.Logger
}

// NewOrderLifecycle constructs OrderLifecycle.
func NewOrderLifecycle(tx repository.Transactor, orders repository.OrderRepository, logger *slog.Logger) *OrderLifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderLifecycle{tx: tx, orders: orders, logger: logger}
}

// Reserve creates a pending order for an available plot.
func (u *OrderLifecycle) Reserve(ctx context.Context, plotID uuid.UUID, customer model.Customer) (*model.Order, error) {
	customer, err := ValidateCustomer(customer)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		ID:       uuid.New(),
		PlotID:   plotID,
		Customer: customer,
		Status:   model.OrderStatusPending,
	}
	err = u.tx.WithinTransaction(ctx, func(ctx context.Context, tx repository.LifecycleTx) error {
		if err := tx.SwapPlotStatus(ctx, plotID, model.PlotStatusAvailable, model.PlotStatusPending); err != nil {
			if errors.Is(err, domainErrors.ErrStatusConflict) {
				return fmt.Errorf("plot %s: %w", plotID, domainErrors.ErrPlotUnavailable)
			}
			return err
		}
		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("plot reserved",
		slog.String("order_id", order.ID.String()),
		slog.String("plot_id", plotID.String()),
	)
	return order, nil
}

// Approve settles a pending order and marks its plot taken.
func (u *OrderLifecycle) Approve(ctx context.Context, orderID uuid.UUID, note string) (*model.Order, error) {
	return u.settle(ctx, orderID, model.OrderStatusApproved, note, func(ctx context.Context, tx repository.LifecycleTx, order *model.Order) error {
		return tx.SwapPlotStatus(ctx, order.PlotID, model.PlotStatusPending, model.PlotStatusTaken)
	})
}

// Reject settles a pending order. The plot becomes available again unless
// another pending order still holds it.
func (u *OrderLifecycle) Reject(ctx context.Context, orderID uuid.UUID, note string) (*model.Order, error) {
	return u.settle(ctx, orderID, model.OrderStatusRejected, note, func(ctx context.Context, tx repository.LifecycleTx, order *model.Order) error {
		others, err := tx.CountPendingOrders(ctx, order.PlotID, order.ID)
		if err != nil {
			return err
		}
		if others > 0 {
			return nil
		}
		return tx.SwapPlotStatus(ctx, order.PlotID, model.PlotStatusPending, model.PlotStatusAvailable)
	})
}

type plotStep func(ctx context.Context, tx repository.LifecycleTx, order *model.Order) error

func (u *OrderLifecycle) settle(ctx context.Context, orderID uuid.UUID, to model.OrderStatus, note string, step plotStep) (*model.Order, error) {
	var settled *model.Order
	err := u.tx.WithinTransaction(ctx, func(ctx context.Context, tx repository.LifecycleTx) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderStatusPending {
			return fmt.Errorf("order %s is %s: %w", orderID, order.Status, domainErrors.ErrInvalidTransition)
		}

		order.Status = to
		order.Note = note
		if err := tx.SetOrderStatus(ctx, order); err != nil {
			return err
		}
		if err := step(ctx, tx, order); err != nil {
			if errors.Is(err, domainErrors.ErrStatusConflict) {
				return fmt.Errorf("plot %s is not pending: %w", order.PlotID, domainErrors.ErrInvalidTransition)
			}
			return err
		}
		settled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("order settled",
		slog.String("order_id", settled.ID.String()),
		slog.String("plot_id", settled.PlotID.String()),
		slog.String("status", string(settled.Status)),
	)
	return settled, nil
}

// Order returns one order with its plot code.
func (u *OrderLifecycle) Order(ctx context.Context, id uuid.UUID) (*model.OrderView, error) {
	return u.orders.GetByID(ctx, id)
}

// Orders lists orders newest first.
func (u *OrderLifecycle) Orders(ctx context.Context, filter model.OrderFilter) ([]model.OrderView, error) {
	filter, err := ValidateOrderFilter(filter)
	if err != nil {
		return nil, err
	}
	return u.orders.List(ctx, filter)
}
