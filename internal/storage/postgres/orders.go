package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/storage/query"
)

const orderColumns = `o.id::text, o.plot_id::text, o.first_name, o.last_name, o.phone, o.email,
        o.status, o.note, o.created_at, o.updated_at`

const pendingOrderIndex = "idx_plot_orders_one_pending"

func scanOrder(row pgx.Row, extra ...any) (*model.Order, error) {
	var (
		o          model.Order
		id, plotID string
	)
	dest := append([]any{&id, &plotID, &o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Phone,
		&o.Customer.Email, &o.Status, &o.Note, &o.CreatedAt, &o.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	var err error
	if o.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse order id: %w", err)
	}
	if o.PlotID, err = uuid.Parse(plotID); err != nil {
		return nil, fmt.Errorf("parse plot id: %w", err)
	}
	return &o, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.OrderView, error) {
	const stmt = `SELECT ` + orderColumns + `, p.plot_code
                  FROM plot_orders o JOIN land_plots p ON p.id = o.plot_id
                  WHERE o.id=$1`
	var code string
	order, err := scanOrder(r.storage.pool.QueryRow(ctx, stmt, id.String()), &code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return &model.OrderView{Order: *order, PlotCode: code}, nil
}

func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.OrderView, error) {
	b := query.Orders(filter)
	stmt := `SELECT ` + orderColumns + `, p.plot_code
             FROM plot_orders o JOIN land_plots p ON p.id = o.plot_id` +
		b.Where() + ` ORDER BY o.created_at DESC, o.id` + b.Page(filter.Limit, filter.Offset)

	rows, err := r.storage.pool.Query(ctx, sqlx.Rebind(sqlx.DOLLAR, stmt), b.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.OrderView
	for rows.Next() {
		var code string
		order, err := scanOrder(rows, &code)
		if err != nil {
			return nil, err
		}
		result = append(result, model.OrderView{Order: *order, PlotCode: code})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// lifecycleTx implements repository.LifecycleTx on a pgx transaction.
type lifecycleTx struct {
	tx querier
}

func (t *lifecycleTx) SwapPlotStatus(ctx context.Context, plotID uuid.UUID, from, to model.PlotStatus) error {
	const stmt = `UPDATE land_plots SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`
	tag, err := t.tx.Exec(ctx, stmt, plotID.String(), string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	err = t.tx.QueryRow(ctx, `SELECT status FROM land_plots WHERE id=$1`, plotID.String()).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainErrors.ErrNotFound
		}
		return err
	}
	return domainErrors.ErrStatusConflict
}

func (t *lifecycleTx) InsertOrder(ctx context.Context, order *model.Order) error {
	const stmt = `INSERT INTO plot_orders (id, plot_id, first_name, last_name, phone, email, status, note)
                  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
                  RETURNING created_at, updated_at`
	c := order.Customer
	err := t.tx.QueryRow(ctx, stmt, order.ID.String(), order.PlotID.String(),
		c.FirstName, c.LastName, c.Phone, c.Email, string(order.Status), order.Note,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, pendingOrderIndex) {
			return domainErrors.ErrPlotUnavailable
		}
		return err
	}
	return nil
}

func (t *lifecycleTx) LockOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	const stmt = `SELECT ` + orderColumns + ` FROM plot_orders o WHERE o.id=$1 FOR UPDATE`
	order, err := scanOrder(t.tx.QueryRow(ctx, stmt, orderID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (t *lifecycleTx) SetOrderStatus(ctx context.Context, order *model.Order) error {
	const stmt = `UPDATE plot_orders SET status=$2, note=$3, updated_at=NOW() WHERE id=$1 RETURNING updated_at`
	err := t.tx.QueryRow(ctx, stmt, order.ID.String(), string(order.Status), order.Note).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainErrors.ErrNotFound
		}
		if isUniqueViolation(err, pendingOrderIndex) {
			return domainErrors.ErrPlotUnavailable
		}
		return err
	}
	return nil
}

func (t *lifecycleTx) CountPendingOrders(ctx context.Context, plotID uuid.UUID, exclude uuid.UUID) (int, error) {
	const stmt = `SELECT COUNT(*) FROM plot_orders WHERE plot_id=$1 AND status='pending' AND id<>$2`
	var n int
	if err := t.tx.QueryRow(ctx, stmt, plotID.String(), exclude.String()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
