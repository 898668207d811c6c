package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/storage/query"
)

const orderColumns = `o.id, o.plot_id, o.first_name, o.last_name, o.phone, o.email,
        o.status, o.note, o.created_at, o.updated_at`

// pendingOrderColumn is the column guarded by idx_plot_orders_one_pending.
const pendingOrderColumn = "plot_orders.plot_id"

type orderRow struct {
	ID        string `db:"id"`
	PlotID    string `db:"plot_id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Phone     string `db:"phone"`
	Email     string `db:"email"`
	Status    string `db:"status"`
	Note      string `db:"note"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
	PlotCode  string `db:"plot_code"`
}

func (r *orderRow) model() (*model.Order, error) {
	o := model.Order{
		Customer: model.Customer{
			FirstName: r.FirstName,
			LastName:  r.LastName,
			Phone:     r.Phone,
			Email:     r.Email,
		},
		Status: model.OrderStatus(r.Status),
		Note:   r.Note,
	}
	var err error
	if o.ID, err = uuid.Parse(r.ID); err != nil {
		return nil, fmt.Errorf("parse order id: %w", err)
	}
	if o.PlotID, err = uuid.Parse(r.PlotID); err != nil {
		return nil, fmt.Errorf("parse plot id: %w", err)
	}
	if o.CreatedAt, err = parseStamp(r.CreatedAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseStamp(r.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRow) view() (*model.OrderView, error) {
	order, err := r.model()
	if err != nil {
		return nil, err
	}
	return &model.OrderView{Order: *order, PlotCode: r.PlotCode}, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.OrderView, error) {
	const stmt = `SELECT ` + orderColumns + `, p.plot_code
                  FROM plot_orders o JOIN land_plots p ON p.id = o.plot_id
                  WHERE o.id=?`
	var row orderRow
	if err := r.storage.db.GetContext(ctx, &row, stmt, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return row.view()
}

func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.OrderView, error) {
	b := query.Orders(filter)
	stmt := `SELECT ` + orderColumns + `, p.plot_code
             FROM plot_orders o JOIN land_plots p ON p.id = o.plot_id` +
		b.Where() + ` ORDER BY o.created_at DESC, o.id` + b.Page(filter.Limit, filter.Offset)

	var rows []orderRow
	if err := r.storage.db.SelectContext(ctx, &rows, stmt, b.Args()...); err != nil {
		return nil, err
	}

	result := make([]model.OrderView, 0, len(rows))
	for i := range rows {
		view, err := rows[i].view()
		if err != nil {
			return nil, err
		}
		result = append(result, *view)
	}
	return result, nil
}

// lifecycleTx implements repository.LifecycleTx on an immediate
// transaction. The write lock taken at BEGIN stands in for row locks.
type lifecycleTx struct {
	tx *sqlx.Tx
}

func (t *lifecycleTx) SwapPlotStatus(ctx context.Context, plotID uuid.UUID, from, to model.PlotStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE land_plots SET status=?, updated_at=? WHERE id=? AND status=?`,
		string(to), stamp(time.Now()), plotID.String(), string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var current string
	if err := t.tx.GetContext(ctx, &current, `SELECT status FROM land_plots WHERE id=?`, plotID.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainErrors.ErrNotFound
		}
		return err
	}
	return domainErrors.ErrStatusConflict
}

func (t *lifecycleTx) InsertOrder(ctx context.Context, order *model.Order) error {
	now := time.Now().UTC()
	c := order.Customer
	_, err := t.tx.ExecContext(ctx, `INSERT INTO plot_orders
            (id, plot_id, first_name, last_name, phone, email, status, note, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID.String(), order.PlotID.String(), c.FirstName, c.LastName, c.Phone, c.Email,
		string(order.Status), order.Note, stamp(now), stamp(now))
	if err != nil {
		if isUniqueViolation(err, pendingOrderColumn) {
			return domainErrors.ErrPlotUnavailable
		}
		return err
	}
	order.CreatedAt, order.UpdatedAt = now, now
	return nil
}

func (t *lifecycleTx) LockOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	var row orderRow
	err := t.tx.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM plot_orders o WHERE o.id=?`, orderID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return row.model()
}

func (t *lifecycleTx) SetOrderStatus(ctx context.Context, order *model.Order) error {
	now := time.Now().UTC()
	res, err := t.tx.ExecContext(ctx, `UPDATE plot_orders SET status=?, note=?, updated_at=? WHERE id=?`,
		string(order.Status), order.Note, stamp(now), order.ID.String())
	if err != nil {
		if isUniqueViolation(err, pendingOrderColumn) {
			return domainErrors.ErrPlotUnavailable
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domainErrors.ErrNotFound
	}
	order.UpdatedAt = now
	return nil
}

func (t *lifecycleTx) CountPendingOrders(ctx context.Context, plotID uuid.UUID, exclude uuid.UUID) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM plot_orders WHERE plot_id=? AND status='pending' AND id<>?`,
		plotID.String(), exclude.String())
	if err != nil {
		return 0, err
	}
	return n, nil
}
