package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/geometry"
	"github.com/polkiloo/plotcatalog/internal/storage/query"
)

const plotColumns = `rid, id, plot_code, status, area_hectares, district, ward, village,
        dataset_name, geometry, fingerprint, attributes, created_at, updated_at`

type plotRow struct {
	RID         int64   `db:"rid"`
	ID          string  `db:"id"`
	PlotCode    string  `db:"plot_code"`
	Status      string  `db:"status"`
	Area        float64 `db:"area_hectares"`
	District    string  `db:"district"`
	Ward        string  `db:"ward"`
	Village     string  `db:"village"`
	Dataset     string  `db:"dataset_name"`
	Geometry    []byte  `db:"geometry"`
	Fingerprint string  `db:"fingerprint"`
	Attributes  string  `db:"attributes"`
	CreatedAt   string  `db:"created_at"`
	UpdatedAt   string  `db:"updated_at"`
}

func newPlotRow(p *model.LandPlot) (*plotRow, error) {
	geom, err := wkb.Marshal(p.Geometry)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	attrs := p.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	return &plotRow{
		ID:          p.ID.String(),
		PlotCode:    p.PlotCode,
		Status:      string(p.Status),
		Area:        p.AreaHectares.InexactFloat64(),
		District:    p.District,
		Ward:        p.Ward,
		Village:     p.Village,
		Dataset:     p.Dataset,
		Geometry:    geom,
		Fingerprint: p.Fingerprint,
		Attributes:  string(data),
		CreatedAt:   stamp(p.CreatedAt),
		UpdatedAt:   stamp(p.UpdatedAt),
	}, nil
}

func (r *plotRow) model() (*model.LandPlot, error) {
	p := model.LandPlot{
		PlotCode:     r.PlotCode,
		Status:       model.PlotStatus(r.Status),
		AreaHectares: decimal.NewFromFloat(r.Area).Round(4),
		District:     r.District,
		Ward:         r.Ward,
		Village:      r.Village,
		Dataset:      r.Dataset,
		Fingerprint:  r.Fingerprint,
	}

	var err error
	if p.ID, err = uuid.Parse(r.ID); err != nil {
		return nil, fmt.Errorf("parse plot id: %w", err)
	}
	if p.Geometry, err = geometry.UnmarshalWKB(r.Geometry); err != nil {
		return nil, err
	}
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &p.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}
	if p.CreatedAt, err = parseStamp(r.CreatedAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseStamp(r.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *plotRepository) getOne(ctx context.Context, where string, args ...any) (*model.LandPlot, error) {
	var row plotRow
	err := r.storage.db.GetContext(ctx, &row, `SELECT `+plotColumns+` FROM land_plots WHERE `+where, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return row.model()
}

func (r *plotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.LandPlot, error) {
	return r.getOne(ctx, `id=?`, id.String())
}

func (r *plotRepository) GetByCode(ctx context.Context, code string) (*model.LandPlot, error) {
	return r.getOne(ctx, `plot_code=?`, code)
}

func (r *plotRepository) FindByFingerprint(ctx context.Context, dataset, fingerprint string) (*model.LandPlot, error) {
	return r.getOne(ctx, `dataset_name=? AND fingerprint=? ORDER BY plot_code LIMIT 1`, dataset, fingerprint)
}

func (r *plotRepository) CodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var codes []string
	err := r.storage.db.SelectContext(ctx, &codes,
		`SELECT plot_code FROM land_plots WHERE plot_code LIKE ? ESCAPE '\' ORDER BY plot_code`,
		query.EscapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// Search pages in SQL unless a bbox is set. R*Tree candidates are refined
// exactly in memory, so paging has to follow the refinement.
func (r *plotRepository) Search(ctx context.Context, filter model.PlotFilter) ([]model.LandPlot, error) {
	b := query.Plots(filter)
	bb := filter.BBox
	if bb != nil {
		b.Add(`rid IN (SELECT rid FROM land_plots_rtree WHERE max_lon >= ? AND min_lon <= ? AND max_lat >= ? AND min_lat <= ?)`,
			bb.Min[0], bb.Max[0], bb.Min[1], bb.Max[1])
	}
	stmt := `SELECT ` + plotColumns + ` FROM land_plots` + b.Where() + ` ORDER BY plot_code`
	if bb == nil {
		stmt += b.Page(filter.Limit, filter.Offset)
	}

	var rows []plotRow
	if err := r.storage.db.SelectContext(ctx, &rows, stmt, b.Args()...); err != nil {
		return nil, err
	}

	result := make([]model.LandPlot, 0, len(rows))
	for i := range rows {
		plot, err := rows[i].model()
		if err != nil {
			return nil, err
		}
		if bb != nil && !geometry.IntersectsBound(plot.Geometry, *bb) {
			continue
		}
		result = append(result, *plot)
	}
	if bb != nil {
		result = page(result, filter.Limit, filter.Offset)
	}
	return result, nil
}

func page(plots []model.LandPlot, limit, offset int) []model.LandPlot {
	if limit <= 0 {
		return plots
	}
	if offset >= len(plots) {
		return []model.LandPlot{}
	}
	if offset > 0 {
		plots = plots[offset:]
	}
	if len(plots) > limit {
		plots = plots[:limit]
	}
	return plots
}

func (r *plotRepository) Insert(ctx context.Context, plot *model.LandPlot) error {
	now := time.Now().UTC()
	plot.CreatedAt, plot.UpdatedAt = now, now
	row, err := newPlotRow(plot)
	if err != nil {
		return err
	}

	return r.storage.withinTx(ctx, func(tx *sqlx.Tx) error {
		res, err := sqlx.NamedExecContext(ctx, tx, `INSERT INTO land_plots
            (id, plot_code, status, area_hectares, district, ward, village, dataset_name,
             geometry, fingerprint, attributes, created_at, updated_at)
            VALUES (:id, :plot_code, :status, :area_hectares, :district, :ward, :village, :dataset_name,
                    :geometry, :fingerprint, :attributes, :created_at, :updated_at)`, row)
		if err != nil {
			if isUniqueViolation(err, "land_plots.plot_code") {
				return fmt.Errorf("plot code %s: %w", plot.PlotCode, &domainErrors.DuplicateCodeConflict{Code: plot.PlotCode})
			}
			return err
		}
		rid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		bound := plot.Geometry.Bound()
		_, err = tx.ExecContext(ctx, `INSERT INTO land_plots_rtree (rid, min_lon, max_lon, min_lat, max_lat) VALUES (?, ?, ?, ?, ?)`,
			rid, bound.Min[0], bound.Max[0], bound.Min[1], bound.Max[1])
		return err
	})
}

func (r *plotRepository) UpdateContent(ctx context.Context, plot *model.LandPlot) error {
	row, err := newPlotRow(plot)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	row.UpdatedAt = stamp(now)

	err = r.storage.withinTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &row.RID, `SELECT rid FROM land_plots WHERE id=?`, row.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domainErrors.ErrNotFound
			}
			return err
		}
		_, err := sqlx.NamedExecContext(ctx, tx, `UPDATE land_plots
            SET area_hectares=:area_hectares, district=:district, ward=:ward, village=:village,
                geometry=:geometry, fingerprint=:fingerprint, attributes=:attributes, updated_at=:updated_at
            WHERE rid=:rid`, row)
		if err != nil {
			return err
		}
		bound := plot.Geometry.Bound()
		_, err = tx.ExecContext(ctx, `UPDATE land_plots_rtree SET min_lon=?, max_lon=?, min_lat=?, max_lat=? WHERE rid=?`,
			bound.Min[0], bound.Max[0], bound.Min[1], bound.Max[1], row.RID)
		return err
	})
	if err != nil {
		return err
	}
	plot.UpdatedAt = now
	return nil
}

func (r *plotRepository) Stats(ctx context.Context) (*model.CatalogStats, error) {
	var plots struct {
		Total     int64   `db:"total"`
		Available int64   `db:"available"`
		Pending   int64   `db:"pending"`
		Taken     int64   `db:"taken"`
		Districts int64   `db:"districts"`
		Wards     int64   `db:"wards"`
		Villages  int64   `db:"villages"`
		Area      float64 `db:"area"`
	}
	err := r.storage.db.GetContext(ctx, &plots, `SELECT COUNT(*) AS total,
            COUNT(*) FILTER (WHERE status='available') AS available,
            COUNT(*) FILTER (WHERE status='pending') AS pending,
            COUNT(*) FILTER (WHERE status='taken') AS taken,
            COUNT(DISTINCT LOWER(district)) AS districts,
            COUNT(DISTINCT LOWER(ward)) AS wards,
            COUNT(DISTINCT LOWER(village)) AS villages,
            TOTAL(area_hectares) AS area
        FROM land_plots`)
	if err != nil {
		return nil, err
	}

	var orders struct {
		Total    int64 `db:"total"`
		Pending  int64 `db:"pending"`
		Approved int64 `db:"approved"`
		Rejected int64 `db:"rejected"`
	}
	err = r.storage.db.GetContext(ctx, &orders, `SELECT COUNT(*) AS total,
            COUNT(*) FILTER (WHERE status='pending') AS pending,
            COUNT(*) FILTER (WHERE status='approved') AS approved,
            COUNT(*) FILTER (WHERE status='rejected') AS rejected
        FROM plot_orders`)
	if err != nil {
		return nil, err
	}

	return &model.CatalogStats{
		TotalPlots:        plots.Total,
		AvailablePlots:    plots.Available,
		PendingPlots:      plots.Pending,
		TakenPlots:        plots.Taken,
		TotalOrders:       orders.Total,
		PendingOrders:     orders.Pending,
		ApprovedOrders:    orders.Approved,
		RejectedOrders:    orders.Rejected,
		Districts:         plots.Districts,
		Wards:             plots.Wards,
		Villages:          plots.Villages,
		TotalAreaHectares: decimal.NewFromFloat(plots.Area).Round(4),
	}, nil
}
