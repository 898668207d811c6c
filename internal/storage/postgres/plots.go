package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/geometry"
	"github.com/polkiloo/plotcatalog/internal/storage/query"
)

const plotColumns = `id::text, plot_code, status, area_hectares::text, district, ward, village,
        dataset_name, ST_AsBinary(geometry), fingerprint, attributes::text, created_at, updated_at`

func scanPlot(row pgx.Row) (*model.LandPlot, error) {
	var (
		p          model.LandPlot
		id, area   string
		geom       []byte
		attributes string
	)
	if err := row.Scan(&id, &p.PlotCode, &p.Status, &area, &p.District, &p.Ward, &p.Village,
		&p.Dataset, &geom, &p.Fingerprint, &attributes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse plot id: %w", err)
	}
	if p.AreaHectares, err = decimal.NewFromString(area); err != nil {
		return nil, fmt.Errorf("parse area: %w", err)
	}
	if p.Geometry, err = geometry.UnmarshalWKB(geom); err != nil {
		return nil, err
	}
	if attributes != "" {
		if err := json.Unmarshal([]byte(attributes), &p.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return &p, nil
}

func encodePlot(p *model.LandPlot) ([]byte, string, error) {
	geom, err := wkb.Marshal(p.Geometry)
	if err != nil {
		return nil, "", fmt.Errorf("encode geometry: %w", err)
	}
	attrs := p.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, "", fmt.Errorf("encode attributes: %w", err)
	}
	return geom, string(data), nil
}

func (r *plotRepository) getOne(ctx context.Context, where string, args ...any) (*model.LandPlot, error) {
	row := r.storage.pool.QueryRow(ctx, `SELECT `+plotColumns+` FROM land_plots WHERE `+where, args...)
	plot, err := scanPlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return plot, nil
}

func (r *plotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.LandPlot, error) {
	return r.getOne(ctx, `id=$1`, id.String())
}

func (r *plotRepository) GetByCode(ctx context.Context, code string) (*model.LandPlot, error) {
	return r.getOne(ctx, `plot_code=$1`, code)
}

func (r *plotRepository) FindByFingerprint(ctx context.Context, dataset, fingerprint string) (*model.LandPlot, error) {
	return r.getOne(ctx, `dataset_name=$1 AND fingerprint=$2 ORDER BY plot_code LIMIT 1`, dataset, fingerprint)
}

func (r *plotRepository) CodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	const stmt = `SELECT plot_code FROM land_plots WHERE plot_code LIKE $1 ESCAPE '\' ORDER BY plot_code`
	rows, err := r.storage.pool.Query(ctx, stmt, query.EscapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *plotRepository) Search(ctx context.Context, filter model.PlotFilter) ([]model.LandPlot, error) {
	b := query.Plots(filter)
	if filter.BBox != nil {
		bb := filter.BBox
		b.Add(`geometry && ST_MakeEnvelope(?, ?, ?, ?, 4326) AND ST_Intersects(geometry, ST_MakeEnvelope(?, ?, ?, ?, 4326))`,
			bb.Min[0], bb.Min[1], bb.Max[0], bb.Max[1],
			bb.Min[0], bb.Min[1], bb.Max[0], bb.Max[1])
	}
	stmt := `SELECT ` + plotColumns + ` FROM land_plots` + b.Where() + ` ORDER BY plot_code` + b.Page(filter.Limit, filter.Offset)

	rows, err := r.storage.pool.Query(ctx, sqlx.Rebind(sqlx.DOLLAR, stmt), b.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.LandPlot
	for rows.Next() {
		plot, err := scanPlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *plot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *plotRepository) Insert(ctx context.Context, plot *model.LandPlot) error {
	geom, attrs, err := encodePlot(plot)
	if err != nil {
		return err
	}
	const stmt = `INSERT INTO land_plots
                  (id, plot_code, status, area_hectares, district, ward, village, dataset_name, geometry, fingerprint, attributes)
                  VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, ST_Multi(ST_GeomFromWKB($9, 4326)), $10, $11::jsonb)
                  RETURNING created_at, updated_at`
	err = r.storage.pool.QueryRow(ctx, stmt,
		plot.ID.String(), plot.PlotCode, string(plot.Status), plot.AreaHectares.StringFixed(4),
		plot.District, plot.Ward, plot.Village, plot.Dataset, geom, plot.Fingerprint, attrs,
	).Scan(&plot.CreatedAt, &plot.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("plot code %s: %w", plot.PlotCode, &domainErrors.DuplicateCodeConflict{Code: plot.PlotCode})
		}
		return err
	}
	return nil
}

func (r *plotRepository) UpdateContent(ctx context.Context, plot *model.LandPlot) error {
	geom, attrs, err := encodePlot(plot)
	if err != nil {
		return err
	}
	const stmt = `UPDATE land_plots
                  SET area_hectares=$2::numeric, district=$3, ward=$4, village=$5,
                      geometry=ST_Multi(ST_GeomFromWKB($6, 4326)), fingerprint=$7, attributes=$8::jsonb, updated_at=NOW()
                  WHERE id=$1
                  RETURNING updated_at`
	err = r.storage.pool.QueryRow(ctx, stmt,
		plot.ID.String(), plot.AreaHectares.StringFixed(4), plot.District, plot.Ward, plot.Village,
		geom, plot.Fingerprint, attrs,
	).Scan(&plot.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainErrors.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *plotRepository) Stats(ctx context.Context) (*model.CatalogStats, error) {
	const plotsQuery = `SELECT COUNT(*),
                               COUNT(*) FILTER (WHERE status='available'),
                               COUNT(*) FILTER (WHERE status='pending'),
                               COUNT(*) FILTER (WHERE status='taken'),
                               COUNT(DISTINCT LOWER(district)),
                               COUNT(DISTINCT LOWER(ward)),
                               COUNT(DISTINCT LOWER(village)),
                               COALESCE(SUM(area_hectares), 0)::text
                        FROM land_plots`
	const ordersQuery = `SELECT COUNT(*),
                                COUNT(*) FILTER (WHERE status='pending'),
                                COUNT(*) FILTER (WHERE status='approved'),
                                COUNT(*) FILTER (WHERE status='rejected')
                         FROM plot_orders`

	var (
		stats model.CatalogStats
		total string
	)
	err := r.storage.pool.QueryRow(ctx, plotsQuery).Scan(
		&stats.TotalPlots, &stats.AvailablePlots, &stats.PendingPlots, &stats.TakenPlots,
		&stats.Districts, &stats.Wards, &stats.Villages, &total)
	if err != nil {
		return nil, err
	}
	if stats.TotalAreaHectares, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total area: %w", err)
	}
	err = r.storage.pool.QueryRow(ctx, ordersQuery).Scan(
		&stats.TotalOrders, &stats.PendingOrders, &stats.ApprovedOrders, &stats.RejectedOrders)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
