package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

const importColumns = `dataset_name, source_crs, code_prefix, source_hash, feature_count, inserted, updated,
        unchanged, skipped, failures::text, min_lon, min_lat, max_lon, max_lat, status, error, imported_at`

func scanImport(row pgx.Row) (*model.ImportRecord, error) {
	var (
		rec                            model.ImportRecord
		failures                       string
		minLon, minLat, maxLon, maxLat *float64
	)
	err := row.Scan(&rec.Dataset, &rec.SourceCRS, &rec.CodePrefix, &rec.SourceHash, &rec.FeatureCount,
		&rec.Inserted, &rec.Updated, &rec.Unchanged, &rec.Skipped, &failures,
		&minLon, &minLat, &maxLon, &maxLat, &rec.Status, &rec.Error, &rec.ImportedAt)
	if err != nil {
		return nil, err
	}
	if failures != "" {
		if err := json.Unmarshal([]byte(failures), &rec.Failures); err != nil {
			return nil, fmt.Errorf("decode failures: %w", err)
		}
	}
	if minLon != nil && minLat != nil && maxLon != nil && maxLat != nil {
		rec.Bound = &orb.Bound{Min: orb.Point{*minLon, *minLat}, Max: orb.Point{*maxLon, *maxLat}}
	}
	return &rec, nil
}

func (r *importRepository) Save(ctx context.Context, rec *model.ImportRecord) error {
	failures := rec.Failures
	if failures == nil {
		failures = []model.FeatureFailure{}
	}
	data, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}

	var minLon, minLat, maxLon, maxLat *float64
	if rec.Bound != nil {
		minLon, minLat = &rec.Bound.Min[0], &rec.Bound.Min[1]
		maxLon, maxLat = &rec.Bound.Max[0], &rec.Bound.Max[1]
	}

	const stmt = `INSERT INTO plot_imports
                  (dataset_name, source_crs, code_prefix, source_hash, feature_count, inserted, updated, unchanged,
                   skipped, failures, min_lon, min_lat, max_lon, max_lat, status, error, imported_at)
                  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13, $14, $15, $16, $17)
                  ON CONFLICT (dataset_name) DO UPDATE SET
                      source_crs=EXCLUDED.source_crs, code_prefix=EXCLUDED.code_prefix,
                      source_hash=EXCLUDED.source_hash, feature_count=EXCLUDED.feature_count,
                      inserted=EXCLUDED.inserted, updated=EXCLUDED.updated, unchanged=EXCLUDED.unchanged,
                      skipped=EXCLUDED.skipped, failures=EXCLUDED.failures,
                      min_lon=EXCLUDED.min_lon, min_lat=EXCLUDED.min_lat,
                      max_lon=EXCLUDED.max_lon, max_lat=EXCLUDED.max_lat,
                      status=EXCLUDED.status, error=EXCLUDED.error, imported_at=EXCLUDED.imported_at`
	_, err = r.storage.pool.Exec(ctx, stmt,
		rec.Dataset, rec.SourceCRS, rec.CodePrefix, rec.SourceHash, rec.FeatureCount,
		rec.Inserted, rec.Updated, rec.Unchanged, rec.Skipped, string(data),
		minLon, minLat, maxLon, maxLat, string(rec.Status), rec.Error, rec.ImportedAt)
	return err
}

func (r *importRepository) List(ctx context.Context) ([]model.ImportRecord, error) {
	rows, err := r.storage.pool.Query(ctx, `SELECT `+importColumns+` FROM plot_imports ORDER BY imported_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.ImportRecord
	for rows.Next() {
		rec, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *importRepository) GetByDataset(ctx context.Context, dataset string) (*model.ImportRecord, error) {
	row := r.storage.pool.QueryRow(ctx, `SELECT `+importColumns+` FROM plot_imports WHERE dataset_name=$1`, dataset)
	rec, err := scanImport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}
