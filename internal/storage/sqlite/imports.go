package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

const importColumns = `dataset_name, source_crs, code_prefix, source_hash, feature_count, inserted, updated,
        unchanged, skipped, failures, min_lon, min_lat, max_lon, max_lat, status, error, imported_at`

type importRow struct {
	Dataset      string          `db:"dataset_name"`
	SourceCRS    string          `db:"source_crs"`
	CodePrefix   string          `db:"code_prefix"`
	SourceHash   string          `db:"source_hash"`
	FeatureCount int             `db:"feature_count"`
	Inserted     int             `db:"inserted"`
	Updated      int             `db:"updated"`
	Unchanged    int             `db:"unchanged"`
	Skipped      int             `db:"skipped"`
	Failures     string          `db:"failures"`
	MinLon       sql.NullFloat64 `db:"min_lon"`
	MinLat       sql.NullFloat64 `db:"min_lat"`
	MaxLon       sql.NullFloat64 `db:"max_lon"`
	MaxLat       sql.NullFloat64 `db:"max_lat"`
	Status       string          `db:"status"`
	Error        string          `db:"error"`
	ImportedAt   string          `db:"imported_at"`
}

func newImportRow(rec *model.ImportRecord) (*importRow, error) {
	failures := rec.Failures
	if failures == nil {
		failures = []model.FeatureFailure{}
	}
	data, err := json.Marshal(failures)
	if err != nil {
		return nil, fmt.Errorf("encode failures: %w", err)
	}
	row := &importRow{
		Dataset:      rec.Dataset,
		SourceCRS:    rec.SourceCRS,
		CodePrefix:   rec.CodePrefix,
		SourceHash:   rec.SourceHash,
		FeatureCount: rec.FeatureCount,
		Inserted:     rec.Inserted,
		Updated:      rec.Updated,
		Unchanged:    rec.Unchanged,
		Skipped:      rec.Skipped,
		Failures:     string(data),
		Status:       string(rec.Status),
		Error:        rec.Error,
		ImportedAt:   stamp(rec.ImportedAt),
	}
	if b := rec.Bound; b != nil {
		row.MinLon = sql.NullFloat64{Float64: b.Min[0], Valid: true}
		row.MinLat = sql.NullFloat64{Float64: b.Min[1], Valid: true}
		row.MaxLon = sql.NullFloat64{Float64: b.Max[0], Valid: true}
		row.MaxLat = sql.NullFloat64{Float64: b.Max[1], Valid: true}
	}
	return row, nil
}

func (r *importRow) model() (*model.ImportRecord, error) {
	rec := model.ImportRecord{
		Dataset:      r.Dataset,
		SourceCRS:    r.SourceCRS,
		CodePrefix:   r.CodePrefix,
		SourceHash:   r.SourceHash,
		FeatureCount: r.FeatureCount,
		Inserted:     r.Inserted,
		Updated:      r.Updated,
		Unchanged:    r.Unchanged,
		Skipped:      r.Skipped,
		Status:       model.ImportStatus(r.Status),
		Error:        r.Error,
	}
	if r.Failures != "" {
		if err := json.Unmarshal([]byte(r.Failures), &rec.Failures); err != nil {
			return nil, fmt.Errorf("decode failures: %w", err)
		}
	}
	if r.MinLon.Valid && r.MinLat.Valid && r.MaxLon.Valid && r.MaxLat.Valid {
		rec.Bound = &orb.Bound{
			Min: orb.Point{r.MinLon.Float64, r.MinLat.Float64},
			Max: orb.Point{r.MaxLon.Float64, r.MaxLat.Float64},
		}
	}
	var err error
	if rec.ImportedAt, err = parseStamp(r.ImportedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *importRepository) Save(ctx context.Context, rec *model.ImportRecord) error {
	row, err := newImportRow(rec)
	if err != nil {
		return err
	}
	_, err = sqlx.NamedExecContext(ctx, r.storage.db, `INSERT INTO plot_imports (`+importColumns+`)
        VALUES (:dataset_name, :source_crs, :code_prefix, :source_hash, :feature_count, :inserted, :updated,
                :unchanged, :skipped, :failures, :min_lon, :min_lat, :max_lon, :max_lat, :status, :error, :imported_at)
        ON CONFLICT (dataset_name) DO UPDATE SET
            source_crs=excluded.source_crs, code_prefix=excluded.code_prefix,
            source_hash=excluded.source_hash, feature_count=excluded.feature_count,
            inserted=excluded.inserted, updated=excluded.updated, unchanged=excluded.unchanged,
            skipped=excluded.skipped, failures=excluded.failures,
            min_lon=excluded.min_lon, min_lat=excluded.min_lat,
            max_lon=excluded.max_lon, max_lat=excluded.max_lat,
            status=excluded.status, error=excluded.error, imported_at=excluded.imported_at`, row)
	return err
}

func (r *importRepository) List(ctx context.Context) ([]model.ImportRecord, error) {
	var rows []importRow
	if err := r.storage.db.SelectContext(ctx, &rows, `SELECT `+importColumns+` FROM plot_imports ORDER BY imported_at DESC`); err != nil {
		return nil, err
	}
	result := make([]model.ImportRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].model()
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	return result, nil
}

func (r *importRepository) GetByDataset(ctx context.Context, dataset string) (*model.ImportRecord, error) {
	var row importRow
	err := r.storage.db.GetContext(ctx, &row, `SELECT `+importColumns+` FROM plot_imports WHERE dataset_name=?`, dataset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return row.model()
}
