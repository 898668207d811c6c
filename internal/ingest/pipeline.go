package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/domain/repository"
	"github.com/polkiloo/plotcatalog/internal/geometry"
)

// Failure kinds recorded in a report.
const (
	FailureDecode   = "decode"
	FailureGeometry = "geometry"
	FailureConflict = "conflict"
	FailureStorage  = "storage"
)

// Feature is one decoded source feature. Err is set when the feature
// could not be decoded at all.
type Feature struct {
	Geometry   orb.Geometry
	Properties map[string]any
	Err        error
}

// Batch is a set of features from one dataset.
type Batch struct {
	Dataset    string
	SourceCRS  string
	CodePrefix string
	SourceHash string
	Defaults   model.Location
	Features   []Feature
}

// Report summarizes a pipeline run.
type Report struct {
	Dataset      string
	SourceCRS    string
	CodePrefix   string
	SourceHash   string
	FeatureCount int
	Inserted     int
	Updated      int
	Unchanged    int
	Skipped      int
	Failures     []model.FeatureFailure
	Warnings     []string
	Bound        *orb.Bound
}

// Record converts the report into a persisted import summary.
func (r *Report) Record(status model.ImportStatus, runErr error) *model.ImportRecord {
	rec := &model.ImportRecord{
		Dataset:      r.Dataset,
		SourceCRS:    r.SourceCRS,
		CodePrefix:   r.CodePrefix,
		SourceHash:   r.SourceHash,
		FeatureCount: r.FeatureCount,
		Inserted:     r.Inserted,
		Updated:      r.Updated,
		Unchanged:    r.Unchanged,
		Skipped:      r.Skipped,
		Failures:     r.Failures,
		Bound:        r.Bound,
		Status:       status,
		ImportedAt:   time.Now().UTC(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}

type outcome int

const (
	outcomeInserted outcome = iota
	outcomeUpdated
	outcomeUnchanged
)

// Options tune the pipeline.
type Options struct {
	// TrustSourceArea stores the area carried by source attributes instead
	// of the projected area when one is present.
	TrustSourceArea bool
}

// Pipeline merges batches of source features into the catalog.
type Pipeline struct {
	plots      repository.PlotRepository
	normalizer *geometry.Normalizer
	mapper     *Mapper
	opts       Options
	logger     *slog.Logger
}

func NewPipeline(plots repository.PlotRepository, normalizer *geometry.Normalizer, mapper *Mapper, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{plots: plots, normalizer: normalizer, mapper: mapper, opts: opts, logger: logger}
}

// Run processes the batch sequentially. Per-feature problems are recorded
// in the report; only a cancelled context or a failure to load the code
// sequence aborts the run.
func (p *Pipeline) Run(ctx context.Context, batch Batch) (*Report, error) {
	if batch.Dataset == "" {
		return nil, errors.New("dataset name is required")
	}

	assigner := NewCodeAssigner(p.plots, batch.Dataset, batch.CodePrefix)
	report := &Report{
		Dataset:      batch.Dataset,
		SourceCRS:    batch.SourceCRS,
		CodePrefix:   assigner.Prefix(),
		SourceHash:   batch.SourceHash,
		FeatureCount: len(batch.Features),
	}

	if err := assigner.Load(ctx); err != nil {
		return report, err
	}

	var (
		crs    geometry.CRS
		crsErr error
	)
	if batch.SourceCRS != "" {
		crs, crsErr = geometry.ParseCRS(batch.SourceCRS)
		if crsErr == nil {
			report.SourceCRS = crs.String()
		}
	}

	run := &batchRun{
		Pipeline: p,
		batch:    batch,
		report:   report,
		assigner: assigner,
		crs:      crs,
		crsErr:   crsErr,
		seen:     make(map[string]string),
	}

	for i, f := range batch.Features {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		run.feature(ctx, i, f)
	}

	p.logger.Info("import finished",
		slog.String("dataset", report.Dataset),
		slog.Int("features", report.FeatureCount),
		slog.Int("inserted", report.Inserted),
		slog.Int("updated", report.Updated),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("skipped", report.Skipped),
	)
	return report, nil
}

type batchRun struct {
	*Pipeline
	batch    Batch
	report   *Report
	assigner *CodeAssigner
	crs      geometry.CRS
	crsErr   error
	seen     map[string]string
}

func (r *batchRun) feature(ctx context.Context, index int, f Feature) {
	if f.Err != nil {
		r.fail(index, "", FailureDecode, f.Err)
		return
	}
	if r.crsErr != nil {
		r.fail(index, "", FailureGeometry, domainErrors.NewGeometryError("source crs", r.crsErr))
		return
	}

	norm, err := r.normalizer.Normalize(f.Geometry, r.crs)
	if err != nil {
		r.fail(index, "", FailureGeometry, err)
		return
	}

	mapped := r.mapper.Map(f.Properties, r.batch.Defaults)
	for _, w := range mapped.Warnings {
		r.report.Warnings = append(r.report.Warnings, fmt.Sprintf("feature %d: %s", index, w))
	}
	if !norm.Bound.Intersects(geometry.ServiceArea) {
		r.report.Warnings = append(r.report.Warnings, fmt.Sprintf("feature %d: geometry lies outside the expected service area", index))
	}

	code, err := r.assigner.Assign(ctx, mapped.PlotCode, norm.Fingerprint)
	if err != nil {
		r.fail(index, mapped.PlotCode, FailureStorage, err)
		return
	}

	if prev, ok := r.seen[code]; ok {
		if prev != norm.Fingerprint {
			r.fail(index, code, FailureConflict, &domainErrors.DuplicateCodeConflict{Code: code})
			return
		}
		r.accept(outcomeUnchanged, norm.Bound)
		return
	}

	area := norm.AreaHectares
	if r.opts.TrustSourceArea && mapped.SourceArea != nil {
		area = *mapped.SourceArea
	}
	candidate := &model.LandPlot{
		PlotCode:     code,
		Status:       model.PlotStatusAvailable,
		AreaHectares: area,
		District:     mapped.Location.District,
		Ward:         mapped.Location.Ward,
		Village:      mapped.Location.Village,
		Dataset:      r.batch.Dataset,
		Geometry:     norm.Geometry,
		Fingerprint:  norm.Fingerprint,
		Attributes:   mapped.Attributes,
	}

	result, err := r.merge(ctx, candidate)
	if err != nil {
		r.fail(index, code, kindOf(err), err)
		return
	}
	r.seen[code] = norm.Fingerprint
	r.accept(result, norm.Bound)
}

func (r *batchRun) merge(ctx context.Context, candidate *model.LandPlot) (outcome, error) {
	existing, err := r.plots.GetByCode(ctx, candidate.PlotCode)
	if errors.Is(err, domainErrors.ErrNotFound) {
		candidate.ID = uuid.New()
		if err := r.plots.Insert(ctx, candidate); err != nil {
			return 0, fmt.Errorf("insert plot: %w", err)
		}
		return outcomeInserted, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load plot %s: %w", candidate.PlotCode, err)
	}

	sameGeometry := existing.Fingerprint == candidate.Fingerprint
	if sameGeometry && sameContent(existing, candidate) {
		return outcomeUnchanged, nil
	}
	if existing.Dataset != candidate.Dataset && !sameGeometry {
		return 0, &domainErrors.DuplicateCodeConflict{Code: candidate.PlotCode, ExistingID: existing.ID.String()}
	}

	updated := *existing
	updated.AreaHectares = candidate.AreaHectares
	updated.District = candidate.District
	updated.Ward = candidate.Ward
	updated.Village = candidate.Village
	updated.Geometry = candidate.Geometry
	updated.Fingerprint = candidate.Fingerprint
	updated.Attributes = candidate.Attributes
	if err := r.plots.UpdateContent(ctx, &updated); err != nil {
		return 0, fmt.Errorf("update plot: %w", err)
	}
	return outcomeUpdated, nil
}

func (r *batchRun) accept(o outcome, b orb.Bound) {
	switch o {
	case outcomeInserted:
		r.report.Inserted++
	case outcomeUpdated:
		r.report.Updated++
	case outcomeUnchanged:
		r.report.Unchanged++
	}
	if r.report.Bound == nil {
		bound := b
		r.report.Bound = &bound
		return
	}
	extended := r.report.Bound.Union(b)
	r.report.Bound = &extended
}

func (r *batchRun) fail(index int, code, kind string, err error) {
	r.report.Skipped++
	r.report.Failures = append(r.report.Failures, model.FeatureFailure{
		Index:    index,
		PlotCode: code,
		Kind:     kind,
		Message:  err.Error(),
	})
	r.logger.Warn("feature skipped",
		slog.String("dataset", r.batch.Dataset),
		slog.Int("index", index),
		slog.String("plot_code", code),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
}

func kindOf(err error) string {
	var conflict *domainErrors.DuplicateCodeConflict
	var geomErr *domainErrors.GeometryError
	switch {
	case errors.As(err, &conflict):
		return FailureConflict
	case errors.As(err, &geomErr):
		return FailureGeometry
	}
	return FailureStorage
}

func sameContent(a, b *model.LandPlot) bool {
	if a.Location() != b.Location() || !a.AreaHectares.Equal(b.AreaHectares) {
		return false
	}
	return attributesEqual(a.Attributes, b.Attributes)
}

// attributesEqual compares attribute maps by their JSON encoding so values
// read back from storage match freshly decoded ones.
func attributesEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
