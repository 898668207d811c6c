package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/domain/repository"
	"github.com/polkiloo/plotcatalog/internal/geometry"
	"github.com/polkiloo/plotcatalog/internal/ingest"
)

// BatchRunner merges a batch into the catalog.
type BatchRunner interface {
	Run(ctx context.Context, batch ingest.Batch) (*ingest.Report, error)
}

// ImportRequest is one dataset submitted for ingestion.
type ImportRequest struct {
	Dataset    string
	SourceCRS  string
	CodePrefix string
	SourceHash string
	Defaults   model.Location
	Features   []ingest.Feature
}

func (r ImportRequest) batch() ingest.Batch {
	return ingest.Batch{
		Dataset:    r.Dataset,
		SourceCRS:  r.SourceCRS,
		CodePrefix: r.CodePrefix,
		SourceHash: r.SourceHash,
		Defaults:   r.Defaults,
		Features:   r.Features,
	}
}

// ImportUseCase validates import requests, runs them through the pipeline
// and keeps the per-dataset import summaries.
type ImportUseCase struct {
	runner     BatchRunner
	imports    repository.ImportRepository
	defaultCRS string
	logger     *slog.Logger
}

// NewImportUseCase constructs ImportUseCase. defaultCRS applies to requests
// that declare no CRS; an empty value lets the pipeline infer one.
func NewImportUseCase(runner BatchRunner, imports repository.ImportRepository, defaultCRS string, logger *slog.Logger) *ImportUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportUseCase{runner: runner, imports: imports, defaultCRS: defaultCRS, logger: logger}
}

// Prepare normalizes and validates the request.
func (u *ImportUseCase) Prepare(req ImportRequest) (ImportRequest, error) {
	req.Dataset = strings.TrimSpace(req.Dataset)
	req.CodePrefix = strings.ToUpper(strings.TrimSpace(req.CodePrefix))
	req.SourceCRS = strings.TrimSpace(req.SourceCRS)
	req.Defaults = model.Location{
		District: strings.TrimSpace(req.Defaults.District),
		Ward:     strings.TrimSpace(req.Defaults.Ward),
		Village:  strings.TrimSpace(req.Defaults.Village),
	}

	if req.Dataset == "" {
		return req, fmt.Errorf("dataset name is required: %w", domainErrors.ErrInvalidImport)
	}
	if !validDatasetName(req.Dataset) {
		return req, fmt.Errorf("dataset name %q has unsupported characters: %w", req.Dataset, domainErrors.ErrInvalidImport)
	}
	if len(req.Features) == 0 {
		return req, fmt.Errorf("dataset %s has no features: %w", req.Dataset, domainErrors.ErrInvalidImport)
	}
	if req.CodePrefix != "" && !validDatasetName(req.CodePrefix) {
		return req, fmt.Errorf("code prefix %q has unsupported characters: %w", req.CodePrefix, domainErrors.ErrInvalidImport)
	}

	if req.SourceCRS == "" {
		req.SourceCRS = u.defaultCRS
	}
	if req.SourceCRS != "" {
		crs, err := geometry.ParseCRS(req.SourceCRS)
		if err != nil {
			return req, err
		}
		req.SourceCRS = crs.String()
	}
	return req, nil
}

// Accept validates the request and records it as queued.
func (u *ImportUseCase) Accept(ctx context.Context, req ImportRequest) (ImportRequest, *model.ImportRecord, error) {
	req, err := u.Prepare(req)
	if err != nil {
		return req, nil, err
	}
	record := u.pendingRecord(req, model.ImportStatusQueued)
	if err := u.imports.Save(ctx, record); err != nil {
		return req, nil, err
	}
	return req, record, nil
}

// Run processes a prepared request synchronously and stores the outcome.
// The returned record is never nil, even when the run fails.
func (u *ImportUseCase) Run(ctx context.Context, req ImportRequest) (*model.ImportRecord, error) {
	if err := u.imports.Save(ctx, u.pendingRecord(req, model.ImportStatusRunning)); err != nil {
		return u.pendingRecord(req, model.ImportStatusFailed), err
	}

	report, runErr := u.runner.Run(ctx, req.batch())

	var record *model.ImportRecord
	switch {
	case report == nil:
		record = u.pendingRecord(req, model.ImportStatusFailed)
		record.Error = runErr.Error()
	case runErr != nil:
		record = report.Record(model.ImportStatusFailed, runErr)
	default:
		record = report.Record(model.ImportStatusCompleted, nil)
	}

	if runErr != nil {
		u.logger.Error("import failed",
			slog.String("dataset", req.Dataset),
			slog.String("error", runErr.Error()),
		)
	}

	// A cancelled run still gets its summary written.
	if err := u.imports.Save(context.WithoutCancel(ctx), record); err != nil {
		u.logger.Error("save import record failed",
			slog.String("dataset", req.Dataset),
			slog.String("error", err.Error()),
		)
		if runErr == nil {
			return record, err
		}
	}
	return record, runErr
}

// Abandon marks an accepted request that will never run as failed.
func (u *ImportUseCase) Abandon(ctx context.Context, req ImportRequest, cause error) {
	record := u.pendingRecord(req, model.ImportStatusFailed)
	record.Error = cause.Error()
	if err := u.imports.Save(ctx, record); err != nil {
		u.logger.Error("save import record failed",
			slog.String("dataset", req.Dataset),
			slog.String("error", err.Error()),
		)
	}
}

// Import submits and runs the request in one call.
func (u *ImportUseCase) Import(ctx context.Context, req ImportRequest) (*model.ImportRecord, error) {
	req, err := u.Prepare(req)
	if err != nil {
		return nil, err
	}
	return u.Run(ctx, req)
}

func (u *ImportUseCase) Imports(ctx context.Context) ([]model.ImportRecord, error) {
	return u.imports.List(ctx)
}

func (u *ImportUseCase) ImportByDataset(ctx context.Context, dataset string) (*model.ImportRecord, error) {
	return u.imports.GetByDataset(ctx, strings.TrimSpace(dataset))
}

func (u *ImportUseCase) pendingRecord(req ImportRequest, status model.ImportStatus) *model.ImportRecord {
	prefix := req.CodePrefix
	if prefix == "" {
		prefix = ingest.DefaultPrefix(req.Dataset)
	}
	return &model.ImportRecord{
		Dataset:      req.Dataset,
		SourceCRS:    req.SourceCRS,
		CodePrefix:   prefix,
		SourceHash:   req.SourceHash,
		FeatureCount: len(req.Features),
		Status:       status,
		ImportedAt:   time.Now().UTC(),
	}
}

func validDatasetName(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
