package repository

import (
	"context"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

// ImportRepository keeps dataset import summaries.
type ImportRepository interface {
	Save(ctx context.Context, record *model.ImportRecord) error
	List(ctx context.Context) ([]model.ImportRecord, error)
	GetByDataset(ctx context.Context, dataset string) (*model.ImportRecord, error)
}
