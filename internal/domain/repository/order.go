package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

// OrderRepository provides read access to orders.
type OrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.OrderView, error)
	List(ctx context.Context, filter model.OrderFilter) ([]model.OrderView, error)
}
