package repository

import "context"

// Store describes a catalog backend with all of its repositories.
type Store interface {
	Transactor
	Plots() PlotRepository
	Orders() OrderRepository
	Imports() ImportRepository
	HealthCheck(ctx context.Context) error
	Close()
}
