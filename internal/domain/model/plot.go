package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
)

// PlotStatus describes availability of a land plot.
type PlotStatus string

const (
	PlotStatusAvailable PlotStatus = "available"
	PlotStatusPending   PlotStatus = "pending"
	PlotStatusTaken     PlotStatus = "taken"
)

// Valid reports whether s is one of the known plot statuses.
func (s PlotStatus) Valid() bool {
	switch s {
	case PlotStatusAvailable, PlotStatusPending, PlotStatusTaken:
		return true
	}
	return false
}

// LandPlot is a spatially bounded parcel tracked by the catalog.
type LandPlot struct {
	ID           uuid.UUID
	PlotCode     string
	Status       PlotStatus
	AreaHectares decimal.Decimal
	District     string
	Ward         string
	Village      string
	Dataset      string
	Geometry     orb.MultiPolygon
	Fingerprint  string
	Attributes   map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Location groups the administrative location of a plot.
type Location struct {
	District string
	Ward     string
	Village  string
}

// Location returns the administrative location of the plot.
func (p *LandPlot) Location() Location {
	return Location{District: p.District, Ward: p.Ward, Village: p.Village}
}

// MatchMode selects how textual location filters are compared.
type MatchMode int

const (
	MatchExact MatchMode = iota
	MatchPrefix
)

// PlotFilter narrows catalog searches. Zero values disable a criterion.
type PlotFilter struct {
	District string
	Ward     string
	Village  string
	Match    MatchMode
	Status   PlotStatus
	MinArea  *float64
	MaxArea  *float64
	BBox     *orb.Bound
	Limit    int
	Offset   int
}

// CatalogStats aggregates plot and order counters.
type CatalogStats struct {
	TotalPlots        int64
	AvailablePlots    int64
	PendingPlots      int64
	TakenPlots        int64
	TotalOrders       int64
	PendingOrders     int64
	ApprovedOrders    int64
	RejectedOrders    int64
	Districts         int64
	Wards             int64
	Villages          int64
	TotalAreaHectares decimal.Decimal
}
