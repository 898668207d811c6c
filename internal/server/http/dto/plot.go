package dto

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

// PlotFeature renders a plot as a GeoJSON feature. The area is emitted as a
// JSON number carrying the exact decimal.
func PlotFeature(p model.LandPlot) *geojson.Feature {
	f := geojson.NewFeature(p.Geometry)
	f.ID = p.ID.String()
	f.Properties = geojson.Properties{
		"id":            p.ID.String(),
		"plot_code":     p.PlotCode,
		"status":        string(p.Status),
		"area_hectares": json.Number(p.AreaHectares.String()),
		"district":      p.District,
		"ward":          p.Ward,
		"village":       p.Village,
		"dataset":       p.Dataset,
		"updated_at":    p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if len(p.Attributes) > 0 {
		f.Properties["attributes"] = p.Attributes
	}
	return f
}

// PlotCollection renders plots as a GeoJSON FeatureCollection.
func PlotCollection(plots []model.LandPlot) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(plots))
	for _, p := range plots {
		fc.Append(PlotFeature(p))
	}
	return fc
}

// StatsResponse describes catalog totals.
type StatsResponse struct {
	TotalPlots        int64       `json:"total_plots"`
	AvailablePlots    int64       `json:"available_plots"`
	PendingPlots      int64       `json:"pending_plots"`
	TakenPlots        int64       `json:"taken_plots"`
	TotalOrders       int64       `json:"total_orders"`
	PendingOrders     int64       `json:"pending_orders"`
	ApprovedOrders    int64       `json:"approved_orders"`
	RejectedOrders    int64       `json:"rejected_orders"`
	Districts         int64       `json:"districts"`
	Wards             int64       `json:"wards"`
	Villages          int64       `json:"villages"`
	TotalAreaHectares json.Number `json:"total_area_hectares"`
}

func NewStatsResponse(s *model.CatalogStats) StatsResponse {
	return StatsResponse{
		TotalPlots:        s.TotalPlots,
		AvailablePlots:    s.AvailablePlots,
		PendingPlots:      s.PendingPlots,
		TakenPlots:        s.TakenPlots,
		TotalOrders:       s.TotalOrders,
		PendingOrders:     s.PendingOrders,
		ApprovedOrders:    s.ApprovedOrders,
		RejectedOrders:    s.RejectedOrders,
		Districts:         s.Districts,
		Wards:             s.Wards,
		Villages:          s.Villages,
		TotalAreaHectares: json.Number(s.TotalAreaHectares.String()),
	}
}
