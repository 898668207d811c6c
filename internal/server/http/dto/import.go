package dto

import (
	"encoding/json"
	"time"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

type LocationDefaults struct {
	District string `json:"district"`
	Ward     string `json:"ward"`
	Village  string `json:"village"`
}

// ImportRequest is the JSON import envelope. Features holds a raw GeoJSON
// FeatureCollection; SourceURL points at one instead.
type ImportRequest struct {
	Dataset    string           `json:"dataset" binding:"required"`
	CRS        string           `json:"crs"`
	CodePrefix string           `json:"code_prefix"`
	Defaults   LocationDefaults `json:"defaults"`
	SourceURL  string           `json:"source_url"`
	Features   json.RawMessage  `json:"features"`
}

func (r ImportRequest) Submission() model.ImportSubmission {
	s := model.ImportSubmission{
		Dataset:    r.Dataset,
		SourceCRS:  r.CRS,
		CodePrefix: r.CodePrefix,
		Defaults:   model.Location{District: r.Defaults.District, Ward: r.Defaults.Ward, Village: r.Defaults.Village},
		SourceURL:  r.SourceURL,
	}
	if len(r.Features) > 0 && string(r.Features) != "null" {
		s.Payload = r.Features
	}
	return s
}

type BoundResponse struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// ImportResponse describes the summary of one dataset import.
type ImportResponse struct {
	Dataset      string                 `json:"dataset"`
	Status       string                 `json:"status"`
	SourceCRS    string                 `json:"source_crs,omitempty"`
	CodePrefix   string                 `json:"code_prefix"`
	SourceHash   string                 `json:"source_hash,omitempty"`
	FeatureCount int                    `json:"feature_count"`
	Inserted     int                    `json:"inserted"`
	Updated      int                    `json:"updated"`
	Unchanged    int                    `json:"unchanged"`
	Skipped      int                    `json:"skipped"`
	Failures     []model.FeatureFailure `json:"failures,omitempty"`
	Bound        *BoundResponse         `json:"bound,omitempty"`
	Error        string                 `json:"error,omitempty"`
	ImportedAt   time.Time              `json:"imported_at"`
}

func NewImportResponse(r model.ImportRecord) ImportResponse {
	resp := ImportResponse{
		Dataset:      r.Dataset,
		Status:       string(r.Status),
		SourceCRS:    r.SourceCRS,
		CodePrefix:   r.CodePrefix,
		SourceHash:   r.SourceHash,
		FeatureCount: r.FeatureCount,
		Inserted:     r.Inserted,
		Updated:      r.Updated,
		Unchanged:    r.Unchanged,
		Skipped:      r.Skipped,
		Failures:     r.Failures,
		Error:        r.Error,
		ImportedAt:   r.ImportedAt,
	}
	if b := r.Bound; b != nil {
		resp.Bound = &BoundResponse{MinLon: b.Min.Lon(), MinLat: b.Min.Lat(), MaxLon: b.Max.Lon(), MaxLat: b.Max.Lat()}
	}
	return resp
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
