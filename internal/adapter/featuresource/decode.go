package featuresource

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/ingest"
)

// Collection is a decoded FeatureCollection ready for the import pipeline.
type Collection struct {
	Features []ingest.Feature
	// CRS is the projection named by the legacy "crs" member, if any.
	CRS string
	// Hash is the hex SHA-256 of the raw payload.
	Hash string
}

type rawCollection struct {
	Type     string            `json:"type"`
	CRS      *legacyCRS        `json:"crs"`
	Features []json.RawMessage `json:"features"`
}

// legacyCRS is the pre-RFC 7946 "crs" member, either named or linked by
// EPSG code.
type legacyCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string          `json:"name"`
		Code json.RawMessage `json:"code"`
	} `json:"properties"`
}

func (c *legacyCRS) String() string {
	if c == nil {
		return ""
	}
	if c.Properties.Name != "" {
		return c.Properties.Name
	}
	if len(c.Properties.Code) == 0 {
		return ""
	}
	var code int
	if err := json.Unmarshal(c.Properties.Code, &code); err == nil {
		return "EPSG:" + strconv.Itoa(code)
	}
	var s string
	if err := json.Unmarshal(c.Properties.Code, &s); err == nil && s != "" {
		return "EPSG:" + s
	}
	return ""
}

// Decode parses a GeoJSON FeatureCollection. Only a malformed envelope is
// an error; a feature that cannot be decoded is returned with Err set so
// the pipeline can record it and continue.
func Decode(data []byte) (*Collection, error) {
	var raw rawCollection
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode feature collection: %v: %w", err, domainErrors.ErrInvalidImport)
	}
	if raw.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %q: %w", raw.Type, domainErrors.ErrInvalidImport)
	}

	sum := sha256.Sum256(data)
	out := &Collection{
		Features: make([]ingest.Feature, 0, len(raw.Features)),
		CRS:      raw.CRS.String(),
		Hash:     hex.EncodeToString(sum[:]),
	}
	for i, msg := range raw.Features {
		out.Features = append(out.Features, decodeFeature(i, msg))
	}
	return out, nil
}

func decodeFeature(index int, msg json.RawMessage) ingest.Feature {
	f, err := geojson.UnmarshalFeature(msg)
	if err != nil {
		return ingest.Feature{Err: fmt.Errorf("feature %d: %w", index, err)}
	}

	props := map[string]any(f.Properties)
	if props == nil {
		props = make(map[string]any)
	}
	// A string feature id stands in for a missing plot_id attribute.
	if id, ok := f.ID.(string); ok && id != "" {
		if _, exists := props["plot_id"]; !exists {
			props["plot_id"] = id
		}
	}
	return ingest.Feature{Geometry: f.Geometry, Properties: props}
}
