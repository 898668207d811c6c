package geometry

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/planar"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
)

const defaultPrecision = 1e8

// ServiceArea is the expected extent of catalog plots. Features outside
// it are accepted with a warning.
var ServiceArea = orb.Bound{Min: orb.Point{29.34, -11.75}, Max: orb.Point{40.44, -0.95}}

// Result is a canonical geometry with its derived values.
type Result struct {
	Geometry     orb.MultiPolygon
	Bound        orb.Bound
	AreaHectares decimal.Decimal
	Fingerprint  string
	SourceCRS    CRS
}

// Normalizer turns source geometries into canonical EPSG:4326
// multipolygons.
type Normalizer struct {
	precision float64
}

func NewNormalizer() *Normalizer {
	return &Normalizer{precision: defaultPrecision}
}

// Normalize reprojects, rounds, repairs and validates raw. A zero source
// CRS means the CRS is inferred from the coordinates.
func (n *Normalizer) Normalize(raw orb.Geometry, source CRS) (*Result, error) {
	mp, err := asMultiPolygon(raw)
	if err != nil {
		return nil, err
	}

	if source.Code == 0 {
		source, err = InferCRS(mp)
		if err != nil {
			return nil, domainErrors.NewGeometryError("crs inference", err)
		}
	}

	canonical, err := n.reproject(mp, source)
	if err != nil {
		return nil, err
	}

	canonical, err = repair(canonical)
	if err != nil {
		return nil, err
	}

	area := AreaHectares(canonical)
	if !area.IsPositive() {
		return nil, domainErrors.NewGeometryError("area rounds to zero hectares", nil)
	}

	fp, err := Fingerprint(canonical)
	if err != nil {
		return nil, domainErrors.NewGeometryError("encode wkb", err)
	}

	return &Result{
		Geometry:     canonical,
		Bound:        canonical.Bound(),
		AreaHectares: area,
		Fingerprint:  fp,
		SourceCRS:    source,
	}, nil
}

func asMultiPolygon(raw orb.Geometry) (orb.MultiPolygon, error) {
	switch g := raw.(type) {
	case nil:
		return nil, domainErrors.NewGeometryError("missing geometry", nil)
	case orb.Polygon:
		if len(g) == 0 {
			return nil, domainErrors.NewGeometryError("empty geometry", nil)
		}
		return orb.MultiPolygon{g}, nil
	case orb.MultiPolygon:
		if len(g) == 0 {
			return nil, domainErrors.NewGeometryError("empty geometry", nil)
		}
		return g, nil
	default:
		return nil, domainErrors.NewGeometryError(fmt.Sprintf("unsupported geometry type %s", raw.GeoJSONType()), nil)
	}
}

func (n *Normalizer) reproject(mp orb.MultiPolygon, source CRS) (orb.MultiPolygon, error) {
	proj := source.toWGS84()
	out := make(orb.MultiPolygon, len(mp))
	for i, poly := range mp {
		out[i] = make(orb.Polygon, len(poly))
		for j, ring := range poly {
			out[i][j] = make(orb.Ring, len(ring))
			for k, p := range ring {
				q := proj(p)
				if !validLonLat(q) {
					return nil, domainErrors.NewGeometryError(
						fmt.Sprintf("coordinate %v outside valid range in %s", p, source), nil)
				}
				out[i][j][k] = orb.Point{n.round(q[0]), n.round(q[1])}
			}
		}
	}
	return out, nil
}

func (n *Normalizer) round(v float64) float64 {
	return math.Round(v*n.precision) / n.precision
}

// AreaSquareMeters projects mp into the WGS 84 UTM zone of its centre and
// returns the planar area.
func AreaSquareMeters(mp orb.MultiPolygon) float64 {
	if len(mp) == 0 {
		return 0
	}
	c := mp.Bound().Center()
	zone, south := utmZone(c[0]), c[1] < 0

	projected := orb.Clone(mp).(orb.MultiPolygon)
	for _, poly := range projected {
		for _, ring := range poly {
			for k, p := range ring {
				x, y := utmForward(wgs84Ellipsoid, zone, south, p[0], p[1])
				ring[k] = orb.Point{x, y}
			}
		}
	}
	return planar.Area(projected)
}

// AreaHectares is AreaSquareMeters in hectares rounded to 4 decimals.
func AreaHectares(mp orb.MultiPolygon) decimal.Decimal {
	return decimal.NewFromFloat(AreaSquareMeters(mp) / 10000).Round(4)
}

// Fingerprint hashes the WKB encoding of a canonical geometry.
func Fingerprint(mp orb.MultiPolygon) (string, error) {
	data, err := wkb.Marshal(mp)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// UnmarshalWKB decodes a stored plot geometry. A single polygon is
// promoted to a multipolygon.
func UnmarshalWKB(data []byte) (orb.MultiPolygon, error) {
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	switch v := g.(type) {
	case orb.MultiPolygon:
		return v, nil
	case orb.Polygon:
		return orb.MultiPolygon{v}, nil
	}
	return nil, fmt.Errorf("decode geometry: unexpected %s", g.GeoJSONType())
}

// IntersectsBound reports whether mp shares at least one point with b.
func IntersectsBound(mp orb.MultiPolygon, b orb.Bound) bool {
	if !mp.Bound().Intersects(b) {
		return false
	}
	for _, poly := range mp {
		for _, ring := range poly {
			for _, p := range ring {
				if b.Contains(p) {
					return true
				}
			}
		}
	}

	corners := [4]orb.Point{b.Min, {b.Max[0], b.Min[1]}, b.Max, {b.Min[0], b.Max[1]}}
	for _, c := range corners {
		if planar.MultiPolygonContains(mp, c) {
			return true
		}
	}

	for _, poly := range mp {
		for _, ring := range poly {
			for i := 0; i+1 < len(ring); i++ {
				for j := 0; j < 4; j++ {
					if segmentsIntersect(ring[i], ring[i+1], corners[j], corners[(j+1)%4]) {
						return true
					}
				}
			}
		}
	}
	return false
}
