package geometry

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
)

type crsKind int

const (
	kindGeographic crsKind = iota
	kindWebMercator
	kindUTM
)

// CRS is a supported source coordinate reference system.
type CRS struct {
	Code  int
	kind  crsKind
	zone  int
	south bool
	datum *datum
}

// WGS84 is the canonical geographic system every stored geometry uses.
var WGS84 = CRS{Code: 4326, kind: kindGeographic}

// WebMercator is EPSG:3857.
var WebMercator = CRS{Code: 3857, kind: kindWebMercator}

func (c CRS) String() string {
	return "EPSG:" + strconv.Itoa(c.Code)
}

// IsCanonical reports whether c is the storage CRS.
func (c CRS) IsCanonical() bool {
	return c.kind == kindGeographic
}

var (
	wktUTMZone   = regexp.MustCompile(`UTM[ _]ZONE[ _](\d{1,2})([NS])`)
	trailingCode = regexp.MustCompile(`(\d{4,6})\s*$`)
)

// ParseCRS resolves EPSG identifiers ("EPSG:32737", "32737", OGC URNs)
// and ESRI/OGC WKT projection strings as found in .prj sidecar files.
func ParseCRS(s string) (CRS, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return CRS{}, fmt.Errorf("empty crs: %w", domainErrors.ErrUnsupportedCRS)
	}
	upper := strings.ToUpper(raw)

	switch upper {
	case "CRS84", "OGC:CRS84", "URN:OGC:DEF:CRS:OGC:1.3:CRS84", "WGS84", "WGS 84":
		return WGS84, nil
	}

	if strings.HasPrefix(upper, "PROJCS[") || strings.HasPrefix(upper, "GEOGCS[") {
		return parseWKT(upper)
	}

	m := trailingCode.FindStringSubmatch(upper)
	if m == nil {
		return CRS{}, fmt.Errorf("%q: %w", raw, domainErrors.ErrUnsupportedCRS)
	}
	code, _ := strconv.Atoi(m[1])
	return FromEPSG(code)
}

func parseWKT(upper string) (CRS, error) {
	if strings.HasPrefix(upper, "GEOGCS[") {
		if strings.Contains(upper, "WGS_1984") || strings.Contains(upper, "WGS 84") {
			return WGS84, nil
		}
		return CRS{}, fmt.Errorf("geographic wkt with unknown datum: %w", domainErrors.ErrUnsupportedCRS)
	}

	if strings.Contains(upper, "MERCATOR_AUXILIARY_SPHERE") || strings.Contains(upper, "PSEUDO-MERCATOR") || strings.Contains(upper, "PSEUDO_MERCATOR") {
		return WebMercator, nil
	}

	m := wktUTMZone.FindStringSubmatch(upper)
	if m == nil {
		return CRS{}, fmt.Errorf("projected wkt without utm zone: %w", domainErrors.ErrUnsupportedCRS)
	}
	zone, _ := strconv.Atoi(m[1])
	south := m[2] == "S"

	switch {
	case strings.Contains(upper, "ARC_1960") || strings.Contains(upper, "ARC 1960"):
		if south {
			return FromEPSG(21000 + zone)
		}
		return FromEPSG(21060 + zone)
	case strings.Contains(upper, "WGS_1984") || strings.Contains(upper, "WGS 84"):
		if south {
			return FromEPSG(32700 + zone)
		}
		return FromEPSG(32600 + zone)
	}
	return CRS{}, fmt.Errorf("projected wkt with unknown datum: %w", domainErrors.ErrUnsupportedCRS)
}

// FromEPSG maps an EPSG code to a supported CRS.
func FromEPSG(code int) (CRS, error) {
	switch {
	case code == 4326:
		return WGS84, nil
	case code == 3857 || code == 900913 || code == 3785 || code == 102100:
		return WebMercator, nil
	case code >= 32601 && code <= 32660:
		return CRS{Code: code, kind: kindUTM, zone: code - 32600}, nil
	case code >= 32701 && code <= 32760:
		return CRS{Code: code, kind: kindUTM, zone: code - 32700, south: true}, nil
	case code >= 21035 && code <= 21037:
		return CRS{Code: code, kind: kindUTM, zone: code - 21000, south: true, datum: &arc1960}, nil
	case code >= 21095 && code <= 21097:
		return CRS{Code: code, kind: kindUTM, zone: code - 21060, datum: &arc1960}, nil
	}
	return CRS{}, fmt.Errorf("EPSG:%d: %w", code, domainErrors.ErrUnsupportedCRS)
}

// InferCRS guesses the CRS of undeclared input. Only geographic
// coordinates can be recognized reliably.
func InferCRS(g orb.Geometry) (CRS, error) {
	if g == nil {
		return CRS{}, fmt.Errorf("nil geometry: %w", domainErrors.ErrUnsupportedCRS)
	}
	b := g.Bound()
	if b.Min[0] >= -180 && b.Max[0] <= 180 && b.Min[1] >= -90 && b.Max[1] <= 90 {
		return WGS84, nil
	}
	return CRS{}, fmt.Errorf("coordinates outside geographic range, declare the source crs: %w", domainErrors.ErrUnsupportedCRS)
}

// toWGS84 returns the projection from c into EPSG:4326.
func (c CRS) toWGS84() orb.Projection {
	switch c.kind {
	case kindWebMercator:
		return project.Mercator.ToWGS84
	case kindUTM:
		zone, south, d := c.zone, c.south, c.datum
		if d == nil {
			return func(p orb.Point) orb.Point {
				lon, lat := utmInverse(wgs84Ellipsoid, zone, south, p[0], p[1])
				return orb.Point{lon, lat}
			}
		}
		return func(p orb.Point) orb.Point {
			lon, lat := utmInverse(d.ellipsoid, zone, south, p[0], p[1])
			lon, lat = d.toWGS84(lon, lat)
			return orb.Point{lon, lat}
		}
	}
	return func(p orb.Point) orb.Point { return p }
}

func validLonLat(p orb.Point) bool {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
		return false
	}
	return p[0] >= -180 && p[0] <= 180 && p[1] >= -90 && p[1] <= 90
}
