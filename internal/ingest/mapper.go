package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

// UnknownLocation is used when neither the feature nor the batch names a
// location level.
const UnknownLocation = "Unknown"

// Aliases lists, per canonical field, the source attribute names that
// may carry it. Matching is case-insensitive and the first non-blank
// alias wins.
type Aliases struct {
	District         []string `yaml:"district"`
	Ward             []string `yaml:"ward"`
	Village          []string `yaml:"village"`
	PlotCode         []string `yaml:"plot_code"`
	AreaHectares     []string `yaml:"area_hectares"`
	AreaSquareMeters []string `yaml:"area_square_meters"`
	Geometry         []string `yaml:"geometry"`
}

func DefaultAliases() Aliases {
	return Aliases{
		District:         []string{"district", "district_n", "dist_name", "wilaya"},
		Ward:             []string{"ward", "ward_name", "kata"},
		Village:          []string{"village", "village_na", "kijiji", "mtaa"},
		PlotCode:         []string{"plot_code", "plotcode", "code", "plot_no", "plotnum", "plot_id", "plotid"},
		AreaHectares:     []string{"area_ha", "hectares", "area_hect", "area"},
		AreaSquareMeters: []string{"area_m2", "shape_area"},
		Geometry:         []string{"geometry", "geom", "the_geom", "wkb_geometry", "shape"},
	}
}

// LoadAliases reads a YAML alias file. Fields the file leaves empty keep
// their defaults.
func LoadAliases(path string) (Aliases, error) {
	aliases := DefaultAliases()
	if path == "" {
		return aliases, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Aliases{}, fmt.Errorf("read alias file: %w", err)
	}

	var override Aliases
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Aliases{}, fmt.Errorf("parse alias file: %w", err)
	}

	merge := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	merge(&aliases.District, override.District)
	merge(&aliases.Ward, override.Ward)
	merge(&aliases.Village, override.Village)
	merge(&aliases.PlotCode, override.PlotCode)
	merge(&aliases.AreaHectares, override.AreaHectares)
	merge(&aliases.AreaSquareMeters, override.AreaSquareMeters)
	merge(&aliases.Geometry, override.Geometry)
	return aliases, nil
}

// Mapped holds the canonical fields resolved from one feature.
type Mapped struct {
	Location   model.Location
	PlotCode   string
	SourceArea *decimal.Decimal
	Attributes map[string]any
	Warnings   []domainErrors.AttributeMappingWarning
}

// Mapper resolves canonical plot fields from free-form source attributes.
type Mapper struct {
	aliases Aliases
}

func NewMapper(aliases Aliases) *Mapper {
	return &Mapper{aliases: aliases}
}

func (m *Mapper) Map(props map[string]any, defaults model.Location) Mapped {
	keys := make(map[string]string, len(props))
	for k := range props {
		lower := strings.ToLower(strings.TrimSpace(k))
		if prev, ok := keys[lower]; !ok || k < prev {
			keys[lower] = k
		}
	}

	// A key is consumed only when its value is accepted; rejected values
	// stay in Attributes verbatim and the next alias is tried.
	consumed := make(map[string]struct{})
	find := func(aliases []string, accept func(string) bool) (string, bool) {
		for _, alias := range aliases {
			key, ok := keys[strings.ToLower(alias)]
			if !ok {
				continue
			}
			value := stringValue(props[key])
			if value == "" || (accept != nil && !accept(value)) {
				continue
			}
			consumed[key] = struct{}{}
			return value, true
		}
		return "", false
	}
	lookup := func(aliases []string) (string, bool) { return find(aliases, nil) }
	area := func(aliases []string, scale decimal.Decimal) *decimal.Decimal {
		var parsed decimal.Decimal
		_, ok := find(aliases, func(v string) bool {
			d, err := decimal.NewFromString(v)
			if err != nil || !d.IsPositive() {
				return false
			}
			parsed = d
			return true
		})
		if !ok {
			return nil
		}
		hectares := parsed.Div(scale).Round(4)
		return &hectares
	}

	var out Mapped
	location := func(field string, aliases []string, fallback string) string {
		if v, ok := lookup(aliases); ok {
			return v
		}
		if fallback != "" {
			return fallback
		}
		out.Warnings = append(out.Warnings, domainErrors.AttributeMappingWarning{Field: field, Default: UnknownLocation})
		return UnknownLocation
	}

	out.Location = model.Location{
		District: location("district", m.aliases.District, defaults.District),
		Ward:     location("ward", m.aliases.Ward, defaults.Ward),
		Village:  location("village", m.aliases.Village, defaults.Village),
	}
	out.PlotCode, _ = lookup(m.aliases.PlotCode)

	out.SourceArea = area(m.aliases.AreaHectares, decimal.NewFromInt(1))
	if out.SourceArea == nil {
		out.SourceArea = area(m.aliases.AreaSquareMeters, decimal.NewFromInt(10000))
	}

	for _, alias := range m.aliases.Geometry {
		if key, ok := keys[strings.ToLower(alias)]; ok {
			consumed[key] = struct{}{}
		}
	}

	out.Attributes = make(map[string]any, len(props))
	for k, v := range props {
		if _, ok := consumed[k]; ok {
			continue
		}
		out.Attributes[k] = v
	}
	return out
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
