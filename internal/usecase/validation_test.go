package usecase

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

func ptr(v float64) *float64 { return &v }

func TestValidatePlotFilter(t *testing.T) {
	cases := []struct {
		name   string
		filter model.PlotFilter
		valid  bool
	}{
		{"empty", model.PlotFilter{}, true},
		{"area range", model.PlotFilter{MinArea: ptr(1), MaxArea: ptr(2)}, true},
		{"inverted area", model.PlotFilter{MinArea: ptr(3), MaxArea: ptr(2)}, false},
		{"negative area", model.PlotFilter{MinArea: ptr(-1)}, false},
		{"negative max area", model.PlotFilter{MaxArea: ptr(-1)}, false},
		{"bbox", model.PlotFilter{BBox: &orb.Bound{Min: orb.Point{39, -7}, Max: orb.Point{40, -6}}}, true},
		{"inverted bbox", model.PlotFilter{BBox: &orb.Bound{Min: orb.Point{40, -7}, Max: orb.Point{39, -6}}}, false},
		{"bbox out of range", model.PlotFilter{BBox: &orb.Bound{Min: orb.Point{39, -95}, Max: orb.Point{40, -6}}}, false},
		{"unknown status", model.PlotFilter{Status: "sold"}, false},
		{"known status", model.PlotFilter{Status: model.PlotStatusTaken}, true},
		{"unknown match", model.PlotFilter{Match: model.MatchMode(7)}, false},
		{"negative limit", model.PlotFilter{Limit: -1}, false},
		{"negative offset", model.PlotFilter{Offset: -1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidatePlotFilter(tc.filter)
			if tc.valid && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.valid && !errors.Is(err, domainErrors.ErrInvalidFilter) {
				t.Fatalf("expected invalid filter, got %v", err)
			}
		})
	}
}

func TestValidatePlotFilterPaging(t *testing.T) {
	f, err := ValidatePlotFilter(model.PlotFilter{District: "  Kinondoni "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Limit != DefaultPageSize || f.District != "Kinondoni" {
		t.Fatalf("unexpected normalized filter %+v", f)
	}

	f, err = ValidatePlotFilter(model.PlotFilter{Limit: MaxPageSize * 5, Offset: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Limit != MaxPageSize || f.Offset != 10 {
		t.Fatalf("expected capped limit, got %+v", f)
	}
}

func TestValidateOrderFilter(t *testing.T) {
	if _, err := ValidateOrderFilter(model.OrderFilter{Status: "cancelled"}); !errors.Is(err, domainErrors.ErrInvalidFilter) {
		t.Fatalf("expected invalid filter, got %v", err)
	}
	f, err := ValidateOrderFilter(model.OrderFilter{Status: model.OrderStatusPending})
	if err != nil || f.Limit != DefaultPageSize {
		t.Fatalf("unexpected result %+v %v", f, err)
	}
}

func TestValidateCustomer(t *testing.T) {
	valid := model.Customer{FirstName: " Asha ", LastName: "Said", Phone: "+255 700-000-000", Email: "asha@example.com"}

	got, err := ValidateCustomer(valid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FirstName != "Asha" {
		t.Fatalf("expected trimmed first name, got %q", got.FirstName)
	}

	cases := []struct {
		name   string
		mutate func(*model.Customer)
	}{
		{"missing first name", func(c *model.Customer) { c.FirstName = "  " }},
		{"missing last name", func(c *model.Customer) { c.LastName = "" }},
		{"missing phone", func(c *model.Customer) { c.Phone = "" }},
		{"missing email", func(c *model.Customer) { c.Email = "" }},
		{"letters in phone", func(c *model.Customer) { c.Phone = "call me" }},
		{"short phone", func(c *model.Customer) { c.Phone = "12345" }},
		{"plus in middle", func(c *model.Customer) { c.Phone = "255+700000000" }},
		{"malformed email", func(c *model.Customer) { c.Email = "asha.example.com" }},
		{"display name email", func(c *model.Customer) { c.Email = "Asha <asha@example.com>" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			if _, err := ValidateCustomer(c); !errors.Is(err, domainErrors.ErrInvalidCustomer) {
				t.Fatalf("expected invalid customer, got %v", err)
			}
		})
	}
}
