package usecase

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

func invalidFilter(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domainErrors.ErrInvalidFilter)
}

// normalizePage applies the default page size and caps it.
func normalizePage(limit, offset int) (int, int, error) {
	if limit < 0 {
		return 0, 0, invalidFilter("limit must not be negative")
	}
	if offset < 0 {
		return 0, 0, invalidFilter("offset must not be negative")
	}
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return limit, offset, nil
}

// ValidatePlotFilter checks ranges and fills paging defaults.
func ValidatePlotFilter(f model.PlotFilter) (model.PlotFilter, error) {
	if f.Status != "" && !f.Status.Valid() {
		return f, invalidFilter("unknown plot status %q", f.Status)
	}
	if f.Match != model.MatchExact && f.Match != model.MatchPrefix {
		return f, invalidFilter("unknown match mode %d", f.Match)
	}
	if f.MinArea != nil && *f.MinArea < 0 {
		return f, invalidFilter("min area must not be negative")
	}
	if f.MaxArea != nil && *f.MaxArea < 0 {
		return f, invalidFilter("max area must not be negative")
	}
	if f.MinArea != nil && f.MaxArea != nil && *f.MinArea > *f.MaxArea {
		return f, invalidFilter("min area %v exceeds max area %v", *f.MinArea, *f.MaxArea)
	}
	if b := f.BBox; b != nil {
		if b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] {
			return f, invalidFilter("bbox minimum exceeds maximum")
		}
		if b.Min[0] < -180 || b.Max[0] > 180 || b.Min[1] < -90 || b.Max[1] > 90 {
			return f, invalidFilter("bbox outside geographic range")
		}
	}
	f.District = strings.TrimSpace(f.District)
	f.Ward = strings.TrimSpace(f.Ward)
	f.Village = strings.TrimSpace(f.Village)

	var err error
	if f.Limit, f.Offset, err = normalizePage(f.Limit, f.Offset); err != nil {
		return f, err
	}
	return f, nil
}

// ValidateOrderFilter checks the status and fills paging defaults.
func ValidateOrderFilter(f model.OrderFilter) (model.OrderFilter, error) {
	if f.Status != "" && !f.Status.Valid() {
		return f, invalidFilter("unknown order status %q", f.Status)
	}
	var err error
	if f.Limit, f.Offset, err = normalizePage(f.Limit, f.Offset); err != nil {
		return f, err
	}
	return f, nil
}

// ValidateCustomer trims the customer fields and requires all of them.
func ValidateCustomer(c model.Customer) (model.Customer, error) {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)

	required := []struct{ name, value string }{
		{"first name", c.FirstName},
		{"last name", c.LastName},
		{"phone", c.Phone},
		{"email", c.Email},
	}
	for _, field := range required {
		if field.value == "" {
			return c, fmt.Errorf("%s is required: %w", field.name, domainErrors.ErrInvalidCustomer)
		}
	}
	if !validPhone(c.Phone) {
		return c, fmt.Errorf("malformed phone %q: %w", c.Phone, domainErrors.ErrInvalidCustomer)
	}
	if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != c.Email {
		return c, fmt.Errorf("malformed email %q: %w", c.Email, domainErrors.ErrInvalidCustomer)
	}
	return c, nil
}

// validPhone accepts digits with an optional leading plus and the usual
// separators.
func validPhone(phone string) bool {
	digits := 0
	for i, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}
