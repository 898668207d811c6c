package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrPlotUnavailable   = errors.New("plot unavailable")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrStatusConflict    = errors.New("status conflict")
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrUnsupportedCRS    = errors.New("unsupported coordinate reference system")
	ErrQueueFull         = errors.New("import queue full")
	ErrInvalidCustomer   = errors.New("invalid customer")
	ErrInvalidImport     = errors.New("invalid import request")
)

// GeometryError reports a source geometry that could not be parsed,
// reprojected or repaired. It is scoped to a single feature.
type GeometryError struct {
	Reason string
	Err    error
}

// NewGeometryError builds a GeometryError with an optional cause.
func NewGeometryError(reason string, cause error) *GeometryError {
	return &GeometryError{Reason: reason, Err: cause}
}

func (e *GeometryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geometry: %s: %v", e.Reason, e.Err)
	}
	return "geometry: " + e.Reason
}

func (e *GeometryError) Unwrap() error { return e.Err }

// DuplicateCodeConflict is raised when a candidate plot code is already
// bound to a different geometry.
type DuplicateCodeConflict struct {
	Code       string
	ExistingID string
}

func (e *DuplicateCodeConflict) Error() string {
	if e.ExistingID == "" {
		return fmt.Sprintf("plot code %q already claimed by another feature in this batch", e.Code)
	}
	return fmt.Sprintf("plot code %q already bound to a different geometry (plot %s)", e.Code, e.ExistingID)
}

// AttributeMappingWarning notes a canonical field resolved by default.
type AttributeMappingWarning struct {
	Field   string
	Default string
}

func (w AttributeMappingWarning) String() string {
	return fmt.Sprintf("%s not found in source attributes, defaulted to %q", w.Field, w.Default)
}
