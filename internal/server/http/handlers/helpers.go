package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paulmach/orb"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/server/http/dto"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, domainErrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainErrors.ErrPlotUnavailable), errors.Is(err, domainErrors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domainErrors.ErrInvalidFilter),
		errors.Is(err, domainErrors.ErrInvalidCustomer),
		errors.Is(err, domainErrors.ErrInvalidImport),
		errors.Is(err, domainErrors.ErrUnsupportedCRS):
		return http.StatusBadRequest
	case errors.Is(err, domainErrors.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// abortWithError writes the mapped status. Internal errors are not echoed.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		c.AbortWithStatus(status)
		return
	}
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: msg})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "malformed "+name)
		return uuid.Nil, false
	}
	return id, true
}

// plotFilterFromQuery parses catalog filters. Range checks are left to the
// use case.
func plotFilterFromQuery(c *gin.Context) (model.PlotFilter, error) {
	f := model.PlotFilter{
		District: c.Query("district"),
		Ward:     c.Query("ward"),
		Village:  c.Query("village"),
		Status:   model.PlotStatus(c.Query("status")),
	}

	switch strings.ToLower(c.Query("match")) {
	case "", "exact":
		f.Match = model.MatchExact
	case "prefix":
		f.Match = model.MatchPrefix
	default:
		return f, errors.New("match must be exact or prefix")
	}

	var err error
	if f.MinArea, err = optionalFloat(c, "min_area"); err != nil {
		return f, err
	}
	if f.MaxArea, err = optionalFloat(c, "max_area"); err != nil {
		return f, err
	}
	if raw := c.Query("bbox"); raw != "" {
		b, err := parseBBox(raw)
		if err != nil {
			return f, err
		}
		f.BBox = &b
	}
	if f.Limit, f.Offset, err = paging(c); err != nil {
		return f, err
	}
	return f, nil
}

func orderFilterFromQuery(c *gin.Context) (model.OrderFilter, error) {
	f := model.OrderFilter{Status: model.OrderStatus(c.Query("status"))}
	if raw := c.Query("plot_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, errors.New("malformed plot_id")
		}
		f.PlotID = &id
	}
	var err error
	f.Limit, f.Offset, err = paging(c)
	return f, err
}

func optionalFloat(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.New("malformed " + name)
	}
	return &v, nil
}

func paging(c *gin.Context) (int, int, error) {
	var limit, offset int
	var err error
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return 0, 0, errors.New("malformed limit")
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil {
			return 0, 0, errors.New("malformed offset")
		}
	}
	return limit, offset, nil
}

// parseBBox reads "minLon,minLat,maxLon,maxLat".
func parseBBox(raw string) (orb.Bound, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errors.New("bbox must be minLon,minLat,maxLon,maxLat")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, errors.New("malformed bbox")
		}
		v[i] = f
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
