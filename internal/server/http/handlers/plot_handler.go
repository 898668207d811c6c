package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/export"
	"github.com/polkiloo/plotcatalog/internal/server/http/dto"
)

const geoJSONContentType = "application/geo+json"

// renderGeoJSON writes v as JSON under the GeoJSON media type. gin keeps a
// content type that is already set.
func renderGeoJSON(c *gin.Context, v any) {
	c.Header("Content-Type", geoJSONContentType)
	c.JSON(http.StatusOK, v)
}

// PlotHandler manages catalog endpoints.
type PlotHandler struct {
	facade PlotFacade
}

// NewPlotHandler constructs PlotHandler.
func NewPlotHandler(facade PlotFacade) *PlotHandler {
	return &PlotHandler{facade: facade}
}

// Search handles GET /api/plots.
func (h *PlotHandler) Search(c *gin.Context) {
	filter, err := plotFilterFromQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	plots, err := h.facade.SearchPlots(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	renderGeoJSON(c, dto.PlotCollection(plots))
}

// Get handles GET /api/plots/:id. The parameter may be a plot id or a
// plot code; a "/" inside a code arrives percent-encoded.
func (h *PlotHandler) Get(c *gin.Context) {
	ref := c.Param("id")

	var (
		plot *model.LandPlot
		err  error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		plot, err = h.facade.Plot(c.Request.Context(), id)
	} else {
		plot, err = h.facade.PlotByCode(c.Request.Context(), ref)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	renderGeoJSON(c, dto.PlotFeature(*plot))
}

// Stats handles GET /api/stats.
func (h *PlotHandler) Stats(c *gin.Context) {
	stats, err := h.facade.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewStatsResponse(stats))
}

// Export handles GET /api/exports/plots.xlsx.
func (h *PlotHandler) Export(c *gin.Context) {
	filter, err := plotFilterFromQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := h.facade.ExportPlots(c.Request.Context(), filter, &buf); err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="plots.xlsx"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
