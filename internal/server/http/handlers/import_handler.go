package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/server/http/dto"
)

// ImportHandler manages dataset import endpoints.
type ImportHandler struct {
	facade ImportFacade
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(facade ImportFacade) *ImportHandler {
	return &ImportHandler{facade: facade}
}

// Submit handles POST /api/imports. A JSON envelope carries the metadata
// with inline features or a source_url; a GeoJSON body is the collection
// itself with the metadata in the query string.
func (h *ImportHandler) Submit(c *gin.Context) {
	submission, err := h.submission(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, err)
			return
		}
		badRequest(c, err.Error())
		return
	}

	record, err := h.facade.SubmitImport(c.Request.Context(), submission)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.NewImportResponse(*record))
}

func (h *ImportHandler) submission(c *gin.Context) (model.ImportSubmission, error) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if mediaType == geoJSONContentType {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return model.ImportSubmission{}, err
		}
		return model.ImportSubmission{
			Dataset:    c.Query("dataset"),
			SourceCRS:  c.Query("crs"),
			CodePrefix: c.Query("code_prefix"),
			Defaults: model.Location{
				District: c.Query("district"),
				Ward:     c.Query("ward"),
				Village:  c.Query("village"),
			},
			Payload: body,
		}, nil
	}

	var req dto.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return model.ImportSubmission{}, err
	}
	return req.Submission(), nil
}

// List handles GET /api/imports.
func (h *ImportHandler) List(c *gin.Context) {
	records, err := h.facade.Imports(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	response := make([]dto.ImportResponse, 0, len(records))
	for _, r := range records {
		response = append(response, dto.NewImportResponse(r))
	}
	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/imports/:dataset.
func (h *ImportHandler) Get(c *gin.Context) {
	record, err := h.facade.Import(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewImportResponse(*record))
}
