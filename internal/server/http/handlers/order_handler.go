package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/server/http/dto"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	facade OrderFacade
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade OrderFacade) *OrderHandler {
	return &OrderHandler{facade: facade}
}

// Reserve handles POST /api/plots/:id/orders.
func (h *OrderHandler) Reserve(c *gin.Context) {
	plotID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	order, err := h.facade.Reserve(c.Request.Context(), plotID, req.Customer())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewOrderResponse(*order, ""))
}

// Approve handles POST /api/orders/:id/approve.
func (h *OrderHandler) Approve(c *gin.Context) {
	h.decide(c, h.facade.Approve)
}

// Reject handles POST /api/orders/:id/reject.
func (h *OrderHandler) Reject(c *gin.Context) {
	h.decide(c, h.facade.Reject)
}

type decision func(ctx context.Context, orderID uuid.UUID, note string) (*model.Order, error)

func (h *OrderHandler) decide(c *gin.Context, fn decision) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	// The note is optional, so an empty body is accepted.
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}

	order, err := fn(c.Request.Context(), orderID, req.Note)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(*order, ""))
}

// Get handles GET /api/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	view, err := h.facade.Order(c.Request.Context(), orderID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(view.Order, view.PlotCode))
}

// List handles GET /api/orders.
func (h *OrderHandler) List(c *gin.Context) {
	filter, err := orderFilterFromQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	views, err := h.facade.Orders(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}

	response := make([]dto.OrderResponse, 0, len(views))
	for _, v := range views {
		response = append(response, dto.NewOrderResponse(v.Order, v.PlotCode))
	}
	c.JSON(http.StatusOK, response)
}
