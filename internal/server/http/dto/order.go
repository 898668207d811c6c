package dto

import (
	"time"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

// ReserveRequest describes the customer placing an order.
type ReserveRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
	Email     string `json:"email" binding:"required"`
}

func (r ReserveRequest) Customer() model.Customer {
	return model.Customer{FirstName: r.FirstName, LastName: r.LastName, Phone: r.Phone, Email: r.Email}
}

// DecisionRequest carries an optional note for approve and reject.
type DecisionRequest struct {
	Note string `json:"note" binding:"max=1000"`
}

type CustomerResponse struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// OrderResponse describes an order. PlotCode is empty right after a
// reservation.
type OrderResponse struct {
	ID        string           `json:"id"`
	PlotID    string           `json:"plot_id"`
	PlotCode  string           `json:"plot_code,omitempty"`
	Status    string           `json:"status"`
	Note      string           `json:"note,omitempty"`
	Customer  CustomerResponse `json:"customer"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func NewOrderResponse(o model.Order, plotCode string) OrderResponse {
	return OrderResponse{
		ID:       o.ID.String(),
		PlotID:   o.PlotID.String(),
		PlotCode: plotCode,
		Status:   string(o.Status),
		Note:     o.Note,
		Customer: CustomerResponse{
			FirstName: o.Customer.FirstName,
			LastName:  o.Customer.LastName,
			Phone:     o.Customer.Phone,
			Email:     o.Customer.Email,
		},
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}
