package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus describes the reservation lifecycle.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusApproved OrderStatus = "approved"
	OrderStatusRejected OrderStatus = "rejected"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusApproved, OrderStatusRejected:
		return true
	}
	return false
}

// Customer carries the identity of the person reserving a plot.
type Customer struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
}

// Order reserves exactly one plot by reference.
type Order struct {
	ID        uuid.UUID
	PlotID    uuid.UUID
	Customer  Customer
	Status    OrderStatus
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderView is an order joined with the code of its plot.
type OrderView struct {
	Order
	PlotCode string
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status OrderStatus
	PlotID *uuid.UUID
	Limit  int
	Offset int
}
