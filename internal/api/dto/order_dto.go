package dto

import "github.com/spec-kit/storefront-realtime/internal/domain"

// CreateOrderRequest payload.
type CreateOrderRequest struct {
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	TotalAmount   float64 `json:"total_amount"`
}

// UpdateOrderRequest changes order details; nil fields are left alone.
type UpdateOrderRequest struct {
	CustomerName  *string  `json:"customer_name"`
	CustomerEmail *string  `json:"customer_email"`
	TotalAmount   *float64 `json:"total_amount"`
}

// UpdateOrderStatusRequest moves an order through its lifecycle.
type UpdateOrderStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}
