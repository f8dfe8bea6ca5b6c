package domain

import "time"

// OrderStatus enumerates the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// Order is the storefront order row that triggers admin feed broadcasts.
type Order struct {
	ID            string
	OrderNumber   string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	Status        OrderStatus
	TotalAmount   float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderStats is the aggregate pushed on the admin orders feed.
type OrderStats struct {
	TotalOrders      int64
	PendingOrders    int64
	ConfirmedOrders  int64
	ProcessingOrders int64
	ShippedOrders    int64
	DeliveredOrders  int64
	CancelledOrders  int64
	RefundedOrders   int64
	TodayOrders      int64
	TodayRevenue     float64
}
