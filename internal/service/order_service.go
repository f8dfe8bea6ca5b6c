package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/domain"
	"github.com/spec-kit/storefront-realtime/internal/events"
	"github.com/spec-kit/storefront-realtime/internal/repository"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

// orderTransitions lists the statuses each status may move to.
var orderTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed:  {domain.OrderStatusProcessing, domain.OrderStatusCancelled, domain.OrderStatusRefunded},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled, domain.OrderStatusRefunded},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered, domain.OrderStatusRefunded},
	domain.OrderStatusDelivered:  {domain.OrderStatusRefunded},
}

// CanTransition reports whether an order may move from one status to another.
// Saving an order without changing its status is always allowed.
func CanTransition(from, to domain.OrderStatus) bool {
	if from == to {
		return true
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderService owns order writes and emits the events behind the admin
// order feed.
type OrderService struct {
	orders repository.OrderRepository
	eventPublisher
}

// OrderCreateInput describes a checkout.
type OrderCreateInput struct {
	CustomerName  string
	CustomerEmail string
	TotalAmount   float64
}

// OrderUpdateInput changes non-status fields.
type OrderUpdateInput struct {
	CustomerName  *string
	CustomerEmail *string
	TotalAmount   *float64
}

// NewOrderService builds the service.
func NewOrderService(orders repository.OrderRepository, dispatcher events.Dispatcher, logger *zap.Logger) *OrderService {
	return &OrderService{orders: orders, eventPublisher: newEventPublisher(dispatcher, logger)}
}

// Create stores a new pending order for customer.
func (s *OrderService) Create(ctx context.Context, customer *domain.User, input OrderCreateInput) (*domain.Order, error) {
	if customer == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		name = customer.DisplayName()
	}
	email := strings.TrimSpace(input.CustomerEmail)
	if email == "" {
		email = customer.Email
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("invalid customer email", map[string]any{"field": "customer_email"})
	}
	if input.TotalAmount < 0 {
		return nil, apperrors.NewValidationError("total amount must not be negative", map[string]any{"field": "total_amount"})
	}

	order := &domain.Order{
		OrderNumber:   newOrderNumber(s.now()),
		CustomerID:    customer.ID,
		CustomerName:  name,
		CustomerEmail: email,
		Status:        domain.OrderStatusPending,
		TotalAmount:   input.TotalAmount,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventOrderCreated,
		Key:     order.ID,
		Actor:   actorOf(customer),
		Payload: events.OrderCreatedPayload{Order: *order},
	})
	return order, nil
}

// UpdateStatus moves an order to status. The status before the write is
// captured and sent along so listeners can tell a status change apart from
// any other save.
func (s *OrderService) UpdateStatus(ctx context.Context, actor *domain.User, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown order status", map[string]any{"status": status})
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	previous := order.Status
	if !CanTransition(previous, status) {
		return nil, fmt.Errorf("%w: %s to %s", apperrors.ErrInvalidTransition, previous, status)
	}

	order.Status = status
	return s.save(ctx, actor, order, previous)
}

// Update changes non-status fields and emits order_updated.
func (s *OrderService) Update(ctx context.Context, actor *domain.User, id string, input OrderUpdateInput) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	previous := order.Status

	if input.CustomerName != nil {
		order.CustomerName = strings.TrimSpace(*input.CustomerName)
	}
	if input.CustomerEmail != nil {
		if _, err := mail.ParseAddress(*input.CustomerEmail); err != nil {
			return nil, apperrors.NewValidationError("invalid customer email", map[string]any{"field": "customer_email"})
		}
		order.CustomerEmail = strings.TrimSpace(*input.CustomerEmail)
	}
	if input.TotalAmount != nil {
		if *input.TotalAmount < 0 {
			return nil, apperrors.NewValidationError("total amount must not be negative", map[string]any{"field": "total_amount"})
		}
		order.TotalAmount = *input.TotalAmount
	}
	return s.save(ctx, actor, order, previous)
}

func (s *OrderService) save(ctx context.Context, actor *domain.User, order *domain.Order, previous domain.OrderStatus) (*domain.Order, error) {
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventOrderUpdated,
		Key:     order.ID,
		Actor:   actorOf(actor),
		Payload: events.OrderUpdatedPayload{Order: *order, PreviousStatus: previous},
	})
	return order, nil
}

// Stats aggregates order counters; "today" starts at UTC midnight.
func (s *OrderService) Stats(ctx context.Context) (domain.OrderStats, error) {
	stats, err := s.orders.Stats(ctx, startOfDay(s.now()))
	if err != nil {
		return domain.OrderStats{}, apperrors.MapError(err)
	}
	return stats, nil
}

// ListRecent returns the newest orders first.
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]domain.Order, error) {
	orders, err := s.orders.ListRecent(ctx, clampLimit(limit))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return orders, nil
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
