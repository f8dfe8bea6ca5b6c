package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-realtime/internal/api/dto"
	"github.com/spec-kit/storefront-realtime/internal/service"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

// OrdersHandler covers order writes and the admin order reads.
type OrdersHandler struct {
	service *service.OrderService
}

// NewOrdersHandler constructs handler.
func NewOrdersHandler(orderService *service.OrderService) *OrdersHandler {
	return &OrdersHandler{service: orderService}
}

// Create POST /api/orders.
func (h *OrdersHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	order, err := h.service.Create(c.UserContext(), user, service.OrderCreateInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		TotalAmount:   req.TotalAmount,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": service.OrderPayload(*order)})
}

// Stats GET /api/orders/stats.
func (h *OrdersHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.OrderStatsPayload(stats)})
}

// Recent GET /api/orders/recent.
func (h *OrdersHandler) Recent(c *fiber.Ctx) error {
	orders, err := h.service.ListRecent(c.UserContext(), parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.OrderListPayload(orders)})
}

// Update PATCH /api/orders/:id.
func (h *OrdersHandler) Update(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "order")
	if err != nil {
		return err
	}
	var req dto.UpdateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	order, err := h.service.Update(c.UserContext(), user, id, service.OrderUpdateInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		TotalAmount:   req.TotalAmount,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.OrderPayload(*order)})
}

// UpdateStatus PATCH /api/orders/:id/status.
func (h *OrdersHandler) UpdateStatus(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "order")
	if err != nil {
		return err
	}
	var req dto.UpdateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if !req.Status.Valid() {
		return apperrors.NewValidationError("unknown order status", map[string]any{"status": req.Status})
	}
	order, err := h.service.UpdateStatus(c.UserContext(), user, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.OrderPayload(*order)})
}
