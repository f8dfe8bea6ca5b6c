package handlers

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/auth"
	"github.com/spec-kit/storefront-realtime/internal/domain"
	"github.com/spec-kit/storefront-realtime/internal/realtime"
)

// WSHandler upgrades socket requests and hands them to the realtime hub.
// Identity is whatever auth.AuthMiddleware.QueryToken resolved; anonymous
// connections are upgraded and then closed by the hub.
type WSHandler struct {
	// ctx ends when the server shuts down and closes every socket.
	ctx context.Context

	hub           *realtime.Hub
	logger        *zap.Logger
	maxFrameBytes int64
}

// NewWSHandler constructs handler.
func NewWSHandler(ctx context.Context, hub *realtime.Hub, maxFrameBytes int64, logger *zap.Logger) *WSHandler {
	return &WSHandler{ctx: ctx, hub: hub, logger: logger, maxFrameBytes: maxFrameBytes}
}

// Upgrade rejects plain HTTP requests on socket routes.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// Orders serves /ws/admin/orders/.
func (h *WSHandler) Orders() fiber.Handler {
	return h.serve("orders", func(conn *websocket.Conn, user *domain.User) error {
		return h.hub.ServeOrders(h.ctx, conn, user)
	})
}

// Contacts serves /ws/admin/contacts/.
func (h *WSHandler) Contacts() fiber.Handler {
	return h.serve("contacts", func(conn *websocket.Conn, user *domain.User) error {
		return h.hub.ServeContacts(h.ctx, conn, user)
	})
}

// Inbox serves /ws/admin/inbox/.
func (h *WSHandler) Inbox() fiber.Handler {
	return h.serve("inbox", func(conn *websocket.Conn, user *domain.User) error {
		return h.hub.ServeInbox(h.ctx, conn, user)
	})
}

// Chat serves /ws/chat/:id/.
func (h *WSHandler) Chat() fiber.Handler {
	return h.serve("chat", func(conn *websocket.Conn, user *domain.User) error {
		return h.hub.ServeChat(h.ctx, conn, user, conn.Params("id"))
	})
}

func (h *WSHandler) serve(name string, run func(*websocket.Conn, *domain.User) error) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		if h.maxFrameBytes > 0 {
			conn.SetReadLimit(h.maxFrameBytes)
		}
		user, _ := conn.Locals(auth.UserLocalsKey).(*domain.User)
		if err := run(conn, user); err != nil {
			h.logger.Debug("socket closed", zap.String("consumer", name), zap.Error(err))
		}
	})
}
