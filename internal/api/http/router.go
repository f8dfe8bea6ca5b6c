package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/storefront-realtime/internal/api/http/handlers"
	"github.com/spec-kit/storefront-realtime/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Orders         *handlers.OrdersHandler
	Contacts       *handlers.ContactsHandler
	Chat           *handlers.ChatHandler
	WS             *handlers.WSHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP and socket routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	api := app.Group("/api")
	api.Post("/contacts", cfg.Contacts.Create)

	signedIn := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	signedIn.Post("/orders", cfg.Orders.Create)
	signedIn.Post("/chat/conversations", cfg.Chat.Open)
	signedIn.Get("/chat/conversations/:id", cfg.Chat.Get)
	signedIn.Get("/chat/conversations/:id/messages", cfg.Chat.Messages)
	signedIn.Post("/chat/conversations/:id/messages", cfg.Chat.SendMessage)
	signedIn.Post("/chat/conversations/:id/read", cfg.Chat.MarkRead)
	signedIn.Post("/chat/messages/:id/viewed", cfg.Chat.MarkViewed)

	admin := api.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	admin.Get("/orders/stats", cfg.Orders.Stats)
	admin.Get("/orders/recent", cfg.Orders.Recent)
	admin.Patch("/orders/:id", cfg.Orders.Update)
	admin.Patch("/orders/:id/status", cfg.Orders.UpdateStatus)
	admin.Get("/contacts/stats", cfg.Contacts.Stats)
	admin.Get("/contacts/recent", cfg.Contacts.Recent)
	admin.Patch("/contacts/:id", cfg.Contacts.Update)
	admin.Delete("/contacts/:id", cfg.Contacts.Delete)
	admin.Get("/chat/conversations", cfg.Chat.List)
	admin.Patch("/chat/conversations/:id", cfg.Chat.Update)
	admin.Get("/chat/stats", cfg.Chat.InboxStats)
	admin.Get("/chat/online", cfg.Chat.OnlineUsers)

	ws := app.Group("/ws", cfg.WS.Upgrade, cfg.AuthMiddleware.QueryToken)
	ws.Get("/admin/orders", cfg.WS.Orders())
	ws.Get("/admin/contacts", cfg.WS.Contacts())
	ws.Get("/admin/inbox", cfg.WS.Inbox())
	ws.Get("/chat/:id", cfg.WS.Chat())
}
