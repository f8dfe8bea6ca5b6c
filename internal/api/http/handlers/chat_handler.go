package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-realtime/internal/api/dto"
	"github.com/spec-kit/storefront-realtime/internal/service"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

// ChatHandler is the HTTP side of live chat. Every write here reaches open
// sockets through the same events the socket commands publish.
type ChatHandler struct {
	service *service.ChatService
}

// NewChatHandler constructs handler.
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{service: chatService}
}

// Open POST /api/chat/conversations.
func (h *ChatHandler) Open(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.OpenConversationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	conv, created, err := h.service.OpenConversation(c.UserContext(), user, req.Subject)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": service.ConversationPayload(*conv)})
}

// List GET /api/chat/conversations (staff).
func (h *ChatHandler) List(c *fiber.Ctx) error {
	convs, err := h.service.ListConversations(c.UserContext(), parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.ConversationListPayload(convs)})
}

// Get GET /api/chat/conversations/:id.
func (h *ChatHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "conversation")
	if err != nil {
		return err
	}
	conv, err := h.service.Conversation(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.ConversationPayload(*conv)})
}

// Messages GET /api/chat/conversations/:id/messages.
func (h *ChatHandler) Messages(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "conversation")
	if err != nil {
		return err
	}
	msgs, err := h.service.Messages(c.UserContext(), user, id, parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.ChatMessageListPayload(msgs)})
}

// SendMessage POST /api/chat/conversations/:id/messages.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "conversation")
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.service.SendMessage(c.UserContext(), user, id, req.Content, req.MessageType)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": service.ChatMessagePayload(*msg)})
}

// MarkRead POST /api/chat/conversations/:id/read.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "conversation")
	if err != nil {
		return err
	}
	conv, err := h.service.MarkRead(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.ConversationPayload(*conv)})
}

// MarkViewed POST /api/chat/messages/:id/viewed.
func (h *ChatHandler) MarkViewed(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "message")
	if err != nil {
		return err
	}
	changed, err := h.service.MarkViewed(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message_id": id, "changed": changed}})
}

// Update PATCH /api/chat/conversations/:id (staff).
func (h *ChatHandler) Update(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "conversation")
	if err != nil {
		return err
	}
	var req dto.UpdateConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	conv, err := h.service.UpdateConversation(c.UserContext(), user, id, service.ConversationUpdateInput{
		AssignedStaffID: req.AssignedStaffID,
		Unassign:        req.Unassign,
		Status:          req.Status,
		Subject:         req.Subject,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.ConversationPayload(*conv)})
}

// InboxStats GET /api/chat/stats (staff).
func (h *ChatHandler) InboxStats(c *fiber.Ctx) error {
	stats, err := h.service.InboxStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.InboxStatsPayload(stats)})
}

// OnlineUsers GET /api/chat/online (staff).
func (h *ChatHandler) OnlineUsers(c *fiber.Ctx) error {
	users, err := h.service.OnlineUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.ParticipantListPayload(users)})
}
