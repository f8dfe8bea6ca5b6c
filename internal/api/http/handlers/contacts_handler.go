package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-realtime/internal/api/dto"
	"github.com/spec-kit/storefront-realtime/internal/service"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

// ContactsHandler serves the public contact form and its admin side.
type ContactsHandler struct {
	service *service.ContactService
}

// NewContactsHandler constructs handler.
func NewContactsHandler(contactService *service.ContactService) *ContactsHandler {
	return &ContactsHandler{service: contactService}
}

// Create POST /api/contacts.
func (h *ContactsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateContactRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	contact, err := h.service.Create(c.UserContext(), service.ContactCreateInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": service.ContactPayload(*contact)})
}

// Stats GET /api/contacts/stats.
func (h *ContactsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.ContactStatsPayload(stats)})
}

// Recent GET /api/contacts/recent.
func (h *ContactsHandler) Recent(c *fiber.Ctx) error {
	contacts, err := h.service.ListRecent(c.UserContext(), parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.ContactListPayload(contacts)})
}

// Update PATCH /api/contacts/:id.
func (h *ContactsHandler) Update(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "contact")
	if err != nil {
		return err
	}
	var req dto.UpdateContactRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	contact, err := h.service.Update(c.UserContext(), user, id, service.ContactUpdateInput{
		IsRead:    req.IsRead,
		IsReplied: req.IsReplied,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.ContactPayload(*contact)})
}

// Delete DELETE /api/contacts/:id.
func (h *ContactsHandler) Delete(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "contact")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), user, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
