package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/storefront-realtime/internal/api/dto"
	"github.com/spec-kit/storefront-realtime/internal/auth"
	"github.com/spec-kit/storefront-realtime/internal/domain"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return user, nil
}

// pathID returns the :id route param when it is a well-formed uuid.
func pathID(c *fiber.Ctx, resource string) (string, error) {
	raw := c.Params("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperrors.NewNotFound(resource, map[string]any{"id": raw})
	}
	return id.String(), nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{ID: user.ID, Name: user.Name, Email: user.Email, IsStaff: user.IsAdmin()}
}
