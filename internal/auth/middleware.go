package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/storefront-realtime/internal/domain"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

// UserLocalsKey is the fiber locals key holding the resolved *domain.User.
const UserLocalsKey = "auth_user"

// TokenQueryParam carries the bearer credential on socket upgrades.
const TokenQueryParam = "token"

var errInactiveUser = errors.New("user inactive")

// UserFinder loads the user named by a token.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// AuthMiddleware resolves bearer tokens into users.
type AuthMiddleware struct {
	tokens *TokenManager
	users  UserFinder
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users UserFinder) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	user, err := m.resolve(c.UserContext(), parts[1])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, errInactiveUser) {
			return apperrors.NewUnauthorized("user not found")
		}
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) {
			return err
		}
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(UserLocalsKey, user)
	return c.Next()
}

// Optional attaches the bearer user when one is presented and continues
// anonymously otherwise.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		if user, err := m.resolve(c.UserContext(), parts[1]); err == nil {
			c.Locals(UserLocalsKey, user)
		}
	}
	return c.Next()
}

// QueryToken resolves the ?token= credential of a socket upgrade. It never
// rejects: an absent or invalid token leaves the connection anonymous and
// the consumer decides whether to close it.
func (m *AuthMiddleware) QueryToken(c *fiber.Ctx) error {
	if raw := c.Query(TokenQueryParam); raw != "" {
		if user, err := m.resolve(c.UserContext(), raw); err == nil {
			c.Locals(UserLocalsKey, user)
		}
	}
	return c.Next()
}

func (m *AuthMiddleware) resolve(ctx context.Context, raw string) (*domain.User, error) {
	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return nil, err
	}
	user, err := m.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, apperrors.MapError(err)
	}
	if !user.IsActive {
		return nil, errInactiveUser
	}
	return user, nil
}

// UserFromContext retrieves the authenticated user.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	user, ok := c.Locals(UserLocalsKey).(*domain.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}
