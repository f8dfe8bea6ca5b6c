package service

import (
	"context"
	"testing"

	"github.com/spec-kit/storefront-realtime/internal/auth"
	"github.com/spec-kit/storefront-realtime/internal/config"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

func TestRegisterThenLogin(t *testing.T) {
	users := newFakeUsers()
	tokens := auth.NewTokenManager("secret", 5)
	svc := NewAuthService(config.AuthConfig{BcryptCost: 4}, users, tokens)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "Cara", "Cara@Example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if registered.User.Email != "cara@example.com" || registered.User.IsAdmin() {
		t.Fatalf("unexpected user %+v", registered.User)
	}

	if _, err := svc.Register(ctx, "Cara", "cara@example.com", "correct-horse"); apperrors.ToDomainError(err).Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT on duplicate email, got %v", err)
	}

	login, err := svc.Login(ctx, "cara@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := tokens.ParseToken(login.Value)
	if err != nil || claims.UserID() != registered.User.ID {
		t.Fatalf("token does not identify the user: %v %+v", err, claims)
	}

	if _, err := svc.Login(ctx, "cara@example.com", "wrong-password"); apperrors.ToDomainError(err).Code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "correct-horse"); apperrors.ToDomainError(err).Code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED for unknown email, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewAuthService(config.AuthConfig{BcryptCost: 4}, newFakeUsers(), auth.NewTokenManager("secret", 5))

	if _, err := svc.Register(context.Background(), "x", "bad", "correct-horse"); apperrors.ToDomainError(err).Code != "VALIDATION_FAILED" {
		t.Fatalf("expected validation error for email, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "x", "x@example.com", "short"); apperrors.ToDomainError(err).Code != "VALIDATION_FAILED" {
		t.Fatalf("expected validation error for password, got %v", err)
	}
}
