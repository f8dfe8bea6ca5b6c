package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestToDomainErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
		want int
	}{
		{name: "no rows", err: pgx.ErrNoRows, code: "NOT_FOUND", want: http.StatusNotFound},
		{name: "malformed uuid", err: fmt.Errorf("get order: %w", &pgconn.PgError{Code: "22P02"}), code: "NOT_FOUND", want: http.StatusNotFound},
		{name: "other pg error", err: &pgconn.PgError{Code: "23505"}, code: "INTERNAL_ERROR", want: http.StatusInternalServerError},
		{name: "access denied", err: ErrAccessDenied, code: "FORBIDDEN", want: http.StatusForbidden},
		{name: "transition", err: fmt.Errorf("order: %w", ErrInvalidTransition), code: "CONFLICT", want: http.StatusConflict},
		{name: "closed", err: ErrConversationClosed, code: "CONFLICT", want: http.StatusConflict},
		{name: "empty message", err: ErrEmptyMessage, code: "VALIDATION_FAILED", want: http.StatusBadRequest},
		{name: "unknown", err: errors.New("boom"), code: "INTERNAL_ERROR", want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			if de.Code != tc.code || de.HTTPStatus != tc.want {
				t.Fatalf("got %s/%d, want %s/%d", de.Code, de.HTTPStatus, tc.code, tc.want)
			}
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	if MapError(nil) != nil || ToDomainError(nil) != nil {
		t.Fatal("expected nil for nil")
	}
}
