package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// invalidTextRepresentation is the SQLSTATE postgres returns when a
// malformed id is compared against a uuid column.
const invalidTextRepresentation = "22P02"

// Sentinel errors returned by services and mapped to HTTP statuses.
var (
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrEmptyMessage       = errors.New("message content required")
	ErrConversationClosed = errors.New("conversation closed")
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return NewNotFound("resource", nil).(*DomainError)
	case errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation:
		return NewNotFound("resource", nil).(*DomainError)
	case errors.Is(err, ErrAccessDenied):
		return NewDomainError("FORBIDDEN", err.Error(), http.StatusForbidden, nil)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConversationClosed):
		return NewDomainError("CONFLICT", err.Error(), http.StatusConflict, nil)
	case errors.Is(err, ErrEmptyMessage):
		return NewDomainError("VALIDATION_FAILED", err.Error(), http.StatusBadRequest, nil)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts err into a DomainError wrapped as error.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// PublicMessage returns a message that is safe to send to a client.
func PublicMessage(err error) string {
	if de := ToDomainError(err); de != nil {
		return de.Message
	}
	return ""
}
