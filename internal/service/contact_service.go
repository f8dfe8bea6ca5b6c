package service

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/domain"
	"github.com/spec-kit/storefront-realtime/internal/events"
	"github.com/spec-kit/storefront-realtime/internal/repository"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

// ContactService handles support inbox submissions.
type ContactService struct {
	contacts repository.ContactRepository
	eventPublisher
}

// ContactCreateInput is a public contact form submission.
type ContactCreateInput struct {
	Name    string
	Email   string
	Phone   string
	Subject string
	Message string
}

// ContactUpdateInput toggles the inbox flags.
type ContactUpdateInput struct {
	IsRead    *bool
	IsReplied *bool
}

// NewContactService builds the service.
func NewContactService(contacts repository.ContactRepository, dispatcher events.Dispatcher, logger *zap.Logger) *ContactService {
	return &ContactService{contacts: contacts, eventPublisher: newEventPublisher(dispatcher, logger)}
}

// Create stores a submission and announces it to the admin feed.
func (s *ContactService) Create(ctx context.Context, input ContactCreateInput) (*domain.Contact, error) {
	contact := &domain.Contact{
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.TrimSpace(input.Email),
		Phone:   strings.TrimSpace(input.Phone),
		Subject: strings.TrimSpace(input.Subject),
		Message: strings.TrimSpace(input.Message),
	}
	missing := make([]string, 0, 3)
	if contact.Name == "" {
		missing = append(missing, "name")
	}
	if contact.Email == "" {
		missing = append(missing, "email")
	}
	if contact.Message == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	if _, err := mail.ParseAddress(contact.Email); err != nil {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"field": "email"})
	}

	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventContactCreated,
		Key:     contact.ID,
		Payload: events.ContactPayload{Contact: *contact},
	})
	return contact, nil
}

// Update changes the read/replied flags.
func (s *ContactService) Update(ctx context.Context, actor *domain.User, id string, input ContactUpdateInput) (*domain.Contact, error) {
	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if input.IsRead != nil {
		contact.IsRead = *input.IsRead
	}
	if input.IsReplied != nil {
		contact.IsReplied = *input.IsReplied
		if contact.IsReplied {
			contact.IsRead = true
		}
	}
	if err := s.contacts.Update(ctx, contact); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventContactUpdated,
		Key:     contact.ID,
		Actor:   actorOf(actor),
		Payload: events.ContactPayload{Contact: *contact},
	})
	return contact, nil
}

// MarkRead flags a submission as read.
func (s *ContactService) MarkRead(ctx context.Context, actor *domain.User, id string) (*domain.Contact, error) {
	read := true
	return s.Update(ctx, actor, id, ContactUpdateInput{IsRead: &read})
}

// Delete removes a submission.
func (s *ContactService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := s.contacts.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventContactDeleted,
		Key:     id,
		Actor:   actorOf(actor),
		Payload: events.ContactDeletedPayload{ContactID: id},
	})
	return nil
}

// Stats aggregates the inbox counters.
func (s *ContactService) Stats(ctx context.Context) (domain.ContactStats, error) {
	stats, err := s.contacts.Stats(ctx)
	if err != nil {
		return domain.ContactStats{}, apperrors.MapError(err)
	}
	return stats, nil
}

// ListRecent returns the newest submissions first.
func (s *ContactService) ListRecent(ctx context.Context, limit int) ([]domain.Contact, error) {
	contacts, err := s.contacts.ListRecent(ctx, clampLimit(limit))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return contacts, nil
}
