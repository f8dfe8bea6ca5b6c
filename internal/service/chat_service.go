package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/domain"
	"github.com/spec-kit/storefront-realtime/internal/events"
	"github.com/spec-kit/storefront-realtime/internal/repository"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

const defaultHistoryLimit = 50

// ChatService coordinates conversations, messages, unread counters and
// presence. Every write publishes an event keyed by the conversation id so
// listeners see one conversation's events in write order.
type ChatService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	participants  repository.ParticipantRepository
	users         repository.UserRepository
	staff         StaffDirectory
	eventPublisher
}

// ChatDependencies bundles repositories for the chat service.
type ChatDependencies struct {
	ConversationRepo repository.ConversationRepository
	MessageRepo      repository.MessageRepository
	ParticipantRepo  repository.ParticipantRepository
	UserRepo         repository.UserRepository
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	// AutoAssign routes each new conversation to an active staff member
	// picked from UserRepo.
	AutoAssign bool
}

// ConversationUpdateInput describes an admin change to a conversation.
type ConversationUpdateInput struct {
	AssignedStaffID *string
	Unassign        bool
	Status          *domain.ConversationStatus
	Subject         *string
}

// NewChatService builds the service.
func NewChatService(deps ChatDependencies) *ChatService {
	s := &ChatService{
		conversations:  deps.ConversationRepo,
		messages:       deps.MessageRepo,
		participants:   deps.ParticipantRepo,
		users:          deps.UserRepo,
		eventPublisher: newEventPublisher(deps.Dispatcher, deps.Logger),
	}
	if deps.AutoAssign && deps.UserRepo != nil {
		s.staff = deps.UserRepo
	}
	return s
}

// OpenConversation returns the customer's open conversation, creating one
// when none exists. The bool reports whether a new row was created.
func (s *ChatService) OpenConversation(ctx context.Context, customer *domain.User, subject string) (*domain.Conversation, bool, error) {
	if customer == nil {
		return nil, false, apperrors.NewUnauthorized("authentication required")
	}
	existing, err := s.conversations.FindOpenByCustomer(ctx, customer.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, apperrors.MapError(err)
	}

	conv := &domain.Conversation{
		CustomerID: customer.ID,
		Subject:    strings.TrimSpace(subject),
		Status:     domain.ConversationStatusOpen,
	}
	s.autoAssign(ctx, conv)
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, false, apperrors.MapError(err)
	}
	if err := s.participants.SetPresence(ctx, conv.ID, customer.ID, false, s.now()); err != nil {
		s.logger.Warn("participant row not created", zap.String("conversation_id", conv.ID), zap.Error(err))
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventConversationCreated,
		Key:     conv.ID,
		Actor:   actorOf(customer),
		Payload: events.ConversationPayload{Conversation: *conv},
	})
	return conv, true, nil
}

// Conversation loads a conversation the user may access.
func (s *ChatService) Conversation(ctx context.Context, user *domain.User, id string) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !conv.CanAccess(user) {
		return nil, apperrors.ErrAccessDenied
	}
	return conv, nil
}

// SendMessage stores a message, bumps the recipient side's unread counter
// and announces it. A message from staff or a superuser counts as unread
// for the customer; anything else counts as unread for staff.
func (s *ChatService) SendMessage(ctx context.Context, sender *domain.User, conversationID, content string, msgType domain.MessageType) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.ErrEmptyMessage
	}
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	if !msgType.Valid() {
		return nil, apperrors.NewValidationError("unknown message type", map[string]any{"message_type": msgType})
	}

	conv, err := s.Conversation(ctx, sender, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status == domain.ConversationStatusClosed {
		return nil, apperrors.ErrConversationClosed
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		SenderName:     sender.DisplayName(),
		SenderIsStaff:  sender.IsAdmin(),
		MessageType:    msgType,
		Content:        content,
		DeliveryStatus: domain.DeliveryStatusSent,
	}
	updated, err := s.messages.Create(ctx, msg, domain.RecipientSide(sender))
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventMessageCreated,
		Key:     conv.ID,
		Actor:   actorOf(sender),
		Payload: events.MessageCreatedPayload{Message: *msg, Conversation: *updated},
	})
	return msg, nil
}

// MarkRead marks every message from the other side read and resets the
// reader's counter. Calling it again is a no-op that publishes nothing.
func (s *ChatService) MarkRead(ctx context.Context, reader *domain.User, conversationID string) (*domain.Conversation, error) {
	conv, err := s.Conversation(ctx, reader, conversationID)
	if err != nil {
		return nil, err
	}
	side := domain.ReaderSide(reader)
	hadUnread := unreadFor(conv, side) > 0

	ids, err := s.messages.MarkReadFromSide(ctx, conv.ID, side == domain.UnreadSideUser, s.now())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	updated, err := s.conversations.ResetUnread(ctx, conv.ID, side)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if len(ids) > 0 || hadUnread {
		s.publishEvent(ctx, events.Event{
			Type:  events.EventMessagesRead,
			Key:   conv.ID,
			Actor: actorOf(reader),
			Payload: events.MessagesReadPayload{
				Conversation:  *updated,
				ReaderID:      reader.ID,
				ReaderIsStaff: reader.IsAdmin(),
				MessageIDs:    ids,
			},
		})
	}
	return updated, nil
}

// MarkViewed marks a single message read by its recipient. It reports
// whether anything changed; viewing an own or already read message does not.
func (s *ChatService) MarkViewed(ctx context.Context, reader *domain.User, messageID string) (bool, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	conv, err := s.Conversation(ctx, reader, msg.ConversationID)
	if err != nil {
		return false, err
	}
	if msg.IsRead || msg.SenderIsStaff == reader.IsAdmin() {
		return false, nil
	}

	changed, err := s.messages.MarkRead(ctx, msg.ID, s.now())
	if err != nil {
		return false, apperrors.MapError(err)
	}
	if !changed {
		return false, nil
	}
	updated, err := s.conversations.DecrementUnread(ctx, conv.ID, domain.ReaderSide(reader))
	if err != nil {
		return false, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:  events.EventMessagesRead,
		Key:   conv.ID,
		Actor: actorOf(reader),
		Payload: events.MessagesReadPayload{
			Conversation:  *updated,
			ReaderID:      reader.ID,
			ReaderIsStaff: reader.IsAdmin(),
			MessageIDs:    []string{msg.ID},
		},
	})
	return true, nil
}

// UpdateConversation applies an admin change and announces it.
func (s *ChatService) UpdateConversation(ctx context.Context, actor *domain.User, id string, input ConversationUpdateInput) (*domain.Conversation, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrAccessDenied
	}
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	var changes []string
	switch {
	case input.Unassign:
		if conv.AssignedStaffID != nil {
			conv.AssignedStaffID = nil
			changes = append(changes, "assigned_staff_id")
		}
	case input.AssignedStaffID != nil:
		if conv.AssignedStaffID == nil || *conv.AssignedStaffID != *input.AssignedStaffID {
			if err := s.checkAssignee(ctx, *input.AssignedStaffID); err != nil {
				return nil, err
			}
			staffID := *input.AssignedStaffID
			conv.AssignedStaffID = &staffID
			changes = append(changes, "assigned_staff_id")
		}
	}
	if input.Status != nil && *input.Status != conv.Status {
		if !input.Status.Valid() {
			return nil, apperrors.NewValidationError("unknown conversation status", map[string]any{"status": *input.Status})
		}
		conv.Status = *input.Status
		changes = append(changes, "status")
	}
	if input.Subject != nil && strings.TrimSpace(*input.Subject) != conv.Subject {
		conv.Subject = strings.TrimSpace(*input.Subject)
		changes = append(changes, "subject")
	}
	if len(changes) == 0 {
		return conv, nil
	}

	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventConversationUpdated,
		Key:     conv.ID,
		Actor:   actorOf(actor),
		Payload: events.ConversationPayload{Conversation: *conv, Changes: changes},
	})
	return conv, nil
}

func (s *ChatService) checkAssignee(ctx context.Context, staffID string) error {
	if s.users == nil {
		return nil
	}
	assignee, err := s.users.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("staff", map[string]any{"staff_id": staffID})
		}
		return apperrors.MapError(err)
	}
	if !assignee.IsAdmin() || !assignee.IsActive {
		return apperrors.NewConflict("assignee must be active staff", map[string]any{"staff_id": staffID})
	}
	return nil
}

// Assign hands the conversation to a member of staff.
func (s *ChatService) Assign(ctx context.Context, actor *domain.User, id, staffID string) (*domain.Conversation, error) {
	return s.UpdateConversation(ctx, actor, id, ConversationUpdateInput{AssignedStaffID: &staffID})
}

// SetStatus changes the conversation status.
func (s *ChatService) SetStatus(ctx context.Context, actor *domain.User, id string, status domain.ConversationStatus) (*domain.Conversation, error) {
	return s.UpdateConversation(ctx, actor, id, ConversationUpdateInput{Status: &status})
}

// SetPresence records the user as online or offline in one conversation.
func (s *ChatService) SetPresence(ctx context.Context, user *domain.User, conversationID string, online bool) error {
	at := s.now()
	if err := s.participants.SetPresence(ctx, conversationID, user.ID, online, at); err != nil {
		return apperrors.MapError(err)
	}
	s.publishPresence(ctx, user, online, []string{conversationID})
	return nil
}

// SetOnlineEverywhere marks the user online in all active conversations
// they take part in and returns those conversation ids.
func (s *ChatService) SetOnlineEverywhere(ctx context.Context, user *domain.User) ([]string, error) {
	return s.setPresenceEverywhere(ctx, user, true)
}

// SetOfflineEverywhere is the disconnect counterpart of SetOnlineEverywhere.
func (s *ChatService) SetOfflineEverywhere(ctx context.Context, user *domain.User) ([]string, error) {
	return s.setPresenceEverywhere(ctx, user, false)
}

func (s *ChatService) setPresenceEverywhere(ctx context.Context, user *domain.User, online bool) ([]string, error) {
	ids, err := s.participants.SetPresenceForUser(ctx, user.ID, online, s.now())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(ids) > 0 {
		s.publishPresence(ctx, user, online, ids)
	}
	return ids, nil
}

func (s *ChatService) publishPresence(ctx context.Context, user *domain.User, online bool, conversationIDs []string) {
	key := user.ID
	if len(conversationIDs) == 1 {
		key = conversationIDs[0]
	}
	s.publishEvent(ctx, events.Event{
		Type:  events.EventPresenceChanged,
		Key:   key,
		Actor: actorOf(user),
		Payload: events.PresenceChangedPayload{
			UserID:          user.ID,
			UserName:        user.DisplayName(),
			IsStaff:         user.IsAdmin(),
			IsOnline:        online,
			LastSeenAt:      s.now(),
			ConversationIDs: conversationIDs,
		},
	})
}

// OnlineUsers lists every user currently online in some conversation.
func (s *ChatService) OnlineUsers(ctx context.Context) ([]domain.Participant, error) {
	users, err := s.participants.ListOnlineUsers(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// OnlineParticipants lists who is online in one conversation.
func (s *ChatService) OnlineParticipants(ctx context.Context, conversationID string) ([]domain.Participant, error) {
	participants, err := s.participants.ListOnline(ctx, conversationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return participants, nil
}

// InboxStats aggregates the admin inbox counters.
func (s *ChatService) InboxStats(ctx context.Context) (domain.InboxStats, error) {
	stats, err := s.conversations.Stats(ctx)
	if err != nil {
		return domain.InboxStats{}, apperrors.MapError(err)
	}
	return stats, nil
}

// ListConversations returns the most recently active conversations.
func (s *ChatService) ListConversations(ctx context.Context, limit int) ([]domain.Conversation, error) {
	convs, err := s.conversations.ListRecent(ctx, clampLimit(limit))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return convs, nil
}

// Messages returns the latest messages of a conversation, oldest first.
func (s *ChatService) Messages(ctx context.Context, user *domain.User, conversationID string, limit int) ([]domain.Message, error) {
	conv, err := s.Conversation(ctx, user, conversationID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	messages, err := s.messages.ListByConversation(ctx, conv.ID, clampLimit(limit))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return messages, nil
}

func unreadFor(conv *domain.Conversation, side domain.UnreadSide) int {
	if side == domain.UnreadSideStaff {
		return conv.UnreadStaffCount
	}
	return conv.UnreadUserCount
}
