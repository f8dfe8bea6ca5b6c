package realtime

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/broadcast"
	"github.com/spec-kit/storefront-realtime/internal/channels"
	"github.com/spec-kit/storefront-realtime/internal/domain"
	"github.com/spec-kit/storefront-realtime/internal/service"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

type chatFeed struct {
	backend        ChatBackend
	broadcaster    *broadcast.Broadcaster
	conversationID string
	conversation   *domain.Conversation
}

func (f *chatFeed) name() string { return "chat" }

// authorize admits the conversation's customer, its assigned staff and
// any staff or superuser.
func (f *chatFeed) authorize(ctx context.Context, s *Session) ([]string, error) {
	if f.conversationID == "" {
		return nil, apperrors.NewValidationError("conversation id required", nil)
	}
	conv, err := f.backend.Conversation(ctx, s.User(), f.conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.CanAccess(s.User()) {
		return nil, apperrors.ErrAccessDenied
	}
	f.conversation = conv
	return []string{channels.ChatGroup(conv.ID)}, nil
}

func (f *chatFeed) open(ctx context.Context, s *Session) error {
	if err := f.backend.SetPresence(ctx, s.User(), f.conversation.ID, true); err != nil {
		s.logger.Warn("presence update failed", zap.Error(err))
	}
	online, err := f.backend.OnlineParticipants(ctx, f.conversation.ID)
	if err != nil {
		s.logger.Warn("online participants unavailable", zap.Error(err))
	}
	return s.Send(Frame{
		"type":            FrameConnectionEstablished,
		"message":         "connected to conversation",
		"user_id":         s.User().ID,
		"conversation_id": f.conversation.ID,
		"conversation":    service.ConversationPayload(*f.conversation),
		"online_users":    service.ParticipantListPayload(online),
	})
}

func (f *chatFeed) commands() commandTable {
	return commandTable{
		CommandPing:        handlePing,
		CommandChatMessage: f.sendMessage,
		CommandTypingStart: f.typing(channels.EventTypingStart),
		CommandTypingStop:  f.typing(channels.EventTypingStop),
		CommandMarkRead:    f.markRead,
		CommandMarkViewed:  f.markViewed,
	}
}

func (f *chatFeed) events() eventTable {
	return eventTable{
		channels.EventChatMessage:         forward,
		channels.EventTypingStart:         skipOwn,
		channels.EventTypingStop:          skipOwn,
		channels.EventMessagesRead:        skipOwn,
		channels.EventConversationUpdated: forward,
		channels.EventUserOnlineStatus:    forward,
	}
}

// skipOwn forwards typing and read receipts to everyone but their author.
func skipOwn(s *Session, msg channels.Message) (Frame, bool) {
	if s.isOwnEvent(msg) {
		return nil, false
	}
	return EventFrame(msg), true
}

func (f *chatFeed) close(ctx context.Context, s *Session) {
	if err := f.backend.SetPresence(ctx, s.User(), f.conversation.ID, false); err != nil {
		s.logger.Warn("presence update failed", zap.Error(err))
	}
}

// sendMessage persists the message; the broadcast to the conversation and
// the inbox follows from the message_created event.
func (f *chatFeed) sendMessage(ctx context.Context, s *Session, cmd Command) error {
	_, err := f.backend.SendMessage(ctx, s.User(), f.conversation.ID, cmd.Message, cmd.MessageType)
	return err
}

func (f *chatFeed) typing(name channels.EventName) CommandHandler {
	return func(ctx context.Context, s *Session, _ Command) error {
		user := s.User()
		f.broadcaster.Send(ctx, channels.ChatGroup(f.conversation.ID), channels.Message{
			Type:   name,
			Origin: user.ID,
			Payload: map[string]any{
				"conversation_id": f.conversation.ID,
				"user_id":         user.ID,
				"user_name":       user.DisplayName(),
				"is_staff":        user.IsAdmin(),
			},
		})
		return nil
	}
}

func (f *chatFeed) markRead(ctx context.Context, s *Session, _ Command) error {
	conv, err := f.backend.MarkRead(ctx, s.User(), f.conversation.ID)
	if err != nil {
		return err
	}
	return s.Send(Frame{
		"type":            FrameMarkedRead,
		"conversation_id": conv.ID,
		"conversation":    service.ConversationPayload(*conv),
	})
}

func (f *chatFeed) markViewed(ctx context.Context, s *Session, cmd Command) error {
	if cmd.MessageID == "" {
		return protocolError("message_id required")
	}
	id, err := uuid.Parse(cmd.MessageID)
	if err != nil {
		return protocolError("invalid message_id")
	}
	changed, err := f.backend.MarkViewed(ctx, s.User(), id.String())
	if err != nil {
		return err
	}
	return s.Send(Frame{
		"type":       FrameMarkedRead,
		"message_id": id.String(),
		"changed":    changed,
	})
}
