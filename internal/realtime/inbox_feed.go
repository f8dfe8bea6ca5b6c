package realtime

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/channels"
	"github.com/spec-kit/storefront-realtime/internal/service"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

type inboxFeed struct {
	backend ChatBackend
	limit   int
}

func (f *inboxFeed) name() string { return "inbox" }

func (f *inboxFeed) authorize(_ context.Context, s *Session) ([]string, error) {
	if !s.User().IsAdmin() {
		return nil, apperrors.ErrAccessDenied
	}
	return []string{channels.GroupAdminInbox}, nil
}

func (f *inboxFeed) open(ctx context.Context, s *Session) error {
	if _, err := f.backend.SetOnlineEverywhere(ctx, s.User()); err != nil {
		s.logger.Warn("presence update failed", zap.Error(err))
	}
	if err := s.Send(Frame{
		"type":    FrameConnectionEstablished,
		"message": "connected to admin inbox",
		"user_id": s.User().ID,
	}); err != nil {
		return err
	}
	return f.sendStats(ctx, s, Command{})
}

func (f *inboxFeed) commands() commandTable {
	return commandTable{
		CommandPing:             handlePing,
		CommandGetStats:         f.sendStats,
		CommandGetInboxStats:    f.sendStats,
		CommandGetConversations: f.sendConversations,
		CommandGetOnlineUsers:   f.sendOnlineUsers,
		CommandSetStatus:        f.setStatus,
	}
}

func (f *inboxFeed) events() eventTable {
	return eventTable{
		channels.EventChatMessage:         asNewMessage,
		channels.EventNewMessage:          forward,
		channels.EventNewConversation:     forward,
		channels.EventConversationUpdated: forward,
		channels.EventUserOnlineStatus:    forward,
	}
}

// asNewMessage renders a conversation message for the inbox list, which
// knows it as new_message.
func asNewMessage(_ *Session, msg channels.Message) (Frame, bool) {
	return NewFrame(string(channels.EventNewMessage), msg.Payload), true
}

func (f *inboxFeed) close(ctx context.Context, s *Session) {
	if _, err := f.backend.SetOfflineEverywhere(ctx, s.User()); err != nil {
		s.logger.Warn("presence update failed", zap.Error(err))
	}
}

func (f *inboxFeed) sendStats(ctx context.Context, s *Session, _ Command) error {
	stats, err := f.backend.InboxStats(ctx)
	if err != nil {
		return err
	}
	return s.Send(NewFrame(FrameInboxStats, service.InboxStatsPayload(stats)))
}

func (f *inboxFeed) sendConversations(ctx context.Context, s *Session, cmd Command) error {
	convs, err := f.backend.ListConversations(ctx, limitOr(cmd.Limit, f.limit))
	if err != nil {
		return err
	}
	return s.Send(Frame{"type": FrameConversations, "conversations": service.ConversationListPayload(convs)})
}

func (f *inboxFeed) sendOnlineUsers(ctx context.Context, s *Session, _ Command) error {
	users, err := f.backend.OnlineUsers(ctx)
	if err != nil {
		return err
	}
	return s.Send(Frame{"type": FrameOnlineUsers, "users": service.ParticipantListPayload(users)})
}

func (f *inboxFeed) setStatus(ctx context.Context, s *Session, cmd Command) error {
	var (
		ids []string
		err error
	)
	switch strings.ToLower(cmd.Status) {
	case "online":
		ids, err = f.backend.SetOnlineEverywhere(ctx, s.User())
	case "offline", "away":
		ids, err = f.backend.SetOfflineEverywhere(ctx, s.User())
	default:
		return protocolError("status must be online or offline")
	}
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	return s.Send(Frame{
		"type":             FrameStatusUpdated,
		"is_online":        strings.EqualFold(cmd.Status, "online"),
		"conversation_ids": ids,
	})
}
