package realtime

import (
	"context"

	"github.com/spec-kit/storefront-realtime/internal/channels"
	"github.com/spec-kit/storefront-realtime/internal/service"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

type contactFeed struct {
	backend ContactBackend
	limit   int
}

func (f *contactFeed) name() string { return "contacts" }

func (f *contactFeed) authorize(_ context.Context, s *Session) ([]string, error) {
	if !s.User().IsAdmin() {
		return nil, apperrors.ErrAccessDenied
	}
	return []string{channels.GroupAdminContacts}, nil
}

func (f *contactFeed) open(ctx context.Context, s *Session) error {
	if err := s.Send(Frame{
		"type":    FrameConnectionEstablished,
		"message": "connected to contact notifications",
		"user_id": s.User().ID,
	}); err != nil {
		return err
	}
	return f.sendCount(ctx, s, Command{})
}

func (f *contactFeed) commands() commandTable {
	return commandTable{
		CommandPing:              handlePing,
		CommandGetContactCount:   f.sendCount,
		CommandGetContactStats:   f.sendStats,
		CommandGetRecentContacts: f.sendRecent,
	}
}

func (f *contactFeed) events() eventTable {
	return eventTable{
		channels.EventNewContact:          forward,
		channels.EventContactUpdated:      forward,
		channels.EventContactDeleted:      forward,
		channels.EventContactCountUpdated: forward,
	}
}

func (f *contactFeed) close(context.Context, *Session) {}

func (f *contactFeed) sendCount(ctx context.Context, s *Session, _ Command) error {
	stats, err := f.backend.Stats(ctx)
	if err != nil {
		return err
	}
	return s.Send(NewFrame(string(channels.EventContactCountUpdated), service.ContactStatsPayload(stats)))
}

func (f *contactFeed) sendStats(ctx context.Context, s *Session, _ Command) error {
	stats, err := f.backend.Stats(ctx)
	if err != nil {
		return err
	}
	return s.Send(NewFrame(FrameContactStats, service.ContactStatsPayload(stats)))
}

func (f *contactFeed) sendRecent(ctx context.Context, s *Session, cmd Command) error {
	contacts, err := f.backend.ListRecent(ctx, limitOr(cmd.Limit, f.limit))
	if err != nil {
		return err
	}
	return s.Send(Frame{"type": FrameRecentContacts, "contacts": service.ContactListPayload(contacts)})
}
