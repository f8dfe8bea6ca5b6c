package realtime

import (
	"context"

	"github.com/spec-kit/storefront-realtime/internal/channels"
	"github.com/spec-kit/storefront-realtime/internal/service"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

type orderFeed struct {
	backend OrderBackend
	limit   int
}

func (f *orderFeed) name() string { return "orders" }

func (f *orderFeed) authorize(_ context.Context, s *Session) ([]string, error) {
	if !s.User().IsAdmin() {
		return nil, apperrors.ErrAccessDenied
	}
	return []string{channels.GroupAdminOrders}, nil
}

func (f *orderFeed) open(ctx context.Context, s *Session) error {
	if err := s.Send(Frame{
		"type":    FrameConnectionEstablished,
		"message": "connected to order notifications",
		"user_id": s.User().ID,
	}); err != nil {
		return err
	}
	return f.sendStats(ctx, s, Command{})
}

func (f *orderFeed) commands() commandTable {
	return commandTable{
		CommandPing:            handlePing,
		CommandGetStats:        f.sendStats,
		CommandGetRecentOrders: f.sendRecent,
	}
}

func (f *orderFeed) events() eventTable {
	return eventTable{
		channels.EventNewOrder:           forward,
		channels.EventOrderUpdated:       forward,
		channels.EventOrderStatusChanged: forward,
		channels.EventOrderStats:         forward,
	}
}

func (f *orderFeed) close(context.Context, *Session) {}

func (f *orderFeed) sendStats(ctx context.Context, s *Session, _ Command) error {
	stats, err := f.backend.Stats(ctx)
	if err != nil {
		return err
	}
	return s.Send(NewFrame(string(channels.EventOrderStats), service.OrderStatsPayload(stats)))
}

func (f *orderFeed) sendRecent(ctx context.Context, s *Session, cmd Command) error {
	orders, err := f.backend.ListRecent(ctx, limitOr(cmd.Limit, f.limit))
	if err != nil {
		return err
	}
	return s.Send(Frame{"type": FrameRecentOrders, "orders": service.OrderListPayload(orders)})
}
