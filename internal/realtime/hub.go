// Package realtime implements the websocket consumers behind the admin
// order, contact and inbox feeds and the per-conversation chat.
//
// Each connection runs a Session. The consumer attached to the session
// decides who may connect, which channel groups it joins, how client
// commands are answered and how group messages become frames.
package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/broadcast"
	"github.com/spec-kit/storefront-realtime/internal/channels"
	"github.com/spec-kit/storefront-realtime/internal/config"
	"github.com/spec-kit/storefront-realtime/internal/domain"
)

// Options tunes every session opened by a Hub.
type Options struct {
	SendBuffer   int
	CommandRate  float64
	CommandBurst int
	PingInterval time.Duration
	RecentLimit  int
}

// OptionsFromConfig maps service configuration onto session options.
func OptionsFromConfig(rt config.RealtimeConfig, notify config.NotificationConfig) Options {
	return Options{
		SendBuffer:   rt.SendBuffer,
		CommandRate:  rt.CommandRate,
		CommandBurst: rt.CommandBurst,
		PingInterval: rt.PingInterval,
		RecentLimit:  notify.RecentLimit,
	}
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.CommandRate <= 0 {
		o.CommandRate = 10
	}
	if o.CommandBurst <= 0 {
		o.CommandBurst = 20
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = 10
	}
	return o
}

// OrderBackend serves the admin order feed.
type OrderBackend interface {
	Stats(ctx context.Context) (domain.OrderStats, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Order, error)
}

// ContactBackend serves the admin contact feed.
type ContactBackend interface {
	Stats(ctx context.Context) (domain.ContactStats, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Contact, error)
}

// ChatBackend serves the inbox and chat consumers.
type ChatBackend interface {
	Conversation(ctx context.Context, user *domain.User, id string) (*domain.Conversation, error)
	SendMessage(ctx context.Context, sender *domain.User, conversationID, content string, msgType domain.MessageType) (*domain.Message, error)
	MarkRead(ctx context.Context, reader *domain.User, conversationID string) (*domain.Conversation, error)
	MarkViewed(ctx context.Context, reader *domain.User, messageID string) (bool, error)
	SetPresence(ctx context.Context, user *domain.User, conversationID string, online bool) error
	SetOnlineEverywhere(ctx context.Context, user *domain.User) ([]string, error)
	SetOfflineEverywhere(ctx context.Context, user *domain.User) ([]string, error)
	OnlineUsers(ctx context.Context) ([]domain.Participant, error)
	OnlineParticipants(ctx context.Context, conversationID string) ([]domain.Participant, error)
	InboxStats(ctx context.Context) (domain.InboxStats, error)
	ListConversations(ctx context.Context, limit int) ([]domain.Conversation, error)
}

// Hub holds what every session shares and opens sessions per endpoint.
type Hub struct {
	layer       channels.Layer
	broadcaster *broadcast.Broadcaster
	logger      *zap.Logger
	opts        Options

	orders   OrderBackend
	contacts ContactBackend
	chat     ChatBackend
}

// HubDependencies bundles the collaborators of a Hub.
type HubDependencies struct {
	Layer       channels.Layer
	Broadcaster *broadcast.Broadcaster
	Logger      *zap.Logger
	Orders      OrderBackend
	Contacts    ContactBackend
	Chat        ChatBackend
}

// NewHub builds a hub.
func NewHub(deps HubDependencies, opts Options) *Hub {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		layer:       deps.Layer,
		broadcaster: deps.Broadcaster,
		logger:      logger.Named("realtime"),
		opts:        opts.withDefaults(),
		orders:      deps.Orders,
		contacts:    deps.Contacts,
		chat:        deps.Chat,
	}
}

// ServeOrders runs the admin order feed on conn.
func (h *Hub) ServeOrders(ctx context.Context, conn Conn, user *domain.User) error {
	return h.serve(ctx, conn, user, &orderFeed{backend: h.orders, limit: h.opts.RecentLimit})
}

// ServeContacts runs the admin contact feed on conn.
func (h *Hub) ServeContacts(ctx context.Context, conn Conn, user *domain.User) error {
	return h.serve(ctx, conn, user, &contactFeed{backend: h.contacts, limit: h.opts.RecentLimit})
}

// ServeInbox runs the admin inbox aggregate on conn.
func (h *Hub) ServeInbox(ctx context.Context, conn Conn, user *domain.User) error {
	return h.serve(ctx, conn, user, &inboxFeed{backend: h.chat, limit: h.opts.RecentLimit})
}

// ServeChat runs the chat of one conversation on conn.
func (h *Hub) ServeChat(ctx context.Context, conn Conn, user *domain.User, conversationID string) error {
	return h.serve(ctx, conn, user, &chatFeed{
		backend:        h.chat,
		broadcaster:    h.broadcaster,
		conversationID: conversationID,
	})
}

func (h *Hub) serve(ctx context.Context, conn Conn, user *domain.User, c consumer) error {
	return newSession(conn, user, c, h.layer, h.logger, h.opts).Run(ctx)
}

func pong() Frame {
	return Frame{"type": FramePong, "timestamp": time.Now().UTC().Format(time.RFC3339Nano)}
}

func forward(_ *Session, msg channels.Message) (Frame, bool) {
	return EventFrame(msg), true
}

func handlePing(_ context.Context, s *Session, _ Command) error {
	return s.Send(pong())
}

func limitOr(requested, fallback int) int {
	if requested > 0 {
		return requested
	}
	return fallback
}
