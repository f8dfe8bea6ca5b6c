package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/broadcast"
	"github.com/spec-kit/storefront-realtime/internal/channels"
	"github.com/spec-kit/storefront-realtime/internal/domain"
	"github.com/spec-kit/storefront-realtime/internal/events"
)

// OrderStatsSource recomputes the order counters.
type OrderStatsSource interface {
	Stats(ctx context.Context) (domain.OrderStats, error)
}

// ContactStatsSource recomputes the contact counters.
type ContactStatsSource interface {
	Stats(ctx context.Context) (domain.ContactStats, error)
}

// NotificationService drains domain events from the bus and fans them out
// to socket groups. Group sends are fire-and-forget; only a failed stats
// query is reported back to the bus, after the primary event went out.
type NotificationService struct {
	dispatcher  events.Dispatcher
	broadcaster *broadcast.Broadcaster
	orders      OrderStatsSource
	contacts    ContactStatsSource
	logger      *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, broadcaster *broadcast.Broadcaster, orders OrderStatsSource, contacts ContactStatsSource, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		orders:      orders,
		contacts:    contacts,
		logger:      logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for eventType, handler := range n.handlers() {
		n.dispatcher.Subscribe(eventType, handler)
	}
}

func (n *NotificationService) handlers() map[events.EventType]events.EventHandler {
	return map[events.EventType]events.EventHandler{
		events.EventOrderCreated:        n.handleOrderCreated,
		events.EventOrderUpdated:        n.handleOrderUpdated,
		events.EventContactCreated:      n.handleContactCreated,
		events.EventContactUpdated:      n.handleContactUpdated,
		events.EventContactDeleted:      n.handleContactDeleted,
		events.EventMessageCreated:      n.handleMessageCreated,
		events.EventMessagesRead:        n.handleMessagesRead,
		events.EventConversationCreated: n.handleConversationCreated,
		events.EventConversationUpdated: n.handleConversationUpdated,
		events.EventPresenceChanged:     n.handlePresenceChanged,
	}
}

func (n *NotificationService) handleOrderCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OrderCreatedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	n.send(ctx, channels.GroupAdminOrders, channels.EventNewOrder, event, OrderPayload(payload.Order))
	return n.sendOrderStats(ctx, event)
}

func (n *NotificationService) handleOrderUpdated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OrderUpdatedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	body := OrderPayload(payload.Order)
	body["previous_status"] = string(payload.PreviousStatus)
	n.send(ctx, channels.GroupAdminOrders, channels.EventOrderUpdated, event, body)

	if payload.StatusChanged() {
		changed := OrderPayload(payload.Order)
		changed["previous_status"] = string(payload.PreviousStatus)
		changed["new_status"] = string(payload.Order.Status)
		n.send(ctx, channels.GroupAdminOrders, channels.EventOrderStatusChanged, event, changed)
	}
	return n.sendOrderStats(ctx, event)
}

func (n *NotificationService) sendOrderStats(ctx context.Context, event events.Event) error {
	if n.orders == nil {
		return nil
	}
	stats, err := n.orders.Stats(ctx)
	if err != nil {
		return fmt.Errorf("order stats: %w", err)
	}
	n.send(ctx, channels.GroupAdminOrders, channels.EventOrderStats, event, OrderStatsPayload(stats))
	return nil
}

func (n *NotificationService) handleContactCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ContactPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	n.send(ctx, channels.GroupAdminContacts, channels.EventNewContact, event, ContactPayload(payload.Contact))
	return n.sendContactCount(ctx, event)
}

func (n *NotificationService) handleContactUpdated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ContactPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	n.send(ctx, channels.GroupAdminContacts, channels.EventContactUpdated, event, ContactPayload(payload.Contact))
	return n.sendContactCount(ctx, event)
}

func (n *NotificationService) handleContactDeleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ContactDeletedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	n.send(ctx, channels.GroupAdminContacts, channels.EventContactDeleted, event, map[string]any{"id": payload.ContactID})
	return n.sendContactCount(ctx, event)
}

func (n *NotificationService) sendContactCount(ctx context.Context, event events.Event) error {
	if n.contacts == nil {
		return nil
	}
	stats, err := n.contacts.Stats(ctx)
	if err != nil {
		return fmt.Errorf("contact stats: %w", err)
	}
	n.send(ctx, channels.GroupAdminContacts, channels.EventContactCountUpdated, event, ContactStatsPayload(stats))
	return nil
}

func (n *NotificationService) handleMessageCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MessageCreatedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	body := ChatMessagePayload(payload.Message)
	body["unread_user_count"] = payload.Conversation.UnreadUserCount
	body["unread_staff_count"] = payload.Conversation.UnreadStaffCount
	n.sendMany(ctx, []string{channels.ChatGroup(payload.Conversation.ID), channels.GroupAdminInbox}, channels.EventChatMessage, event, body)
	return nil
}

func (n *NotificationService) handleMessagesRead(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MessagesReadPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	ids := payload.MessageIDs
	if ids == nil {
		ids = []string{}
	}
	n.send(ctx, channels.ChatGroup(payload.Conversation.ID), channels.EventMessagesRead, event, map[string]any{
		"conversation_id": payload.Conversation.ID,
		"reader_id":       payload.ReaderID,
		"reader_is_staff": payload.ReaderIsStaff,
		"message_ids":     ids,
	})
	n.send(ctx, channels.GroupAdminInbox, channels.EventConversationUpdated, event, ConversationPayload(payload.Conversation))
	return nil
}

func (n *NotificationService) handleConversationCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ConversationPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	n.send(ctx, channels.GroupAdminInbox, channels.EventNewConversation, event, ConversationPayload(payload.Conversation))
	return nil
}

func (n *NotificationService) handleConversationUpdated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ConversationPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	body := ConversationPayload(payload.Conversation)
	if len(payload.Changes) > 0 {
		body["changes"] = payload.Changes
	}
	n.sendMany(ctx, []string{channels.ChatGroup(payload.Conversation.ID), channels.GroupAdminInbox}, channels.EventConversationUpdated, event, body)
	return nil
}

func (n *NotificationService) handlePresenceChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PresenceChangedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	groups := make([]string, 0, len(payload.ConversationIDs)+1)
	for _, id := range payload.ConversationIDs {
		groups = append(groups, channels.ChatGroup(id))
	}
	groups = append(groups, channels.GroupAdminInbox)
	n.sendMany(ctx, groups, channels.EventUserOnlineStatus, event, map[string]any{
		"user_id":          payload.UserID,
		"user_name":        payload.UserName,
		"is_staff":         payload.IsStaff,
		"is_online":        payload.IsOnline,
		"last_seen_at":     formatTime(payload.LastSeenAt),
		"conversation_ids": payload.ConversationIDs,
	})
	return nil
}

func (n *NotificationService) send(ctx context.Context, group string, name channels.EventName, event events.Event, payload map[string]any) {
	n.broadcaster.Send(ctx, group, channels.Message{Type: name, Origin: event.Actor.UserID, Payload: payload})
}

func (n *NotificationService) sendMany(ctx context.Context, groups []string, name channels.EventName, event events.Event, payload map[string]any) {
	n.broadcaster.SendMany(ctx, groups, channels.Message{Type: name, Origin: event.Actor.UserID, Payload: payload})
}

func unexpectedPayload(event events.Event) error {
	return fmt.Errorf("event %s: unexpected payload %T", event.Type, event.Payload)
}
