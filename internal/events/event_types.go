package events

import (
	"time"

	"github.com/spec-kit/storefront-realtime/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventOrderCreated        EventType = "order_created"
	EventOrderUpdated        EventType = "order_updated"
	EventMessageCreated      EventType = "message_created"
	EventMessagesRead        EventType = "messages_read"
	EventConversationCreated EventType = "conversation_created"
	EventConversationUpdated EventType = "conversation_updated"
	EventContactCreated      EventType = "contact_created"
	EventContactUpdated      EventType = "contact_updated"
	EventContactDeleted      EventType = "contact_deleted"
	EventPresenceChanged     EventType = "presence_changed"
)

// Actor identifies who caused an event.
type Actor struct {
	UserID  string `json:"user_id,omitempty"`
	IsStaff bool   `json:"is_staff"`
}

// Event represents a domain event emitted after a successful write.
// Events sharing a Key are handled in publish order.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Key       string      `json:"key"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OrderCreatedPayload payload.
type OrderCreatedPayload struct {
	Order domain.Order `json:"order"`
}

// OrderUpdatedPayload carries the status captured before the write.
type OrderUpdatedPayload struct {
	Order          domain.Order       `json:"order"`
	PreviousStatus domain.OrderStatus `json:"previous_status"`
}

// StatusChanged reports whether the save moved the order to a new status.
func (p OrderUpdatedPayload) StatusChanged() bool {
	return p.PreviousStatus != "" && p.PreviousStatus != p.Order.Status
}

// MessageCreatedPayload carries the saved message and the conversation
// as it looked after its counters were bumped.
type MessageCreatedPayload struct {
	Message      domain.Message      `json:"message"`
	Conversation domain.Conversation `json:"conversation"`
}

// MessagesReadPayload payload.
type MessagesReadPayload struct {
	Conversation  domain.Conversation `json:"conversation"`
	ReaderID      string              `json:"reader_id"`
	ReaderIsStaff bool                `json:"reader_is_staff"`
	MessageIDs    []string            `json:"message_ids"`
}

// ConversationPayload is used for create and update events.
type ConversationPayload struct {
	Conversation domain.Conversation `json:"conversation"`
	Changes      []string            `json:"changes,omitempty"`
}

// ContactPayload payload.
type ContactPayload struct {
	Contact domain.Contact `json:"contact"`
}

// ContactDeletedPayload payload.
type ContactDeletedPayload struct {
	ContactID string `json:"contact_id"`
}

// PresenceChangedPayload payload.
type PresenceChangedPayload struct {
	UserID          string    `json:"user_id"`
	UserName        string    `json:"user_name"`
	IsStaff         bool      `json:"is_staff"`
	IsOnline        bool      `json:"is_online"`
	LastSeenAt      time.Time `json:"last_seen_at"`
	ConversationIDs []string  `json:"conversation_ids"`
}
