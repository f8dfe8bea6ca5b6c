// Package channels is the group pub/sub primitive sockets subscribe to.
//
// A Layer only knows group names and channel members; it never persists
// membership. Delivery is best-effort: a member that cannot keep up loses
// the message instead of slowing down the sender.
package channels

import (
	"context"
	"errors"
)

// Group names shared by every producer and consumer.
const (
	GroupAdminOrders   = "admin_orders"
	GroupAdminContacts = "admin_contacts"
	GroupAdminInbox    = "admin_inbox"
	chatGroupPrefix    = "chat_"
)

// ErrInvalidGroup is returned for empty group names.
var ErrInvalidGroup = errors.New("channels: group name required")

// ChatGroup returns the group of a single conversation.
func ChatGroup(conversationID string) string {
	return chatGroupPrefix + conversationID
}

// EventName is the closed set of group message types.
type EventName string

const (
	EventNewOrder            EventName = "new_order"
	EventOrderUpdated        EventName = "order_updated"
	EventOrderStatusChanged  EventName = "order_status_changed"
	EventOrderStats          EventName = "order_stats"
	EventNewContact          EventName = "new_contact"
	EventContactUpdated      EventName = "contact_updated"
	EventContactDeleted      EventName = "contact_deleted"
	EventContactCountUpdated EventName = "contact_count_updated"
	EventChatMessage         EventName = "chat_message"
	EventTypingStart         EventName = "typing_start"
	EventTypingStop          EventName = "typing_stop"
	EventMessagesRead        EventName = "messages_read"
	EventNewMessage          EventName = "new_message"
	EventNewConversation     EventName = "new_conversation"
	EventConversationUpdated EventName = "conversation_updated"
	EventUserOnlineStatus    EventName = "user_online_status"
)

// Message is one group broadcast. Origin is the user id that caused it,
// used by consumers to avoid echoing typing and read receipts.
type Message struct {
	Type    EventName      `json:"type"`
	Origin  string         `json:"origin,omitempty"`
	Payload map[string]any `json:"payload"`
}

// Member receives group messages. Deliver must not block; it reports
// whether the message was accepted.
type Member interface {
	ChannelName() string
	Deliver(msg Message) bool
}

// Layer is the three-operation group pub/sub contract.
type Layer interface {
	GroupAdd(ctx context.Context, group string, member Member) error
	GroupDiscard(ctx context.Context, group string, channelName string) error
	GroupSend(ctx context.Context, group string, msg Message) error
}
