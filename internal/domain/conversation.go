package domain

import "time"

// ConversationStatus enumerates chat thread states.
type ConversationStatus string

const (
	ConversationStatusOpen    ConversationStatus = "open"
	ConversationStatusClosed  ConversationStatus = "closed"
	ConversationStatusPending ConversationStatus = "pending"
)

// Valid reports whether s is a known status.
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationStatusOpen, ConversationStatusClosed, ConversationStatusPending:
		return true
	}
	return false
}

// UnreadSide selects one of the two per-conversation unread counters.
type UnreadSide string

const (
	// UnreadSideUser counts messages the customer has not read yet.
	UnreadSideUser UnreadSide = "user"
	// UnreadSideStaff counts messages staff have not read yet.
	UnreadSideStaff UnreadSide = "staff"
)

// RecipientSide returns the counter a message from sender increments.
func RecipientSide(sender *User) UnreadSide {
	if sender.IsAdmin() {
		return UnreadSideUser
	}
	return UnreadSideStaff
}

// ReaderSide returns the counter reset when reader marks a conversation read.
func ReaderSide(reader *User) UnreadSide {
	if reader.IsAdmin() {
		return UnreadSideStaff
	}
	return UnreadSideUser
}

// Conversation is a customer to staff chat thread.
type Conversation struct {
	ID               string
	CustomerID       string
	AssignedStaffID  *string
	Subject          string
	Status           ConversationStatus
	LastMessageAt    *time.Time
	UnreadUserCount  int
	UnreadStaffCount int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CanAccess reports whether user may join the conversation.
func (c *Conversation) CanAccess(user *User) bool {
	if c == nil || user == nil {
		return false
	}
	if user.IsAdmin() || c.CustomerID == user.ID {
		return true
	}
	return c.AssignedStaffID != nil && *c.AssignedStaffID == user.ID
}

// MessageType enumerates chat message kinds.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// DeliveryStatus tracks message delivery.
type DeliveryStatus string

const (
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
)

// Message belongs to exactly one conversation.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	SenderIsStaff  bool
	MessageType    MessageType
	Content        string
	DeliveryStatus DeliveryStatus
	IsRead         bool
	ReadAt         *time.Time
	CreatedAt      time.Time
}

// Participant carries presence for one user in one conversation.
type Participant struct {
	ConversationID string
	UserID         string
	UserName       string
	IsStaff        bool
	IsOnline       bool
	IsActive       bool
	LastSeenAt     *time.Time
	JoinedAt       time.Time
}

// InboxStats is the aggregate pushed on the admin inbox feed.
type InboxStats struct {
	TotalConversations   int64
	OpenConversations    int64
	PendingConversations int64
	UnreadConversations  int64
	TotalUnread          int64
}
