package service

import (
	"time"

	"github.com/spec-kit/storefront-realtime/internal/domain"
)

// The builders below produce the JSON bodies of socket frames. Group
// messages and on-demand snapshots share them so both look the same.

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// OrderPayload renders an order.
func OrderPayload(order domain.Order) map[string]any {
	return map[string]any{
		"id":             order.ID,
		"order_number":   order.OrderNumber,
		"customer_id":    order.CustomerID,
		"customer_name":  order.CustomerName,
		"customer_email": order.CustomerEmail,
		"status":         string(order.Status),
		"total_amount":   order.TotalAmount,
		"created_at":     formatTime(order.CreatedAt),
		"updated_at":     formatTime(order.UpdatedAt),
	}
}

// OrderListPayload renders a list of orders.
func OrderListPayload(orders []domain.Order) []map[string]any {
	out := make([]map[string]any, 0, len(orders))
	for _, order := range orders {
		out = append(out, OrderPayload(order))
	}
	return out
}

// OrderStatsPayload renders the admin order counters.
func OrderStatsPayload(stats domain.OrderStats) map[string]any {
	return map[string]any{
		"total_orders":      stats.TotalOrders,
		"pending_orders":    stats.PendingOrders,
		"confirmed_orders":  stats.ConfirmedOrders,
		"processing_orders": stats.ProcessingOrders,
		"shipped_orders":    stats.ShippedOrders,
		"delivered_orders":  stats.DeliveredOrders,
		"cancelled_orders":  stats.CancelledOrders,
		"refunded_orders":   stats.RefundedOrders,
		"today_orders":      stats.TodayOrders,
		"today_revenue":     stats.TodayRevenue,
	}
}

// ContactPayload renders a contact submission.
func ContactPayload(contact domain.Contact) map[string]any {
	return map[string]any{
		"id":         contact.ID,
		"name":       contact.Name,
		"email":      contact.Email,
		"phone":      contact.Phone,
		"subject":    contact.Subject,
		"message":    contact.Message,
		"is_read":    contact.IsRead,
		"is_replied": contact.IsReplied,
		"created_at": formatTime(contact.CreatedAt),
		"updated_at": formatTime(contact.UpdatedAt),
	}
}

// ContactListPayload renders a list of contacts.
func ContactListPayload(contacts []domain.Contact) []map[string]any {
	out := make([]map[string]any, 0, len(contacts))
	for _, contact := range contacts {
		out = append(out, ContactPayload(contact))
	}
	return out
}

// ContactStatsPayload renders the contact counters.
func ContactStatsPayload(stats domain.ContactStats) map[string]any {
	return map[string]any{
		"unread_count":    stats.UnreadCount,
		"total_count":     stats.TotalCount,
		"unreplied_count": stats.UnrepliedCount,
	}
}

// ChatMessagePayload renders a chat message.
func ChatMessagePayload(msg domain.Message) map[string]any {
	return map[string]any{
		"id":              msg.ID,
		"conversation_id": msg.ConversationID,
		"content":         msg.Content,
		"sender":          msg.SenderID,
		"sender_name":     msg.SenderName,
		"is_sender_staff": msg.SenderIsStaff,
		"message_type":    string(msg.MessageType),
		"delivery_status": string(msg.DeliveryStatus),
		"is_read":         msg.IsRead,
		"created_at":      formatTime(msg.CreatedAt),
	}
}

// ChatMessageListPayload renders a message history.
func ChatMessageListPayload(messages []domain.Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		out = append(out, ChatMessagePayload(msg))
	}
	return out
}

// ConversationPayload renders a conversation with its counters.
func ConversationPayload(conv domain.Conversation) map[string]any {
	var assigned any
	if conv.AssignedStaffID != nil {
		assigned = *conv.AssignedStaffID
	}
	return map[string]any{
		"id":                 conv.ID,
		"customer_id":        conv.CustomerID,
		"assigned_staff_id":  assigned,
		"subject":            conv.Subject,
		"status":             string(conv.Status),
		"last_message_at":    timeValue(conv.LastMessageAt),
		"unread_user_count":  conv.UnreadUserCount,
		"unread_staff_count": conv.UnreadStaffCount,
		"created_at":         formatTime(conv.CreatedAt),
		"updated_at":         formatTime(conv.UpdatedAt),
	}
}

// ConversationListPayload renders a conversation list.
func ConversationListPayload(convs []domain.Conversation) []map[string]any {
	out := make([]map[string]any, 0, len(convs))
	for _, conv := range convs {
		out = append(out, ConversationPayload(conv))
	}
	return out
}

// InboxStatsPayload renders the admin inbox counters.
func InboxStatsPayload(stats domain.InboxStats) map[string]any {
	return map[string]any{
		"total_conversations":   stats.TotalConversations,
		"open_conversations":    stats.OpenConversations,
		"pending_conversations": stats.PendingConversations,
		"unread_conversations":  stats.UnreadConversations,
		"total_unread":          stats.TotalUnread,
	}
}

// ParticipantPayload renders one presence row.
func ParticipantPayload(p domain.Participant) map[string]any {
	return map[string]any{
		"user_id":      p.UserID,
		"user_name":    p.UserName,
		"is_staff":     p.IsStaff,
		"is_online":    p.IsOnline,
		"last_seen_at": timeValue(p.LastSeenAt),
	}
}

// ParticipantListPayload renders presence rows.
func ParticipantListPayload(participants []domain.Participant) []map[string]any {
	out := make([]map[string]any, 0, len(participants))
	for _, p := range participants {
		out = append(out, ParticipantPayload(p))
	}
	return out
}
