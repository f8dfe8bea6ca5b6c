package dto

import "github.com/spec-kit/storefront-realtime/internal/domain"

// OpenConversationRequest starts or resumes a customer conversation.
type OpenConversationRequest struct {
	Subject string `json:"subject"`
}

// SendMessageRequest posts a chat message over HTTP.
type SendMessageRequest struct {
	Content     string             `json:"content"`
	MessageType domain.MessageType `json:"message_type"`
}

// UpdateConversationRequest is the staff-side conversation edit.
type UpdateConversationRequest struct {
	AssignedStaffID *string                    `json:"assigned_staff_id"`
	Unassign        bool                       `json:"unassign"`
	Status          *domain.ConversationStatus `json:"status"`
	Subject         *string                    `json:"subject"`
}
