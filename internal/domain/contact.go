package domain

import "time"

// Contact is a support inbox submission.
type Contact struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Subject   string
	Message   string
	IsRead    bool
	IsReplied bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContactStats holds the aggregate counts shown on the admin contacts feed.
type ContactStats struct {
	UnreadCount    int64
	TotalCount     int64
	UnrepliedCount int64
}
