package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront-realtime/internal/domain"
)

// ConversationRepository persists chat threads and their unread counters.
// Counter changes are single UPDATE statements so concurrent senders never
// lose increments. The increment that accompanies a new message lives in
// MessageRepository.Create so both rows commit together.
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	Update(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	FindOpenByCustomer(ctx context.Context, customerID string) (*domain.Conversation, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Conversation, error)
	DecrementUnread(ctx context.Context, id string, side domain.UnreadSide) (*domain.Conversation, error)
	ResetUnread(ctx context.Context, id string, side domain.UnreadSide) (*domain.Conversation, error)
	Stats(ctx context.Context) (domain.InboxStats, error)
}

type conversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository builds repository.
func NewConversationRepository(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepository{pool: pool}
}

const conversationColumns = `id, customer_id, assigned_staff_id, subject, status, last_message_at,
               unread_user_count, unread_staff_count, created_at, updated_at`

func unreadColumn(side domain.UnreadSide) (string, error) {
	switch side {
	case domain.UnreadSideUser:
		return "unread_user_count", nil
	case domain.UnreadSideStaff:
		return "unread_staff_count", nil
	}
	return "", fmt.Errorf("unknown unread side %q", side)
}

func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	const query = `
        INSERT INTO conversations (customer_id, assigned_staff_id, subject, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, unread_user_count, unread_staff_count, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		conv.CustomerID,
		conv.AssignedStaffID,
		conv.Subject,
		conv.Status,
	).Scan(&conv.ID, &conv.UnreadUserCount, &conv.UnreadStaffCount, &conv.CreatedAt, &conv.UpdatedAt)
}

func (r *conversationRepository) Update(ctx context.Context, conv *domain.Conversation) error {
	const query = `
        UPDATE conversations SET assigned_staff_id=$1, subject=$2, status=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, conv.AssignedStaffID, conv.Subject, conv.Status, conv.ID).Scan(&conv.UpdatedAt)
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	return r.fetchSingle(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, id)
}

func (r *conversationRepository) FindOpenByCustomer(ctx context.Context, customerID string) (*domain.Conversation, error) {
	const query = `SELECT ` + conversationColumns + ` FROM conversations
        WHERE customer_id=$1 AND status='open'
        ORDER BY created_at DESC LIMIT 1`
	return r.fetchSingle(ctx, query, customerID)
}

func (r *conversationRepository) ListRecent(ctx context.Context, limit int) ([]domain.Conversation, error) {
	const query = `SELECT ` + conversationColumns + ` FROM conversations
        ORDER BY COALESCE(last_message_at, created_at) DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, conv)
	}
	return result, rows.Err()
}

func (r *conversationRepository) DecrementUnread(ctx context.Context, id string, side domain.UnreadSide) (*domain.Conversation, error) {
	column, err := unreadColumn(side)
	if err != nil {
		return nil, err
	}
	query := `UPDATE conversations SET ` + column + `=GREATEST(` + column + `-1, 0), updated_at=NOW()
        WHERE id=$1 RETURNING ` + conversationColumns
	return r.fetchSingle(ctx, query, id)
}

func (r *conversationRepository) ResetUnread(ctx context.Context, id string, side domain.UnreadSide) (*domain.Conversation, error) {
	column, err := unreadColumn(side)
	if err != nil {
		return nil, err
	}
	query := `UPDATE conversations SET ` + column + `=0, updated_at=NOW()
        WHERE id=$1 RETURNING ` + conversationColumns
	return r.fetchSingle(ctx, query, id)
}

func (r *conversationRepository) Stats(ctx context.Context) (domain.InboxStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='open'),
               COUNT(*) FILTER (WHERE status='pending'),
               COUNT(*) FILTER (WHERE unread_staff_count > 0),
               COALESCE(SUM(unread_staff_count), 0)
        FROM conversations`
	var stats domain.InboxStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.TotalConversations,
		&stats.OpenConversations,
		&stats.PendingConversations,
		&stats.UnreadConversations,
		&stats.TotalUnread,
	)
	return stats, err
}

func (r *conversationRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Conversation, error) {
	conv, err := scanConversation(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func scanConversation(row pgx.Row) (domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(
		&c.ID,
		&c.CustomerID,
		&c.AssignedStaffID,
		&c.Subject,
		&c.Status,
		&c.LastMessageAt,
		&c.UnreadUserCount,
		&c.UnreadStaffCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}
