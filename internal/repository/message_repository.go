package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront-realtime/internal/domain"
)

// MessageRepository manages chat messages.
type MessageRepository interface {
	// Create stores msg and bumps the recipient side's unread counter and
	// last_message_at in one transaction, returning the updated conversation.
	Create(ctx context.Context, msg *domain.Message, recipient domain.UnreadSide) (*domain.Conversation, error)
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	// MarkReadFromSide marks every unread message of the conversation sent
	// by the given side as read and returns the ids it changed.
	MarkReadFromSide(ctx context.Context, conversationID string, senderIsStaff bool, at time.Time) ([]string, error)
	// MarkRead marks a single message read; it reports false when the
	// message was already read.
	MarkRead(ctx context.Context, id string, at time.Time) (bool, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

const messageSelect = `
        SELECT m.id, m.conversation_id, m.sender_id, COALESCE(u.name, ''), m.sender_is_staff, m.message_type,
               m.content, m.delivery_status, m.is_read, m.read_at, m.created_at
        FROM messages m LEFT JOIN users u ON u.id = m.sender_id`

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message, recipient domain.UnreadSide) (*domain.Conversation, error) {
	column, err := unreadColumn(recipient)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin message tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insert = `
        INSERT INTO messages (conversation_id, sender_id, sender_is_staff, message_type, content, delivery_status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, is_read, created_at`
	err = tx.QueryRow(ctx, insert,
		msg.ConversationID,
		msg.SenderID,
		msg.SenderIsStaff,
		msg.MessageType,
		msg.Content,
		msg.DeliveryStatus,
	).Scan(&msg.ID, &msg.IsRead, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	bump := `UPDATE conversations SET ` + column + `=` + column + `+1, last_message_at=$2, updated_at=NOW()
        WHERE id=$1 RETURNING ` + conversationColumns
	conv, err := scanConversation(tx.QueryRow(ctx, bump, msg.ConversationID, msg.CreatedAt))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit message tx: %w", err)
	}
	return &conv, nil
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, messageSelect+` WHERE m.id=$1`, id))
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	query := `SELECT * FROM (` + messageSelect + ` WHERE m.conversation_id=$1 ORDER BY m.created_at DESC LIMIT $2) recent
        ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *messageRepository) MarkReadFromSide(ctx context.Context, conversationID string, senderIsStaff bool, at time.Time) ([]string, error) {
	const query = `
        UPDATE messages SET is_read=TRUE, read_at=$3, delivery_status='read'
        WHERE conversation_id=$1 AND sender_is_staff=$2 AND NOT is_read
        RETURNING id`
	rows, err := r.pool.Query(ctx, query, conversationID, senderIsStaff, at)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *messageRepository) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE messages SET is_read=TRUE, read_at=$2, delivery_status='read'
        WHERE id=$1 AND NOT is_read`
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func scanMessage(row pgx.Row) (domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.SenderName,
		&m.SenderIsStaff,
		&m.MessageType,
		&m.Content,
		&m.DeliveryStatus,
		&m.IsRead,
		&m.ReadAt,
		&m.CreatedAt,
	)
	return m, err
}
