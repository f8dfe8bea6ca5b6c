package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront-realtime/internal/domain"
)

// ParticipantRepository stores per-conversation presence.
type ParticipantRepository interface {
	// SetPresence upserts the (conversation, user) row.
	SetPresence(ctx context.Context, conversationID, userID string, online bool, at time.Time) error
	// SetPresenceForUser flips every active row of the user and returns the
	// affected conversation ids.
	SetPresenceForUser(ctx context.Context, userID string, online bool, at time.Time) ([]string, error)
	ListOnline(ctx context.Context, conversationID string) ([]domain.Participant, error)
	// ListOnlineUsers returns one row per user that is online anywhere.
	ListOnlineUsers(ctx context.Context) ([]domain.Participant, error)
}

type participantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository builds repository.
func NewParticipantRepository(pool *pgxpool.Pool) ParticipantRepository {
	return &participantRepository{pool: pool}
}

func (r *participantRepository) SetPresence(ctx context.Context, conversationID, userID string, online bool, at time.Time) error {
	const query = `
        INSERT INTO participants (conversation_id, user_id, is_online, last_seen_at, is_active)
        VALUES ($1,$2,$3,$4,TRUE)
        ON CONFLICT (conversation_id, user_id)
        DO UPDATE SET is_online=EXCLUDED.is_online, last_seen_at=EXCLUDED.last_seen_at`
	_, err := r.pool.Exec(ctx, query, conversationID, userID, online, at)
	return err
}

func (r *participantRepository) SetPresenceForUser(ctx context.Context, userID string, online bool, at time.Time) ([]string, error) {
	const query = `
        UPDATE participants p SET is_online=$2, last_seen_at=$3
        FROM conversations c
        WHERE p.conversation_id=c.id AND p.user_id=$1 AND p.is_active AND c.status <> 'closed'
        RETURNING p.conversation_id`
	rows, err := r.pool.Query(ctx, query, userID, online, at)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *participantRepository) ListOnline(ctx context.Context, conversationID string) ([]domain.Participant, error) {
	const query = `
        SELECT p.conversation_id, p.user_id, COALESCE(u.name, ''), COALESCE(u.is_staff OR u.is_superuser, FALSE),
               p.is_online, p.is_active, p.last_seen_at, p.joined_at
        FROM participants p LEFT JOIN users u ON u.id = p.user_id
        WHERE p.conversation_id=$1 AND p.is_online
        ORDER BY p.joined_at`
	return r.list(ctx, query, conversationID)
}

func (r *participantRepository) ListOnlineUsers(ctx context.Context) ([]domain.Participant, error) {
	const query = `
        SELECT DISTINCT ON (p.user_id) p.conversation_id, p.user_id, u.name, (u.is_staff OR u.is_superuser),
               p.is_online, p.is_active, p.last_seen_at, p.joined_at
        FROM participants p JOIN users u ON u.id = p.user_id
        WHERE p.is_online
        ORDER BY p.user_id, p.last_seen_at DESC NULLS LAST`
	return r.list(ctx, query)
}

func (r *participantRepository) list(ctx context.Context, query string, args ...any) ([]domain.Participant, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(
			&p.ConversationID,
			&p.UserID,
			&p.UserName,
			&p.IsStaff,
			&p.IsOnline,
			&p.IsActive,
			&p.LastSeenAt,
			&p.JoinedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
