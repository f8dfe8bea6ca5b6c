package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront-realtime/internal/domain"
)

// ContactRepository persists support inbox submissions.
type ContactRepository interface {
	Create(ctx context.Context, contact *domain.Contact) error
	Update(ctx context.Context, contact *domain.Contact) error
	GetByID(ctx context.Context, id string) (*domain.Contact, error)
	Delete(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int) ([]domain.Contact, error)
	Stats(ctx context.Context) (domain.ContactStats, error)
}

type contactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository builds repository.
func NewContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &contactRepository{pool: pool}
}

const contactColumns = `id, name, email, phone, subject, message, is_read, is_replied, created_at, updated_at`

func (r *contactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	const query = `
        INSERT INTO contacts (name, email, phone, subject, message)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, is_read, is_replied, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.Subject,
		contact.Message,
	).Scan(&contact.ID, &contact.IsRead, &contact.IsReplied, &contact.CreatedAt, &contact.UpdatedAt)
}

func (r *contactRepository) Update(ctx context.Context, contact *domain.Contact) error {
	const query = `
        UPDATE contacts SET is_read=$1, is_replied=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, contact.IsRead, contact.IsReplied, contact.ID).Scan(&contact.UpdatedAt)
}

func (r *contactRepository) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	contact, err := scanContact(r.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *contactRepository) ListRecent(ctx context.Context, limit int) ([]domain.Contact, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+contactColumns+` FROM contacts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, contact)
	}
	return result, rows.Err()
}

func (r *contactRepository) Stats(ctx context.Context) (domain.ContactStats, error) {
	const query = `
        SELECT COUNT(*) FILTER (WHERE NOT is_read),
               COUNT(*),
               COUNT(*) FILTER (WHERE NOT is_replied)
        FROM contacts`
	var stats domain.ContactStats
	err := r.pool.QueryRow(ctx, query).Scan(&stats.UnreadCount, &stats.TotalCount, &stats.UnrepliedCount)
	return stats, err
}

func scanContact(row pgx.Row) (domain.Contact, error) {
	var c domain.Contact
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.Subject,
		&c.Message,
		&c.IsRead,
		&c.IsReplied,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}
