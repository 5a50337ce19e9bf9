package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"clone-llm/internal/domain"
)

// ConversationRepository persists Conversation rows. A conversation's
// persona is writable exactly once: once non-empty it must not change.
type ConversationRepository interface {
	Create(ctx context.Context, c domain.Conversation) error
	GetByID(ctx context.Context, id string) (domain.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	StampPersonaIfUnset(ctx context.Context, id, personaID string) error
	UpdateSummary(ctx context.Context, id, summary string, at time.Time) error
	Touch(ctx context.Context, id string, at time.Time) error
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

func (r *PgConversationRepository) Create(ctx context.Context, c domain.Conversation) error {
	const query = `
		INSERT INTO conversations (id, user_id, persona_id, title, last_summary, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query, c.ID, c.UserID, c.PersonaID, c.Title, c.LastSummary, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *PgConversationRepository) GetByID(ctx context.Context, id string) (domain.Conversation, error) {
	const query = `
		SELECT id, user_id, COALESCE(persona_id, ''), COALESCE(title, ''), COALESCE(last_summary, ''), created_at, updated_at
		FROM conversations
		WHERE id = $1
	`
	var c domain.Conversation
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.UserID, &c.PersonaID, &c.Title, &c.LastSummary, &c.CreatedAt, &c.UpdatedAt)
	return c, translateNoRows(err)
}

func (r *PgConversationRepository) ListByUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	const query = `
		SELECT id, user_id, COALESCE(persona_id, ''), COALESCE(title, ''), COALESCE(last_summary, ''), created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.PersonaID, &c.Title, &c.LastSummary, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PgConversationRepository) StampPersonaIfUnset(ctx context.Context, id, personaID string) error {
	const query = `
		UPDATE conversations
		SET persona_id = $1
		WHERE id = $2 AND persona_id IS NULL
	`
	_, err := r.pool.Exec(ctx, query, personaID, id)
	return err
}

func (r *PgConversationRepository) UpdateSummary(ctx context.Context, id, summary string, at time.Time) error {
	const query = `UPDATE conversations SET last_summary = $1, updated_at = $2 WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, summary, at, id)
	return err
}

func (r *PgConversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE conversations SET updated_at = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, at, id)
	return err
}
