package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"clone-llm/internal/domain"
)

// MessageRepository persists the append-only Message log.
type MessageRepository interface {
	Create(ctx context.Context, m domain.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
	ListRecent(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	CountByConversation(ctx context.Context, conversationID string) (int, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Create(ctx context.Context, m domain.Message) error {
	const query = `
		INSERT INTO messages (id, conversation_id, role, content, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, m.ID, m.ConversationID, m.Role, m.Content, m.Timestamp)
	return err
}

func (r *PgMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	const query = `
		SELECT id, conversation_id, role, content, timestamp
		FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp ASC
	`
	return r.query(ctx, query, conversationID)
}

// ListRecent returns the most recent limit messages in chronological order,
// the shape the Short-Term Buffer needs on every orchestrator turn.
func (r *PgMessageRepository) ListRecent(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
		SELECT id, conversation_id, role, content, timestamp
		FROM (
			SELECT id, conversation_id, role, content, timestamp
			FROM messages
			WHERE conversation_id = $1
			ORDER BY timestamp DESC
			LIMIT $2
		) recent
		ORDER BY timestamp ASC
	`
	return r.query(ctx, query, conversationID, limit)
}

func (r *PgMessageRepository) CountByConversation(ctx context.Context, conversationID string) (int, error) {
	const query = `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`
	var n int
	err := r.pool.QueryRow(ctx, query, conversationID).Scan(&n)
	return n, err
}

// DeleteByConversation removes every message of a conversation. The
// "reset conversation" endpoint does not call it: reset clears only the
// rolling summary, so messages survive a reset.
func (r *PgMessageRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	const query = `DELETE FROM messages WHERE conversation_id = $1`
	_, err := r.pool.Exec(ctx, query, conversationID)
	return err
}

func (r *PgMessageRepository) query(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
