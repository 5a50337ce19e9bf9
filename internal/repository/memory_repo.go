package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"clone-llm/internal/domain"
)

// MemoryRepository persists the never-mutated Memory rows and answers the
// similarity-ranked retrieval query. Every query is scoped by user_id;
// that filter is mandatory, not optional, per the authorization invariant.
type MemoryRepository interface {
	Create(ctx context.Context, m domain.Memory) error
	// Search returns up to k memories for (userID, personaID) ordered by
	// cosine distance to queryEmbedding ascending (closest first), along
	// with their raw cosine similarity so the caller can blend in
	// importance and apply a threshold.
	Search(ctx context.Context, userID, personaID string, queryEmbedding pgvector.Vector, k int) ([]domain.ScoredMemory, error)
	// NearestByKind returns the single closest existing memory of the
	// given kind for (userID, personaID), used for dedup-on-extraction.
	NearestByKind(ctx context.Context, userID, personaID, kind string, embedding pgvector.Vector) (domain.ScoredMemory, bool, error)
	DeleteByConversation(ctx context.Context, userID, conversationID string) error
}

type PgMemoryRepository struct {
	pool *pgxpool.Pool
}

func NewPgMemoryRepository(pool *pgxpool.Pool) *PgMemoryRepository {
	return &PgMemoryRepository{pool: pool}
}

func (r *PgMemoryRepository) Create(ctx context.Context, m domain.Memory) error {
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO memories (id, conversation_id, user_id, persona_id, content, embedding, kind, importance, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		m.ID, m.ConversationID, m.UserID, m.PersonaID, m.Content, m.Embedding, m.Kind, m.Importance, meta, m.CreatedAt,
	)
	return err
}

func (r *PgMemoryRepository) Search(ctx context.Context, userID, personaID string, queryEmbedding pgvector.Vector, k int) ([]domain.ScoredMemory, error) {
	if k <= 0 {
		k = 5
	}
	const query = `
		SELECT id, conversation_id, user_id, persona_id, content, embedding, kind, importance, metadata, created_at,
			1 - (embedding <=> $3) AS similarity
		FROM memories
		WHERE user_id = $1 AND persona_id = $2
		ORDER BY embedding <=> $3, created_at DESC
		LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query, userID, personaID, queryEmbedding, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScoredMemories(rows)
}

func (r *PgMemoryRepository) NearestByKind(ctx context.Context, userID, personaID, kind string, embedding pgvector.Vector) (domain.ScoredMemory, bool, error) {
	const query = `
		SELECT id, conversation_id, user_id, persona_id, content, embedding, kind, importance, metadata, created_at,
			1 - (embedding <=> $3) AS similarity
		FROM memories
		WHERE user_id = $1 AND persona_id = $2 AND kind = $4
		ORDER BY embedding <=> $3
		LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, userID, personaID, embedding, kind)
	m, err := scanScoredMemory(row)
	if err != nil {
		return domain.ScoredMemory{}, false, nilIfNoRows(err)
	}
	return m, true, nil
}

func (r *PgMemoryRepository) DeleteByConversation(ctx context.Context, userID, conversationID string) error {
	const query = `DELETE FROM memories WHERE user_id = $1 AND conversation_id = $2`
	_, err := r.pool.Exec(ctx, query, userID, conversationID)
	return err
}

func scanScoredMemories(rows pgxRows) ([]domain.ScoredMemory, error) {
	var out []domain.ScoredMemory
	for rows.Next() {
		m, err := scanScoredMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanScoredMemory(row pgxScanner) (domain.ScoredMemory, error) {
	var m domain.ScoredMemory
	var meta []byte
	if err := row.Scan(
		&m.ID, &m.ConversationID, &m.UserID, &m.PersonaID, &m.Content, &m.Embedding,
		&m.Kind, &m.Importance, &meta, &m.CreatedAt, &m.Similarity,
	); err != nil {
		return domain.ScoredMemory{}, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &m.Metadata)
	}
	return m, nil
}

// pgxRows is a minimal interface so retrieval logic can be exercised
// against fakes in tests without a live pgxpool.
type pgxRows interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close()
}
