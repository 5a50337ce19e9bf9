package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"clone-llm/internal/domain"
)

// AuditRepository is the append-only sink for classification decisions.
type AuditRepository interface {
	Append(ctx context.Context, e domain.AuditEntry) error
}

type PgAuditRepository struct {
	pool *pgxpool.Pool
}

func NewPgAuditRepository(pool *pgxpool.Pool) *PgAuditRepository {
	return &PgAuditRepository{pool: pool}
}

func (r *PgAuditRepository) Append(ctx context.Context, e domain.AuditEntry) error {
	indicators, err := json.Marshal(e.Indicators)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO audit_log (timestamp, user_id, conversation_id, label, confidence, indicators, route, action, message_digest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query, e.Timestamp, e.UserID, e.ConversationID, e.Label, e.Confidence, indicators, e.Route, e.Action, e.MessageDigest)
	return err
}
