package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"clone-llm/internal/domain"
)

// SessionStateRepository persists per-conversation routing state. Callers
// read and write it directly; session state is not cached.
type SessionStateRepository interface {
	Get(ctx context.Context, conversationID string) (domain.SessionState, error)
	Upsert(ctx context.Context, s domain.SessionState) error
}

type PgSessionStateRepository struct {
	pool *pgxpool.Pool
}

func NewPgSessionStateRepository(pool *pgxpool.Pool) *PgSessionStateRepository {
	return &PgSessionStateRepository{pool: pool}
}

func (r *PgSessionStateRepository) Get(ctx context.Context, conversationID string) (domain.SessionState, error) {
	const query = `
		SELECT conversation_id, age_verified, age_verification_attempts, current_route, route_locked_until_message_index, last_updated
		FROM session_states
		WHERE conversation_id = $1
	`
	var s domain.SessionState
	err := r.pool.QueryRow(ctx, query, conversationID).Scan(
		&s.ConversationID, &s.AgeVerified, &s.AgeVerificationAttempts, &s.CurrentRoute, &s.RouteLockedUntilMessageIndex, &s.LastUpdated,
	)
	if err != nil {
		return domain.SessionState{}, translateNoRows(err)
	}
	return s, nil
}

func (r *PgSessionStateRepository) Upsert(ctx context.Context, s domain.SessionState) error {
	const query = `
		INSERT INTO session_states (conversation_id, age_verified, age_verification_attempts, current_route, route_locked_until_message_index, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (conversation_id) DO UPDATE SET
			age_verified = EXCLUDED.age_verified,
			age_verification_attempts = EXCLUDED.age_verification_attempts,
			current_route = EXCLUDED.current_route,
			route_locked_until_message_index = EXCLUDED.route_locked_until_message_index,
			last_updated = EXCLUDED.last_updated
	`
	_, err := r.pool.Exec(ctx, query,
		s.ConversationID, s.AgeVerified, s.AgeVerificationAttempts, s.CurrentRoute, s.RouteLockedUntilMessageIndex, s.LastUpdated,
	)
	return err
}

// NewState returns an UNSET session state for a brand-new conversation.
func NewState(conversationID string, now time.Time) domain.SessionState {
	return domain.SessionState{
		ConversationID: conversationID,
		CurrentRoute:   domain.RouteUnset,
		LastUpdated:    now,
	}
}
