package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clone-llm/internal/domain"
)

// UserRepository persists the User aggregate. Users are lazily created on
// first authenticated request, keyed by an external identity.
type UserRepository interface {
	GetOrCreateByExternalID(ctx context.Context, externalID string, now time.Time) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	TouchLastActive(ctx context.Context, id string, at time.Time) error
	GetPreferences(ctx context.Context, id string) (domain.Preferences, error)
	SetPreferences(ctx context.Context, id string, prefs domain.Preferences) error
}

type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) GetOrCreateByExternalID(ctx context.Context, externalID string, now time.Time) (domain.User, error) {
	const selectQuery = `
		SELECT id, external_id, display_name, metadata, created_at, last_active_at
		FROM users
		WHERE external_id = $1
	`
	u, err := r.scanOne(ctx, selectQuery, externalID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	u = domain.User{
		ID:           uuid.NewString(),
		ExternalID:   externalID,
		Metadata:     map[string]any{},
		CreatedAt:    now,
		LastActiveAt: now,
	}
	meta, merr := json.Marshal(u.Metadata)
	if merr != nil {
		return domain.User{}, merr
	}
	const insertQuery = `
		INSERT INTO users (id, external_id, display_name, metadata, created_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		RETURNING id, external_id, display_name, metadata, created_at, last_active_at
	`
	row := r.pool.QueryRow(ctx, insertQuery, u.ID, u.ExternalID, u.DisplayName, meta, u.CreatedAt, u.LastActiveAt)
	return scanUser(row)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `
		SELECT id, external_id, display_name, metadata, created_at, last_active_at
		FROM users
		WHERE id = $1
	`
	u, err := r.scanOne(ctx, query, id)
	return u, translateNoRows(err)
}

func (r *PgUserRepository) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_active_at = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, at, id)
	return err
}

func (r *PgUserRepository) GetPreferences(ctx context.Context, id string) (domain.Preferences, error) {
	const query = `SELECT preferences FROM users WHERE id = $1`
	var raw []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&raw)
	if err != nil {
		return domain.Preferences{}, err
	}
	if len(raw) == 0 {
		return domain.Preferences{}, nil
	}
	var p domain.Preferences
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Preferences{}, err
	}
	return p, nil
}

func (r *PgUserRepository) SetPreferences(ctx context.Context, id string, prefs domain.Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	const query = `UPDATE users SET preferences = $1 WHERE id = $2`
	_, err = r.pool.Exec(ctx, query, raw, id)
	return err
}

func (r *PgUserRepository) scanOne(ctx context.Context, query string, args ...any) (domain.User, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	return scanUser(row)
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	var meta []byte
	if err := row.Scan(&u.ID, &u.ExternalID, &u.DisplayName, &meta, &u.CreatedAt, &u.LastActiveAt); err != nil {
		return domain.User{}, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &u.Metadata)
	}
	return u, nil
}
