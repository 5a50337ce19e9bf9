package repository

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"clone-llm/internal/domain"
)

// PersonaRepository serves the small, rarely-mutated set of personas
// seeded at startup. Callers should prefer a cache in front of this.
type PersonaRepository interface {
	Upsert(ctx context.Context, p domain.Persona) error
	GetByName(ctx context.Context, name string) (domain.Persona, error)
	GetByID(ctx context.Context, id string) (domain.Persona, error)
	List(ctx context.Context) ([]domain.Persona, error)
}

type PgPersonaRepository struct {
	pool *pgxpool.Pool
}

func NewPgPersonaRepository(pool *pgxpool.Pool) *PgPersonaRepository {
	return &PgPersonaRepository{pool: pool}
}

func (r *PgPersonaRepository) Upsert(ctx context.Context, p domain.Persona) error {
	traits, err := json.Marshal(p.Traits)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO personas (id, name, archetype, traits, base_system_text)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			archetype = EXCLUDED.archetype,
			traits = EXCLUDED.traits,
			base_system_text = EXCLUDED.base_system_text
	`
	_, err = r.pool.Exec(ctx, query, p.ID, strings.ToLower(p.Name), p.Archetype, traits, p.BaseSystemText)
	return err
}

func (r *PgPersonaRepository) GetByName(ctx context.Context, name string) (domain.Persona, error) {
	const query = `
		SELECT id, name, archetype, traits, base_system_text
		FROM personas
		WHERE name = $1
	`
	row := r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(name)))
	return scanPersona(row)
}

func (r *PgPersonaRepository) GetByID(ctx context.Context, id string) (domain.Persona, error) {
	const query = `
		SELECT id, name, archetype, traits, base_system_text
		FROM personas
		WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanPersona(row)
}

func (r *PgPersonaRepository) List(ctx context.Context) ([]domain.Persona, error) {
	const query = `SELECT id, name, archetype, traits, base_system_text FROM personas ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type pgxScanner interface {
	Scan(...any) error
}

func scanPersona(row pgxScanner) (domain.Persona, error) {
	var p domain.Persona
	var traits []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Archetype, &traits, &p.BaseSystemText); err != nil {
		return domain.Persona{}, translateNoRows(err)
	}
	if len(traits) > 0 {
		_ = json.Unmarshal(traits, &p.Traits)
	}
	return p, nil
}
