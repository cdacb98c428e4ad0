package postgres

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

type PersonaRepository struct{ db *sql.DB }

func NewPersonaRepository(db *sql.DB) *PersonaRepository { return &PersonaRepository{db: db} }

func (r *PersonaRepository) Save(ctx context.Context, p *domain.Persona) error {
	const q = `
INSERT INTO panel_personas (id, project_id, name, profile, voice_sample, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
 name = EXCLUDED.name,
 profile = EXCLUDED.profile,
 voice_sample = EXCLUDED.voice_sample;`
	_, err := r.db.ExecContext(ctx, q, p.ID, stringOrDash(p.ProjectID), p.Name, p.Profile, p.VoiceSample, p.CreatedAt)
	return err
}

func (r *PersonaRepository) Get(ctx context.Context, project string, id domain.PersonaID) (*domain.Persona, error) {
	const q = `
SELECT id, project_id, name, profile, voice_sample, created_at
FROM panel_personas WHERE project_id=$1 AND id=$2 LIMIT 1;`
	var p domain.Persona
	err := r.db.QueryRowContext(ctx, q, project, id).Scan(&p.ID, &p.ProjectID, &p.Name, &p.Profile, &p.VoiceSample, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPersonaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PersonaRepository) GetMany(ctx context.Context, ids []domain.PersonaID) ([]*domain.Persona, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, project_id, name, profile, voice_sample, created_at
FROM panel_personas WHERE id = ANY($1)`, stringArray(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Persona
	for rows.Next() {
		var p domain.Persona
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Profile, &p.VoiceSample, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
