package mysql

import (
	"context"
	"database/sql"
	"fmt"

	domain "github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

type VariantRepository struct {
	db *sql.DB
}

func NewVariantRepository(db *sql.DB) *VariantRepository { return &VariantRepository{db: db} }

const variantColumns = `id, persona_id, idx, name, age, location, attitude_score, primary_platform,
 engagement_tier, distinguishing_trait, voice_modifier, created_at`

// ReplaceForPersona swaps the persona's variants in one transaction.
func (r *VariantRepository) ReplaceForPersona(ctx context.Context, persona domain.PersonaID, vs []*domain.VariantProfile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM panel_variants WHERE persona_id=?`, persona); err != nil {
		return fmt.Errorf("delete variants: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO panel_variants (`+variantColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, v := range vs {
		if _, err := stmt.ExecContext(ctx,
			v.ID, persona, v.Index, v.Name, v.Age, v.Location, v.AttitudeScore, v.PrimaryPlatform,
			string(v.EngagementTier), v.DistinguishingTrait, v.VoiceModifier, v.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert variant: %w", err)
		}
	}
	return tx.Commit()
}

func (r *VariantRepository) ListByPersona(ctx context.Context, persona domain.PersonaID) ([]*domain.VariantProfile, error) {
	return r.ListByPersonas(ctx, []domain.PersonaID{persona})
}

func (r *VariantRepository) ListByPersonas(ctx context.Context, personas []domain.PersonaID) ([]*domain.VariantProfile, error) {
	if len(personas) == 0 {
		return nil, nil
	}
	q := `SELECT ` + variantColumns + ` FROM panel_variants WHERE persona_id IN (` + placeholders(len(personas)) + `) ORDER BY persona_id, idx`
	return r.query(ctx, q, toArgs(personas)...)
}

// GetMany returns the variants found, in the order of ids.
func (r *VariantRepository) GetMany(ctx context.Context, ids []domain.VariantID) ([]*domain.VariantProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + variantColumns + ` FROM panel_variants WHERE id IN (` + placeholders(len(ids)) + `)`
	found, err := r.query(ctx, q, toArgs(ids)...)
	if err != nil {
		return nil, err
	}
	byID := make(map[domain.VariantID]*domain.VariantProfile, len(found))
	for _, v := range found {
		byID[v.ID] = v
	}
	out := make([]*domain.VariantProfile, 0, len(found))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *VariantRepository) query(ctx context.Context, q string, args ...any) ([]*domain.VariantProfile, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.VariantProfile
	for rows.Next() {
		var v domain.VariantProfile
		if err := rows.Scan(&v.ID, &v.PersonaID, &v.Index, &v.Name, &v.Age, &v.Location, &v.AttitudeScore,
			&v.PrimaryPlatform, &v.EngagementTier, &v.DistinguishingTrait, &v.VoiceModifier, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}
