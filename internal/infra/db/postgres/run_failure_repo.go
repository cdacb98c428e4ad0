package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/synthpanel/internal/domain/runfailures"
)

type RunFailureRepository struct{ db *sql.DB }

func NewRunFailureRepository(db *sql.DB) *RunFailureRepository { return &RunFailureRepository{db: db} }

func (r *RunFailureRepository) Save(ctx context.Context, f *domain.Failure) error {
	const q = `
INSERT INTO panel_run_failures (run_id, class, phase, message, details_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, q,
		stringOrDash(f.RunID), stringOrDash(string(f.Class)), stringOrDash(f.Phase),
		f.Message, validJSON(f.DetailsJSON), created,
	).Scan(&f.ID)
}

func (r *RunFailureRepository) ListByRun(ctx context.Context, runID string, limit int) ([]*domain.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, run_id, class, phase, message, details_json::text, created_at
FROM panel_run_failures WHERE run_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Failure
	for rows.Next() {
		var f domain.Failure
		if err := rows.Scan(&f.ID, &f.RunID, &f.Class, &f.Phase, &f.Message, &f.DetailsJSON, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
