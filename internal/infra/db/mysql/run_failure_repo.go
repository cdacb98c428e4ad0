package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/synthpanel/internal/domain/runfailures"
)

type RunFailureRepository struct {
	db *sql.DB
}

func NewRunFailureRepository(db *sql.DB) *RunFailureRepository {
	return &RunFailureRepository{db: db}
}

func (r *RunFailureRepository) Save(ctx context.Context, f *domain.Failure) error {
	const q = `
INSERT INTO panel_run_failures (run_id, class, phase, message, details_json, created_at)
VALUES (?,?,?,?,?,?)`
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, q,
		stringOrDash(f.RunID), stringOrDash(string(f.Class)), stringOrDash(f.Phase),
		f.Message, validJSON(f.DetailsJSON), created,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		f.ID = id
	}
	return nil
}

// ListByRun returns the newest failures first.
func (r *RunFailureRepository) ListByRun(ctx context.Context, runID string, limit int) ([]*domain.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, run_id, class, phase, message, details_json, created_at
FROM panel_run_failures WHERE run_id=? ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, runID, limit)
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
