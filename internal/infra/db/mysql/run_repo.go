package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/synthpanel/internal/domain/runs"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Save insert/update TestRun record
func (r *RunRepository) Save(ctx context.Context, run *domain.TestRun) error {
	const q = `
INSERT INTO panel_runs
(id, project_id, concept_json, variant_ids, status, completed, total, created_at, started_at, completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status),
 completed=GREATEST(completed, VALUES(completed)),
 started_at=VALUES(started_at), completed_at=VALUES(completed_at);
`
	concept, err := json.Marshal(run.Concept)
	if err != nil {
		return fmt.Errorf("encode concept: %w", err)
	}
	ids, err := json.Marshal(run.VariantIDs)
	if err != nil {
		return fmt.Errorf("encode variant ids: %w", err)
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, q,
		run.ID, stringOrDash(run.ProjectID), string(concept), string(ids), stringOrDash(string(run.Status)),
		run.Completed, run.Total, created, nullTime(run.StartedAt), nullTime(run.CompletedAt),
	)
	return err
}

// Get by ID + Project
func (r *RunRepository) Get(ctx context.Context, project string, id domain.RunID) (*domain.TestRun, error) {
	const q = `
SELECT id, project_id, concept_json, variant_ids, status, completed, total, created_at, started_at, completed_at
FROM panel_runs WHERE project_id=? AND id=? LIMIT 1;`
	var (
		run             domain.TestRun
		concept, ids    []byte
		started, closed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, project, id).Scan(
		&run.ID, &run.ProjectID, &concept, &ids, &run.Status, &run.Completed, &run.Total,
		&run.CreatedAt, &started, &closed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(concept, &run.Concept); err != nil {
		return nil, fmt.Errorf("decode concept: %w", err)
	}
	if err := json.Unmarshal(ids, &run.VariantIDs); err != nil {
		return nil, fmt.Errorf("decode variant ids: %w", err)
	}
	run.StartedAt = timePtr(started)
	run.CompletedAt = timePtr(closed)
	return &run, nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, run *domain.TestRun) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE panel_runs SET status=?, started_at=?, completed_at=? WHERE id=?`,
		string(run.Status), nullTime(run.StartedAt), nullTime(run.CompletedAt), run.ID)
	if err != nil {
		return err
	}
	return affected(res, domain.ErrNotFound)
}

// UpdateCompleted only ever raises the counter.
func (r *RunRepository) UpdateCompleted(ctx context.Context, id domain.RunID, completed int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE panel_runs SET completed=GREATEST(completed, ?) WHERE id=?`, completed, id)
	return err
}

func (r *RunRepository) Delete(ctx context.Context, project string, id domain.RunID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM panel_runs WHERE project_id=? AND id=?`, project, id)
	if err != nil {
		return err
	}
	return affected(res, domain.ErrNotFound)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
