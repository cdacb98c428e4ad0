package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	domain "github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

type RunRepository struct{ db *sql.DB }

func NewRunRepository(db *sql.DB) *RunRepository { return &RunRepository{db: db} }

// Save insert/update TestRun record
func (r *RunRepository) Save(ctx context.Context, run *domain.TestRun) error {
	const q = `
INSERT INTO panel_runs
(id, project_id, concept_json, variant_ids, status, completed, total, created_at, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
 status = EXCLUDED.status,
 completed = GREATEST(panel_runs.completed, EXCLUDED.completed),
 started_at = EXCLUDED.started_at,
 completed_at = EXCLUDED.completed_at;`
	concept, err := json.Marshal(run.Concept)
	if err != nil {
		return fmt.Errorf("encode concept: %w", err)
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, q,
		run.ID, stringOrDash(run.ProjectID), string(concept), stringArray(run.VariantIDs),
		stringOrDash(string(run.Status)), run.Completed, run.Total, created,
		nullTime(run.StartedAt), nullTime(run.CompletedAt),
	)
	return err
}

func (r *RunRepository) Get(ctx context.Context, project string, id domain.RunID) (*domain.TestRun, error) {
	const q = `
SELECT id, project_id, concept_json, variant_ids, status, completed, total, created_at, started_at, completed_at
FROM panel_runs WHERE project_id=$1 AND id=$2 LIMIT 1;`
	var (
		run             domain.TestRun
		concept         []byte
		ids             pq.StringArray
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
	run.VariantIDs = make([]variants.VariantID, len(ids))
	for i, v := range ids {
		run.VariantIDs[i] = variants.VariantID(v)
	}
	run.StartedAt = timePtr(started)
	run.CompletedAt = timePtr(closed)
	return &run, nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, run *domain.TestRun) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE panel_runs SET status=$1, started_at=$2, completed_at=$3 WHERE id=$4`,
		string(run.Status), nullTime(run.StartedAt), nullTime(run.CompletedAt), run.ID)
	if err != nil {
		return err
	}
	return affected(res, domain.ErrNotFound)
}

// UpdateCompleted only ever raises the counter.
func (r *RunRepository) UpdateCompleted(ctx context.Context, id domain.RunID, completed int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE panel_runs SET completed=GREATEST(completed, $1) WHERE id=$2`, completed, id)
	return err
}

func (r *RunRepository) Delete(ctx context.Context, project string, id domain.RunID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM panel_runs WHERE project_id=$1 AND id=$2`, project, id)
	if err != nil {
		return err
	}
	return affected(res, domain.ErrNotFound)
}
