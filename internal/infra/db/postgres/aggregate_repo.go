package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/synthpanel/internal/domain/aggregate"
	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
)

type AggregateRepository struct{ db *sql.DB }

func NewAggregateRepository(db *sql.DB) *AggregateRepository { return &AggregateRepository{db: db} }

func (r *AggregateRepository) Insert(ctx context.Context, res *domain.Result) error {
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	segments, err := json.Marshal(res.Segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	themes, err := json.Marshal(res.Themes)
	if err != nil {
		return fmt.Errorf("encode themes: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO panel_aggregates (run_id, summary_json, segments_json, themes_json, created_at)
VALUES ($1,$2,$3,$4,$5)`, res.RunID, string(summary), string(segments), string(themes), res.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *AggregateRepository) Get(ctx context.Context, runID runs.RunID) (*domain.Result, error) {
	var (
		res                       domain.Result
		summary, segments, themes []byte
	)
	err := r.db.QueryRowContext(ctx, `
SELECT run_id, summary_json, segments_json, themes_json, created_at
FROM panel_aggregates WHERE run_id=$1`, runID).Scan(&res.RunID, &summary, &segments, &themes, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(summary, &res.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	if err := json.Unmarshal(segments, &res.Segments); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	if err := json.Unmarshal(themes, &res.Themes); err != nil {
		return nil, fmt.Errorf("decode themes: %w", err)
	}
	return &res, nil
}

func (r *AggregateRepository) DeleteByRun(ctx context.Context, runID runs.RunID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM panel_aggregates WHERE run_id=$1`, runID)
	return err
}
