package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/synthpanel/internal/domain/aggregate"
	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
)

type AggregateRepository struct {
	db *sql.DB
}

func NewAggregateRepository(db *sql.DB) *AggregateRepository {
	return &AggregateRepository{db: db}
}

// Insert writes the aggregate once; a second insert for the run is rejected
// by the primary key.
func (r *AggregateRepository) Insert(ctx context.Context, res *domain.Result) error {
	summary, segments, themes, err := encodeAggregate(res)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO panel_aggregates (run_id, summary_json, segments_json, themes_json, created_at)
VALUES (?,?,?,?,?)`, res.RunID, summary, segments, themes, res.CreatedAt)
	if isDuplicate(err) {
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
FROM panel_aggregates WHERE run_id=?`, runID).Scan(&res.RunID, &summary, &segments, &themes, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := decodeAggregate(&res, summary, segments, themes); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *AggregateRepository) DeleteByRun(ctx context.Context, runID runs.RunID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM panel_aggregates WHERE run_id=?`, runID)
	return err
}

func encodeAggregate(res *domain.Result) (summary, segments, themes string, err error) {
	b, err := json.Marshal(res.Summary)
	if err != nil {
		return "", "", "", fmt.Errorf("encode summary: %w", err)
	}
	summary = string(b)
	if b, err = json.Marshal(res.Segments); err != nil {
		return "", "", "", fmt.Errorf("encode segments: %w", err)
	}
	segments = string(b)
	if b, err = json.Marshal(res.Themes); err != nil {
		return "", "", "", fmt.Errorf("encode themes: %w", err)
	}
	themes = string(b)
	return summary, segments, themes, nil
}

func decodeAggregate(res *domain.Result, summary, segments, themes []byte) error {
	if err := json.Unmarshal(summary, &res.Summary); err != nil {
		return fmt.Errorf("decode summary: %w", err)
	}
	if err := json.Unmarshal(segments, &res.Segments); err != nil {
		return fmt.Errorf("decode segments: %w", err)
	}
	if err := json.Unmarshal(themes, &res.Themes); err != nil {
		return fmt.Errorf("decode themes: %w", err)
	}
	return nil
}
