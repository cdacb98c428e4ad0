package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	domain "github.com/bryanwahyu/synthpanel/internal/domain/runs"
)

type ResponseRepository struct {
	db *sql.DB
}

func NewResponseRepository(db *sql.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

func (r *ResponseRepository) Insert(ctx context.Context, resp *domain.VariantResponse) error {
	const q = `
INSERT INTO panel_responses
(id, run_id, variant_id, text, sentiment, engagement, share, comprehension, tags_json, latency_ms, model, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	tags, err := json.Marshal(tagsOrEmpty(resp.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q,
		resp.ID, resp.RunID, resp.VariantID, resp.Text,
		resp.Scores.Sentiment, resp.Scores.Engagement, resp.Scores.Share, resp.Scores.Comprehension,
		string(tags), resp.LatencyMS, stringOrDash(resp.Model), resp.CreatedAt,
	)
	return err
}

func (r *ResponseRepository) ListByRun(ctx context.Context, id domain.RunID) ([]*domain.VariantResponse, error) {
	const q = `
SELECT id, run_id, variant_id, text, sentiment, engagement, share, comprehension, tags_json, latency_ms, model, created_at
FROM panel_responses WHERE run_id=? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.VariantResponse
	for rows.Next() {
		var (
			v    domain.VariantResponse
			tags []byte
		)
		if err := rows.Scan(&v.ID, &v.RunID, &v.VariantID, &v.Text,
			&v.Scores.Sentiment, &v.Scores.Engagement, &v.Scores.Share, &v.Scores.Comprehension,
			&tags, &v.LatencyMS, &v.Model, &v.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(tags, &v.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", v.ID, err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (r *ResponseRepository) CountByRun(ctx context.Context, id domain.RunID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM panel_responses WHERE run_id=?`, id).Scan(&n)
	return n, err
}

func (r *ResponseRepository) DeleteByRun(ctx context.Context, id domain.RunID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM panel_responses WHERE run_id=?`, id)
	return err
}

func tagsOrEmpty(t []domain.Tag) []domain.Tag {
	if t == nil {
		return []domain.Tag{}
	}
	return t
}
