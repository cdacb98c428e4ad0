package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/synthpanel/internal/domain/aggregate"
	"github.com/bryanwahyu/synthpanel/internal/domain/runfailures"
	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

func TestRunCompletedNeverDecreases(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Runs()
	require.NoError(t, repo.Save(ctx, &runs.TestRun{ID: "r1", ProjectID: "acme", Status: runs.StatusDraft, Total: 9}))

	require.NoError(t, repo.UpdateCompleted(ctx, "r1", 6))
	require.NoError(t, repo.UpdateCompleted(ctx, "r1", 3))

	got, err := repo.Get(ctx, "acme", "r1")
	require.NoError(t, err)
	assert.Equal(t, 6, got.Completed)

	_, err = repo.Get(ctx, "other", "r1")
	assert.ErrorIs(t, err, runs.ErrNotFound)
}

func TestReplaceForPersonaIsDestructive(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Variants()
	require.NoError(t, repo.ReplaceForPersona(ctx, "p1", []*variants.VariantProfile{{ID: "a"}, {ID: "b"}}))
	require.NoError(t, repo.ReplaceForPersona(ctx, "p1", []*variants.VariantProfile{{ID: "c"}}))

	list, err := repo.ListByPersona(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, variants.VariantID("c"), list[0].ID)

	many, err := repo.GetMany(ctx, []variants.VariantID{"a", "c"})
	require.NoError(t, err)
	assert.Len(t, many, 1)
}

func TestAggregateWrittenOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Aggregates()
	require.NoError(t, repo.Insert(ctx, &aggregate.Result{RunID: "r1"}))
	assert.ErrorIs(t, repo.Insert(ctx, &aggregate.Result{RunID: "r1"}), aggregate.ErrAlreadyExists)

	_, err := repo.Get(ctx, "r2")
	assert.ErrorIs(t, err, aggregate.ErrNotFound)
}

func TestResponsesAreCopied(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Responses()
	in := &runs.VariantResponse{RunID: "r1", Tags: []runs.Tag{runs.TagExcited}}
	require.NoError(t, repo.Insert(ctx, in))
	in.Tags[0] = runs.TagAnnoyed

	list, err := repo.ListByRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []runs.Tag{runs.TagExcited}, list[0].Tags)

	n, err := repo.CountByRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFailuresNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Failures()
	require.NoError(t, repo.Save(ctx, &runfailures.Failure{RunID: "r1", Message: "first"}))
	require.NoError(t, repo.Save(ctx, &runfailures.Failure{RunID: "r2", Message: "other"}))
	require.NoError(t, repo.Save(ctx, &runfailures.Failure{RunID: "r1", Message: "second"}))

	list, err := repo.ListByRun(ctx, "r1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Message)
}
