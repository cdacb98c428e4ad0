package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/synthpanel/internal/application"
	domain "github.com/bryanwahyu/synthpanel/internal/domain/aggregate"
	"github.com/bryanwahyu/synthpanel/internal/domain/runfailures"
	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
	"github.com/bryanwahyu/synthpanel/internal/infra/db/memory"
)

type fakeSummarizer struct {
	calls  int
	sample int
	err    error
}

func (f *fakeSummarizer) SummarizeThemes(_ context.Context, _ string, sample []domain.SampledResponse) (domain.Themes, error) {
	f.calls++
	f.sample = len(sample)
	if f.err != nil {
		return domain.Themes{}, f.err
	}
	return domain.Themes{
		PositiveThemes: []domain.ThemeCount{{Theme: "Color", Frequency: 3}},
		Concerns:       []domain.ThemeCount{},
		Unexpected:     []domain.ThemeCount{},
		Quotes:         []domain.Quote{{Text: "love it"}},
	}, nil
}

// seed stores n variants and one response per variant with the given sentiment.
func seed(t *testing.T, store *memory.Store, n int, sentiment func(i int) int) *runs.TestRun {
	t.Helper()
	ctx := context.Background()
	var vs []*variants.VariantProfile
	run := &runs.TestRun{ID: "r1", ProjectID: "acme", Status: runs.StatusComplete, Total: n, Completed: n}
	for i := 0; i < n; i++ {
		id := variants.VariantID(fmt.Sprintf("v%d", i))
		vs = append(vs, &variants.VariantProfile{ID: id, PersonaID: "p1", Age: 20 + i%30, AttitudeScore: 1 + i%10, PrimaryPlatform: "TikTok"})
		run.VariantIDs = append(run.VariantIDs, id)
		require.NoError(t, store.Responses().Insert(ctx, &runs.VariantResponse{
			RunID: run.ID, VariantID: id, Text: "ok",
			Scores: runs.Scores{Sentiment: sentiment(i), Engagement: 6, Share: 5, Comprehension: 8},
			Tags:   []runs.Tag{runs.TagCurious},
		}))
	}
	require.NoError(t, store.Variants().ReplaceForPersona(ctx, "p1", vs))
	require.NoError(t, store.Runs().Save(ctx, run))
	return run
}

func newEngine(store *memory.Store, s domain.ThemeSummarizer) *Engine {
	return &Engine{
		Responses:         store.Responses(),
		Variants:          store.Variants(),
		Repo:              store.Aggregates(),
		Failures:          store.Failures(),
		Summarizer:        s,
		Clock:             application.SystemClock{},
		SamplingThreshold: 40,
		NewRand:           func() *rand.Rand { return rand.New(rand.NewSource(1)) },
	}
}

func TestAggregateSamplesLargeRuns(t *testing.T) {
	store := memory.NewStore()
	run := seed(t, store, 100, func(i int) int {
		switch {
		case i < 60:
			return 8
		case i < 90:
			return 5
		}
		return 2
	})
	sum := &fakeSummarizer{}
	res, err := newEngine(store, sum).Aggregate(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.calls)
	assert.LessOrEqual(t, sum.sample, 40)
	s := res.Summary
	assert.Equal(t, s.TotalResponses, s.Sentiment.Positive+s.Sentiment.Neutral+s.Sentiment.Negative)
	assert.Equal(t, domain.SourceSummarizer, res.Themes.Source)
	assert.Equal(t, []domain.ThemeCount{{Theme: "curious", Frequency: 100}}, res.Themes.Tags.Unexpected)
}

func TestAggregateIsComputedOnce(t *testing.T) {
	store := memory.NewStore()
	run := seed(t, store, 5, func(int) int { return 7 })
	sum := &fakeSummarizer{}
	eng := newEngine(store, sum)

	first, err := eng.Aggregate(context.Background(), run)
	require.NoError(t, err)
	second, err := eng.Aggregate(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.calls)

	a, _ := json.Marshal(first.Summary)
	b, _ := json.Marshal(second.Summary)
	assert.Equal(t, a, b)
	a, _ = json.Marshal(first.Segments)
	b, _ = json.Marshal(second.Segments)
	assert.Equal(t, a, b)
}

func TestAggregateSummarizerFailureDegrades(t *testing.T) {
	store := memory.NewStore()
	run := seed(t, store, 4, func(int) int { return 3 })
	res, err := newEngine(store, &fakeSummarizer{err: errors.New("upstream 500")}).Aggregate(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, domain.SourceTags, res.Themes.Source)
	assert.Empty(t, res.Themes.PositiveThemes)
	assert.NotNil(t, res.Themes.PositiveThemes)
	assert.NotEmpty(t, res.Themes.Tags.Unexpected)

	fails, err := store.Failures().ListByRun(context.Background(), "r1", 10)
	require.NoError(t, err)
	require.Len(t, fails, 1)
	assert.Equal(t, runfailures.ClassSummarizer, fails[0].Class)
}

func TestAggregateLocalOnly(t *testing.T) {
	store := memory.NewStore()
	run := seed(t, store, 3, func(int) int { return 9 })
	res, err := newEngine(store, nil).Aggregate(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceTags, res.Themes.Source)
}

func TestLiveOnPartialRun(t *testing.T) {
	store := memory.NewStore()
	run := seed(t, store, 2, func(int) int { return 10 })
	run.VariantIDs = append(run.VariantIDs, "not-yet")
	live, err := newEngine(store, nil).Live(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, 2, live.Summary.TotalResponses)
	assert.Equal(t, domain.BenchmarkScore(live.Summary), live.Score)
}
