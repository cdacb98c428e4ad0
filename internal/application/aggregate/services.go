package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/bryanwahyu/synthpanel/internal/application"
	domain "github.com/bryanwahyu/synthpanel/internal/domain/aggregate"
	"github.com/bryanwahyu/synthpanel/internal/domain/runfailures"
	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
	"github.com/bryanwahyu/synthpanel/internal/logger"
)

// Engine computes and stores the aggregate of a completed run.
type Engine struct {
	Responses runs.ResponseRepository
	Variants  variants.Repository
	Repo      domain.Repository
	Failures  runfailures.Repository
	// Summarizer is optional; nil means local tag themes only.
	Summarizer domain.ThemeSummarizer
	Clock      application.Clock
	Log        *logger.Logger

	SamplingThreshold int
	TextCap           int
	// NewRand seeds the sampler. Defaults to a time-seeded source.
	NewRand func() *rand.Rand
}

// Live is the partial view of a run computed from rows persisted so far.
type Live struct {
	Summary  domain.Summary  `json:"summary"`
	Segments domain.Segments `json:"segments"`
	Score    int             `json:"benchmark_score"`
}

// Observations joins a run's responses with their variant profiles.
func (e *Engine) Observations(ctx context.Context, run *runs.TestRun) ([]domain.Observation, error) {
	resps, err := e.Responses.ListByRun(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	profiles, err := e.Variants.GetMany(ctx, run.VariantIDs)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	byID := make(map[variants.VariantID]*variants.VariantProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	obs := make([]domain.Observation, 0, len(resps))
	for _, r := range resps {
		obs = append(obs, domain.Observation{Response: r, Profile: byID[r.VariantID]})
	}
	return obs, nil
}

// Live summarizes whatever has been persisted for run, complete or not.
func (e *Engine) Live(ctx context.Context, run *runs.TestRun) (Live, error) {
	obs, err := e.Observations(ctx, run)
	if err != nil {
		return Live{}, err
	}
	sum, seg := domain.Summarize(obs)
	return Live{Summary: sum, Segments: seg, Score: domain.BenchmarkScore(sum)}, nil
}

// Aggregate computes the run's aggregate and stores it. When an aggregate
// already exists the stored one is returned untouched.
func (e *Engine) Aggregate(ctx context.Context, run *runs.TestRun) (*domain.Result, error) {
	if existing, err := e.Repo.Get(ctx, run.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	obs, err := e.Observations(ctx, run)
	if err != nil {
		return nil, err
	}
	sum, seg := domain.Summarize(obs)
	res := &domain.Result{
		RunID:     run.ID,
		Summary:   sum,
		Segments:  seg,
		Themes:    e.themes(ctx, run, obs),
		CreatedAt: e.Clock.Now().UTC(),
	}

	if err := e.Repo.Insert(ctx, res); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return e.Repo.Get(ctx, run.ID)
		}
		return nil, fmt.Errorf("insert aggregate: %w", err)
	}
	e.log().Info("aggregate stored", "run_id", run.ID, "responses", sum.TotalResponses, "theme_source", res.Themes.Source)
	return res, nil
}

func (e *Engine) Get(ctx context.Context, id runs.RunID) (*domain.Result, error) {
	return e.Repo.Get(ctx, id)
}

// themes never fails: summarizer problems degrade to empty lists.
func (e *Engine) themes(ctx context.Context, run *runs.TestRun, obs []domain.Observation) domain.Themes {
	tags := domain.LocalThemes(obs)
	if e.Summarizer == nil || len(obs) == 0 {
		return domain.EmptyThemes(tags)
	}

	threshold := e.SamplingThreshold
	if threshold <= 0 {
		threshold = domain.DefaultSamplingThreshold
	}
	textCap := e.TextCap
	if textCap <= 0 {
		textCap = domain.DefaultTextCap
	}
	sample := domain.Anonymize(domain.StratifiedSample(obs, threshold, e.rng()), textCap)

	th, err := e.Summarizer.SummarizeThemes(ctx, run.Concept.Text, sample)
	if err != nil {
		e.log().Warn("theme summarizer failed, using empty themes", "run_id", run.ID, "sample", len(sample), "error", err)
		e.recordFailure(ctx, run, err, len(sample))
		return domain.EmptyThemes(tags)
	}
	th.Source = domain.SourceSummarizer
	th.Tags = tags
	return th
}

func (e *Engine) recordFailure(ctx context.Context, run *runs.TestRun, cause error, sample int) {
	if e.Failures == nil {
		return
	}
	details, _ := json.Marshal(map[string]any{"sample_size": sample})
	f := &runfailures.Failure{
		RunID:       string(run.ID),
		Class:       runfailures.ClassSummarizer,
		Phase:       "aggregate",
		Message:     cause.Error(),
		DetailsJSON: string(details),
		CreatedAt:   e.Clock.Now().UTC(),
	}
	if err := e.Failures.Save(ctx, f); err != nil {
		e.log().Error("save summarizer failure", "run_id", run.ID, "error", err)
	}
}

func (e *Engine) rng() *rand.Rand {
	if e.NewRand != nil {
		return e.NewRand()
	}
	return rand.New(rand.NewSource(e.Clock.Now().UnixNano()))
}

func (e *Engine) log() *logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

func (e *Engine) Delete(ctx context.Context, id runs.RunID) error {
	return e.Repo.DeleteByRun(ctx, id)
}
