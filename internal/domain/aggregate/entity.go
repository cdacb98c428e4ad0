package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

var (
	ErrNotFound      = errors.New("aggregate not found")
	ErrAlreadyExists = errors.New("aggregate already exists")
)

// SentimentBuckets is the tri-bucket sentiment distribution.
type SentimentBuckets struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Summary value object
type Summary struct {
	TotalResponses   int              `json:"total_responses"`
	Sentiment        SentimentBuckets `json:"sentiment"`
	AvgEngagement    float64          `json:"avg_engagement"`
	AvgShare         float64          `json:"avg_share"`
	AvgComprehension float64          `json:"avg_comprehension"`
}

// Segment is the aggregated metrics of one bucket of a partition.
type Segment struct {
	Count         int     `json:"count"`
	AvgSentiment  float64 `json:"avg_sentiment"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// Segments holds the three independent partitions.
type Segments struct {
	ByAge      map[string]Segment `json:"by_age"`
	ByPlatform map[string]Segment `json:"by_platform"`
	ByAttitude map[string]Segment `json:"by_attitude"`
}

// ThemeCount is a named theme with its frequency.
type ThemeCount struct {
	Theme     string `json:"theme"`
	Frequency int    `json:"frequency"`
}

// Quote is a representative response excerpt.
type Quote struct {
	Text        string `json:"text"`
	Attribution string `json:"attribution,omitempty"`
}

// TagThemes are themes derived locally from the reaction-tag vocabulary.
type TagThemes struct {
	Positive   []ThemeCount `json:"positive"`
	Concerns   []ThemeCount `json:"concerns"`
	Unexpected []ThemeCount `json:"unexpected"`
}

// Theme sources
const (
	SourceSummarizer = "summarizer"
	SourceTags       = "tags"
)

// Themes are the qualitative findings of a run. The summarizer lists stay
// empty when the summarizer is disabled or fails; Tags is always filled.
type Themes struct {
	PositiveThemes []ThemeCount `json:"positive_themes"`
	Concerns       []ThemeCount `json:"concerns"`
	Unexpected     []ThemeCount `json:"unexpected"`
	Quotes         []Quote      `json:"quotes"`
	Source         string       `json:"source"`
	Tags           TagThemes    `json:"tags"`
}

// Result is the aggregate row of a completed run, written exactly once.
type Result struct {
	RunID     runs.RunID `json:"run_id"`
	Summary   Summary    `json:"summary"`
	Segments  Segments   `json:"segments"`
	Themes    Themes     `json:"themes"`
	CreatedAt time.Time  `json:"created_at"`
}

// Observation is one response joined with its variant's demographics.
// Profile may be nil when the variant no longer exists.
type Observation struct {
	Response *runs.VariantResponse
	Profile  *variants.VariantProfile
}

// SampledResponse is the anonymized form sent to the theme summarizer.
type SampledResponse struct {
	AgeBand      string     `json:"age_band"`
	Platform     string     `json:"platform"`
	AttitudeTier string     `json:"attitude_tier"`
	Text         string     `json:"response"`
	Sentiment    int        `json:"sentiment"`
	Tags         []runs.Tag `json:"tags"`
}

// Repository port for aggregate rows
type Repository interface {
	// Insert fails with ErrAlreadyExists when the run already has an aggregate.
	Insert(ctx context.Context, r *Result) error
	Get(ctx context.Context, runID runs.RunID) (*Result, error)
	DeleteByRun(ctx context.Context, runID runs.RunID) error
}

// ThemeSummarizer extracts ranked themes from a sample of responses.
type ThemeSummarizer interface {
	SummarizeThemes(ctx context.Context, concept string, sample []SampledResponse) (Themes, error)
}
