package aggregate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

func obs(sentiment, engagement, share, comprehension int, p *variants.VariantProfile) Observation {
	return Observation{
		Response: &runs.VariantResponse{
			Scores: runs.Scores{Sentiment: sentiment, Engagement: engagement, Share: share, Comprehension: comprehension},
			Tags:   []runs.Tag{runs.TagCurious},
		},
		Profile: p,
	}
}

func profile(age, attitude int, platform string) *variants.VariantProfile {
	return &variants.VariantProfile{Age: age, AttitudeScore: attitude, PrimaryPlatform: platform}
}

func TestSentimentBucket(t *testing.T) {
	cases := map[int]string{1: BucketNegative, 3: BucketNegative, 4: BucketNeutral, 6: BucketNeutral, 7: BucketPositive, 10: BucketPositive}
	for in, want := range cases {
		assert.Equal(t, want, SentimentBucket(in), "sentiment %d", in)
	}
}

func TestAgeBandBoundaries(t *testing.T) {
	assert.Equal(t, AgeBand18to24, AgeBand(24))
	assert.Equal(t, AgeBand25to34, AgeBand(25))
	assert.Equal(t, AgeBand25to34, AgeBand(34))
	assert.Equal(t, AgeBand35Plus, AgeBand(35))
}

func TestAttitudeTier(t *testing.T) {
	assert.Equal(t, TierSkeptics, AttitudeTier(3))
	assert.Equal(t, TierNeutral, AttitudeTier(4))
	assert.Equal(t, TierNeutral, AttitudeTier(6))
	assert.Equal(t, TierEnthusiasts, AttitudeTier(7))
}

func TestRound1HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 7.3, Round1(7.25))
	assert.Equal(t, 6.7, Round1(20.0/3))
	assert.Equal(t, 5.0, Round1(5))
}

func TestSummarizeBucketsAddUp(t *testing.T) {
	in := []Observation{
		obs(9, 8, 7, 9, profile(22, 8, "TikTok")),
		obs(7, 6, 5, 8, profile(30, 5, "Instagram")),
		obs(5, 5, 5, 5, profile(41, 2, "")),
		obs(2, 3, 1, 6, nil),
	}
	sum, seg := Summarize(in)

	assert.Equal(t, 4, sum.TotalResponses)
	assert.Equal(t, sum.TotalResponses, sum.Sentiment.Positive+sum.Sentiment.Neutral+sum.Sentiment.Negative)
	assert.Equal(t, SentimentBuckets{Positive: 2, Neutral: 1, Negative: 1}, sum.Sentiment)
	assert.Equal(t, 5.5, sum.AvgEngagement)
	assert.Equal(t, 4.5, sum.AvgShare)
	assert.Equal(t, 7.0, sum.AvgComprehension)

	assert.Equal(t, Segment{Count: 1, AvgSentiment: 9, AvgEngagement: 8}, seg.ByAge[AgeBand18to24])
	assert.Equal(t, 1, seg.ByAge[Unknown].Count)
	assert.Equal(t, 2, seg.ByPlatform[PlatformOther].Count)
	assert.Equal(t, Segment{Count: 1, AvgSentiment: 5, AvgEngagement: 5}, seg.ByAttitude[TierSkeptics])
	assert.Equal(t, 1, seg.ByAttitude[TierEnthusiasts].Count)
}

func TestSummarizeEmpty(t *testing.T) {
	sum, seg := Summarize(nil)
	assert.Equal(t, Summary{}, sum)
	assert.Empty(t, seg.ByAge)
	assert.Equal(t, 0, BenchmarkScore(sum))
}

func TestBenchmarkScoreReferenceFigure(t *testing.T) {
	s := Summary{
		TotalResponses:   10,
		Sentiment:        SentimentBuckets{Positive: 7, Neutral: 2, Negative: 1},
		AvgEngagement:    8,
		AvgShare:         7,
		AvgComprehension: 9,
	}
	want := int(math.Round(((7.0*10+2*5+1*1)/10*0.30 + 8*0.30 + 7*0.25 + 9*0.15) * 10 * (1 + 0.10*0.7 - 0.15*0.1)))
	assert.Equal(t, 84, want)
	assert.Equal(t, want, BenchmarkScore(s))
}

func TestBenchmarkScoreClamped(t *testing.T) {
	top := Summary{
		TotalResponses: 3, Sentiment: SentimentBuckets{Positive: 3},
		AvgEngagement: 10, AvgShare: 10, AvgComprehension: 10,
	}
	assert.Equal(t, 100, BenchmarkScore(top))

	bottom := Summary{
		TotalResponses: 3, Sentiment: SentimentBuckets{Negative: 3},
		AvgEngagement: 2, AvgShare: 2, AvgComprehension: 2,
	}
	// (1*0.30 + 2*0.30 + 2*0.25 + 2*0.15) * 10 * 0.85 = 14.45
	assert.Equal(t, 14, BenchmarkScore(bottom))
}

func TestAccumulatorMatchesBatch(t *testing.T) {
	in := []Observation{
		obs(8, 7, 6, 9, profile(19, 9, "YouTube")),
		obs(3, 2, 2, 4, profile(52, 1, "Facebook")),
		obs(6, 6, 5, 7, profile(27, 5, "YouTube")),
	}
	acc := NewAccumulator()
	for _, o := range in[:2] {
		acc.Add(o)
	}
	partial := acc.Summary()
	assert.Equal(t, 2, partial.TotalResponses)

	acc.Add(in[2])
	wantSum, wantSeg := Summarize(in)
	assert.Equal(t, wantSum, acc.Summary())
	assert.Equal(t, wantSeg, acc.Segments())
}

func TestSummaryJSONIsStable(t *testing.T) {
	in := []Observation{
		obs(8, 7, 6, 9, profile(19, 9, "YouTube")),
		obs(3, 2, 2, 4, profile(52, 1, "Facebook")),
		obs(6, 6, 5, 7, profile(27, 5, "Reddit")),
	}
	s1, g1 := Summarize(in)
	s2, g2 := Summarize(in)
	a, err := json.Marshal(struct {
		S Summary
		G Segments
	}{s1, g1})
	require.NoError(t, err)
	b, err := json.Marshal(struct {
		S Summary
		G Segments
	}{s2, g2})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
