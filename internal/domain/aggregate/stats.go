package aggregate

import (
	"math"
	"strings"

	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

// Sentiment buckets
const (
	BucketPositive = "positive"
	BucketNeutral  = "neutral"
	BucketNegative = "negative"
)

// Segment labels
const (
	AgeBand18to24 = "18-24"
	AgeBand25to34 = "25-34"
	AgeBand35Plus = "35+"

	TierEnthusiasts = "enthusiasts"
	TierNeutral     = "neutral"
	TierSkeptics    = "skeptics"

	PlatformOther = "Other"
	Unknown       = "unknown"
)

// SentimentBucket maps a 1-10 sentiment score to its bucket.
func SentimentBucket(sentiment int) string {
	switch {
	case sentiment >= 7:
		return BucketPositive
	case sentiment >= 4:
		return BucketNeutral
	default:
		return BucketNegative
	}
}

// AgeBand maps an age to its segment label.
func AgeBand(age int) string {
	switch {
	case age < 25:
		return AgeBand18to24
	case age < 35:
		return AgeBand25to34
	default:
		return AgeBand35Plus
	}
}

// AttitudeTier maps an attitude score to its segment label.
func AttitudeTier(score int) string {
	switch {
	case score >= 7:
		return TierEnthusiasts
	case score <= 3:
		return TierSkeptics
	default:
		return TierNeutral
	}
}

// Platform returns the variant's recorded platform, or PlatformOther.
func Platform(p *variants.VariantProfile) string {
	if p == nil || strings.TrimSpace(p.PrimaryPlatform) == "" {
		return PlatformOther
	}
	return p.PrimaryPlatform
}

// Round1 rounds to one decimal place, halves away from zero.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

type bucketSums struct {
	count      int
	sentiment  int
	engagement int
}

func (b bucketSums) segment() Segment {
	if b.count == 0 {
		return Segment{}
	}
	n := float64(b.count)
	return Segment{
		Count:         b.count,
		AvgSentiment:  Round1(float64(b.sentiment) / n),
		AvgEngagement: Round1(float64(b.engagement) / n),
	}
}

// Accumulator folds observations one at a time so the same computation
// serves a finished run and a run still in progress.
type Accumulator struct {
	total         int
	buckets       SentimentBuckets
	engagement    int
	share         int
	comprehension int

	byAge      map[string]*bucketSums
	byPlatform map[string]*bucketSums
	byAttitude map[string]*bucketSums
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		byAge:      map[string]*bucketSums{},
		byPlatform: map[string]*bucketSums{},
		byAttitude: map[string]*bucketSums{},
	}
}

// Add folds one observation. Observations without a response are ignored.
func (a *Accumulator) Add(o Observation) {
	if o.Response == nil {
		return
	}
	sc := o.Response.Scores
	a.total++
	switch SentimentBucket(sc.Sentiment) {
	case BucketPositive:
		a.buckets.Positive++
	case BucketNeutral:
		a.buckets.Neutral++
	default:
		a.buckets.Negative++
	}
	a.engagement += sc.Engagement
	a.share += sc.Share
	a.comprehension += sc.Comprehension

	age, tier := Unknown, Unknown
	if o.Profile != nil {
		age, tier = AgeBand(o.Profile.Age), AttitudeTier(o.Profile.AttitudeScore)
	}
	add(a.byAge, age, sc.Sentiment, sc.Engagement)
	add(a.byPlatform, Platform(o.Profile), sc.Sentiment, sc.Engagement)
	add(a.byAttitude, tier, sc.Sentiment, sc.Engagement)
}

func add(m map[string]*bucketSums, key string, sentiment, engagement int) {
	b, ok := m[key]
	if !ok {
		b = &bucketSums{}
		m[key] = b
	}
	b.count++
	b.sentiment += sentiment
	b.engagement += engagement
}

// Summary returns the summary statistics folded so far.
func (a *Accumulator) Summary() Summary {
	s := Summary{TotalResponses: a.total, Sentiment: a.buckets}
	if a.total == 0 {
		return s
	}
	n := float64(a.total)
	s.AvgEngagement = Round1(float64(a.engagement) / n)
	s.AvgShare = Round1(float64(a.share) / n)
	s.AvgComprehension = Round1(float64(a.comprehension) / n)
	return s
}

// Segments returns the three partitions folded so far.
func (a *Accumulator) Segments() Segments {
	return Segments{
		ByAge:      finish(a.byAge),
		ByPlatform: finish(a.byPlatform),
		ByAttitude: finish(a.byAttitude),
	}
}

func finish(m map[string]*bucketSums) map[string]Segment {
	out := make(map[string]Segment, len(m))
	for k, b := range m {
		out[k] = b.segment()
	}
	return out
}

// Summarize computes summary and segments in one pass.
func Summarize(obs []Observation) (Summary, Segments) {
	acc := NewAccumulator()
	for _, o := range obs {
		acc.Add(o)
	}
	return acc.Summary(), acc.Segments()
}

// Benchmark score weights and modulation.
const (
	weightSentiment     = 0.30
	weightEngagement    = 0.30
	weightShare         = 0.25
	weightComprehension = 0.15

	positiveBoost   = 0.10
	negativePenalty = 0.15
)

// BenchmarkScore blends the summary into a 0-100 composite. It depends on
// the summary alone.
func BenchmarkScore(s Summary) int {
	b := s.Sentiment
	n := b.Positive + b.Neutral + b.Negative
	if n == 0 {
		return 0
	}
	total := float64(n)
	sentiment := float64(b.Positive*10+b.Neutral*5+b.Negative*1) / total
	raw := (sentiment*weightSentiment +
		s.AvgEngagement*weightEngagement +
		s.AvgShare*weightShare +
		s.AvgComprehension*weightComprehension) * 10
	mod := 1 + positiveBoost*float64(b.Positive)/total - negativePenalty*float64(b.Negative)/total

	score := int(math.Round(raw * mod))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
