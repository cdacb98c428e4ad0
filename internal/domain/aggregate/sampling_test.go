package aggregate

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func populate(pos, neu, neg int) []Observation {
	var out []Observation
	for i := 0; i < pos; i++ {
		out = append(out, obs(8, 5, 5, 5, nil))
	}
	for i := 0; i < neu; i++ {
		out = append(out, obs(5, 5, 5, 5, nil))
	}
	for i := 0; i < neg; i++ {
		out = append(out, obs(2, 5, 5, 5, nil))
	}
	return out
}

func countBuckets(in []Observation) SentimentBuckets {
	s, _ := Summarize(in)
	return s.Sentiment
}

func TestStratifiedSampleUnderThresholdKeepsAll(t *testing.T) {
	in := populate(20, 10, 5)
	assert.Len(t, StratifiedSample(in, 40, rand.New(rand.NewSource(1))), 35)
}

func TestStratifiedSampleImbalanced(t *testing.T) {
	in := populate(60, 30, 10)
	for seed := int64(0); seed < 20; seed++ {
		out := StratifiedSample(in, 40, rand.New(rand.NewSource(seed)))
		assert.LessOrEqual(t, len(out), 40)
		b := countBuckets(out)
		assert.GreaterOrEqual(t, b.Positive, 1)
		assert.GreaterOrEqual(t, b.Neutral, 1)
		assert.GreaterOrEqual(t, b.Negative, 1)
		assert.Equal(t, SentimentBuckets{Positive: 15, Neutral: 15, Negative: 10}, b)
	}
}

func TestStratifiedSampleSkipsEmptyBucket(t *testing.T) {
	in := populate(90, 1, 0)
	out := StratifiedSample(in, 40, rand.New(rand.NewSource(7)))
	b := countBuckets(out)
	assert.Equal(t, 1, b.Neutral)
	assert.Equal(t, 0, b.Negative)
	assert.LessOrEqual(t, len(out), 40)
}

func TestStratifiedSampleDeterministicForSeed(t *testing.T) {
	in := populate(60, 30, 10)
	for i := range in {
		in[i].Response.Text = strings.Repeat("x", i)
	}
	a := StratifiedSample(in, 40, rand.New(rand.NewSource(42)))
	b := StratifiedSample(in, 40, rand.New(rand.NewSource(42)))
	assert.Equal(t, a, b)
}

func TestAnonymizeTruncates(t *testing.T) {
	o := obs(8, 5, 5, 5, profile(30, 8, "Snapchat"))
	o.Response.Text = strings.Repeat("é", 600)
	out := Anonymize([]Observation{o}, 500)
	if assert.Len(t, out, 1) {
		assert.Equal(t, 500, len([]rune(out[0].Text)))
		assert.Equal(t, AgeBand25to34, out[0].AgeBand)
		assert.Equal(t, TierEnthusiasts, out[0].AttitudeTier)
		assert.Equal(t, "Snapchat", out[0].Platform)
	}
}
