package aggregate

import (
	"math"
	"math/rand"
	"sort"
	"time"
	"unicode/utf8"
)

const (
	DefaultSamplingThreshold = 40
	// SampleMargin over-samples each bucket's share to absorb bucket imbalance.
	SampleMargin = 2
	// DefaultTextCap bounds the response text sent to the summarizer.
	DefaultTextCap = 500
)

// StratifiedSample returns obs unchanged when it has at most threshold
// entries. Otherwise it draws roughly threshold/3 (plus SampleMargin) from
// each sentiment bucket, trims the largest allocations until the total fits
// threshold, and never leaves a non-empty bucket unrepresented.
func StratifiedSample(obs []Observation, threshold int, rng *rand.Rand) []Observation {
	if threshold < 3 {
		threshold = 3
	}
	if len(obs) <= threshold {
		return obs
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	buckets := [3][]Observation{}
	for _, o := range obs {
		if o.Response == nil {
			continue
		}
		switch SentimentBucket(o.Response.Scores.Sentiment) {
		case BucketPositive:
			buckets[0] = append(buckets[0], o)
		case BucketNeutral:
			buckets[1] = append(buckets[1], o)
		default:
			buckets[2] = append(buckets[2], o)
		}
	}

	quota := int(math.Ceil(float64(threshold)/3)) + SampleMargin
	var alloc [3]int
	total := 0
	for i, b := range buckets {
		alloc[i] = min(quota, len(b))
		total += alloc[i]
	}
	for total > threshold {
		largest := 0
		for i := 1; i < len(alloc); i++ {
			if alloc[i] > alloc[largest] {
				largest = i
			}
		}
		if alloc[largest] <= 1 {
			break
		}
		alloc[largest]--
		total--
	}

	out := make([]Observation, 0, total)
	for i, b := range buckets {
		idx := rng.Perm(len(b))[:alloc[i]]
		sort.Ints(idx)
		for _, j := range idx {
			out = append(out, b[j])
		}
	}
	return out
}

// Anonymize converts observations into summarizer input, truncating each
// response text to textCap runes.
func Anonymize(obs []Observation, textCap int) []SampledResponse {
	if textCap <= 0 {
		textCap = DefaultTextCap
	}
	out := make([]SampledResponse, 0, len(obs))
	for _, o := range obs {
		if o.Response == nil {
			continue
		}
		age, tier := Unknown, Unknown
		if o.Profile != nil {
			age, tier = AgeBand(o.Profile.Age), AttitudeTier(o.Profile.AttitudeScore)
		}
		out = append(out, SampledResponse{
			AgeBand:      age,
			Platform:     Platform(o.Profile),
			AttitudeTier: tier,
			Text:         Truncate(o.Response.Text, textCap),
			Sentiment:    o.Response.Scores.Sentiment,
			Tags:         o.Response.Tags,
		})
	}
	return out
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
