package runs

import (
	"time"

	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

const (
	MinScore     = 1
	MaxScore     = 10
	NeutralScore = 5
)

// Tag is one entry of the controlled reaction vocabulary.
type Tag string

const (
	TagExcited       Tag = "excited"
	TagIntrigued     Tag = "intrigued"
	TagInspired      Tag = "inspired"
	TagAmused        Tag = "amused"
	TagTrusting      Tag = "trusting"
	TagWouldShare    Tag = "would_share"
	TagWouldBuy      Tag = "would_buy"
	TagConfused      Tag = "confused"
	TagSkeptical     Tag = "skeptical"
	TagAnnoyed       Tag = "annoyed"
	TagConcerned     Tag = "concerned"
	TagOffended      Tag = "offended"
	TagIndifferent   Tag = "indifferent"
	TagNeedsMoreInfo Tag = "needs_more_info"
	TagSurprised     Tag = "surprised"
	TagNostalgic     Tag = "nostalgic"
	TagCurious       Tag = "curious"
)

// Vocabulary lists every accepted tag.
var Vocabulary = []Tag{
	TagExcited, TagIntrigued, TagInspired, TagAmused, TagTrusting, TagWouldShare, TagWouldBuy,
	TagConfused, TagSkeptical, TagAnnoyed, TagConcerned, TagOffended, TagIndifferent, TagNeedsMoreInfo,
	TagSurprised, TagNostalgic, TagCurious,
}

var vocabulary = func() map[Tag]bool {
	m := make(map[Tag]bool, len(Vocabulary))
	for _, t := range Vocabulary {
		m[t] = true
	}
	return m
}()

// Known reports whether t belongs to the controlled vocabulary.
func (t Tag) Known() bool { return vocabulary[t] }

// Scores value object. Every field lies in [MinScore, MaxScore].
type Scores struct {
	Sentiment     int `json:"sentiment"`
	Engagement    int `json:"engagement"`
	Share         int `json:"share"`
	Comprehension int `json:"comprehension"`
}

// DefaultScores is used whenever a reply's score block is missing or unparsable.
func DefaultScores() Scores {
	return Scores{
		Sentiment:     NeutralScore,
		Engagement:    NeutralScore,
		Share:         NeutralScore,
		Comprehension: NeutralScore,
	}
}

// DefaultTags accompany DefaultScores.
func DefaultTags() []Tag { return []Tag{TagNeedsMoreInfo} }

// Reaction is the parsed reply for one variant.
type Reaction struct {
	Text   string `json:"text"`
	Scores Scores `json:"scores"`
	Tags   []Tag  `json:"tags"`
	// Fallback is set when defaults replaced an unparsable score block.
	Fallback bool `json:"fallback"`
}

// VariantResponse is one (run, variant) reaction row. Append-only.
type VariantResponse struct {
	ID        string             `json:"id"`
	RunID     RunID              `json:"run_id"`
	VariantID variants.VariantID `json:"variant_id"`
	Text      string             `json:"text"`
	Scores    Scores             `json:"scores"`
	Tags      []Tag              `json:"tags"`
	LatencyMS int64              `json:"latency_ms"`
	Model     string             `json:"model"`
	CreatedAt time.Time          `json:"created_at"`
}
