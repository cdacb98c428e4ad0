package runs

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

// ScoreDelimiter separates the narrative from the structured score block.
const ScoreDelimiter = "---SCORES---"

// ParseReaction splits a reply into narrative and scores. It never fails:
// a missing or unparsable block yields DefaultScores and DefaultTags.
func ParseReaction(reply string) Reaction {
	reply = strings.TrimSpace(reply)
	idx := strings.LastIndex(reply, ScoreDelimiter)
	if idx < 0 {
		return fallbackReaction(reply)
	}
	narrative := strings.TrimSpace(reply[:idx])
	block := variants.StripFences(reply[idx+len(ScoreDelimiter):])

	open, end := strings.IndexByte(block, '{'), strings.LastIndexByte(block, '}')
	if open < 0 || end <= open {
		return fallbackReaction(narrative)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(block[open:end+1]), &m); err != nil {
		return fallbackReaction(narrative)
	}

	sc := Scores{
		Sentiment:     scoreField(m, "sentiment"),
		Engagement:    scoreField(m, "engagement", "engagement_likelihood"),
		Share:         scoreField(m, "share", "share_likelihood"),
		Comprehension: scoreField(m, "comprehension"),
	}
	return Reaction{Text: narrative, Scores: sc, Tags: NormalizeTags(m["tags"])}
}

// NormalizeTags keeps known vocabulary entries, lower-cased and de-duplicated.
// An empty result becomes DefaultTags.
func NormalizeTags(v any) []Tag {
	raw, _ := v.([]any)
	seen := make(map[Tag]bool, len(raw))
	out := make([]Tag, 0, len(raw))
	for _, it := range raw {
		s, ok := it.(string)
		if !ok {
			continue
		}
		t := Tag(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
		if !t.Known() || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return DefaultTags()
	}
	return out
}

// ClampScore forces v into [MinScore, MaxScore].
func ClampScore(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

func fallbackReaction(text string) Reaction {
	return Reaction{Text: text, Scores: DefaultScores(), Tags: DefaultTags(), Fallback: true}
}

func scoreField(m map[string]any, keys ...string) int {
	for _, k := range keys {
		switch t := m[k].(type) {
		case float64:
			if !math.IsNaN(t) && !math.IsInf(t, 0) {
				return ClampScore(int(math.Round(t)))
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return ClampScore(int(math.Round(f)))
			}
		}
	}
	return NeutralScore
}
