package aggregate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

const MaxQuotes = 5

var (
	positiveTags = map[runs.Tag]bool{
		runs.TagExcited: true, runs.TagIntrigued: true, runs.TagInspired: true, runs.TagAmused: true,
		runs.TagTrusting: true, runs.TagWouldShare: true, runs.TagWouldBuy: true,
	}
	concernTags = map[runs.Tag]bool{
		runs.TagConfused: true, runs.TagSkeptical: true, runs.TagAnnoyed: true, runs.TagConcerned: true,
		runs.TagOffended: true, runs.TagIndifferent: true, runs.TagNeedsMoreInfo: true,
	}
)

// LocalThemes ranks reaction tags by frequency across every observation and
// files them as positive, concern or unexpected. No external call.
func LocalThemes(obs []Observation) TagThemes {
	freq := map[runs.Tag]int{}
	for _, o := range obs {
		if o.Response == nil {
			continue
		}
		for _, t := range o.Response.Tags {
			freq[t]++
		}
	}
	var out TagThemes
	for t, n := range freq {
		tc := ThemeCount{Theme: string(t), Frequency: n}
		switch {
		case positiveTags[t]:
			out.Positive = append(out.Positive, tc)
		case concernTags[t]:
			out.Concerns = append(out.Concerns, tc)
		default:
			out.Unexpected = append(out.Unexpected, tc)
		}
	}
	rank(out.Positive)
	rank(out.Concerns)
	rank(out.Unexpected)
	if out.Positive == nil {
		out.Positive = []ThemeCount{}
	}
	if out.Concerns == nil {
		out.Concerns = []ThemeCount{}
	}
	if out.Unexpected == nil {
		out.Unexpected = []ThemeCount{}
	}
	return out
}

// EmptyThemes is the best-effort result when the summarizer is unavailable.
func EmptyThemes(tags TagThemes) Themes {
	return Themes{
		PositiveThemes: []ThemeCount{},
		Concerns:       []ThemeCount{},
		Unexpected:     []ThemeCount{},
		Quotes:         []Quote{},
		Source:         SourceTags,
		Tags:           tags,
	}
}

// ParseThemes decodes a summarizer reply. Lists come back ranked by
// frequency; quotes may be plain strings or {text, attribution} objects.
func ParseThemes(text string) (Themes, error) {
	var doc struct {
		Positive   []ThemeCount      `json:"positive_themes"`
		Concerns   []ThemeCount      `json:"concerns"`
		Unexpected []ThemeCount      `json:"unexpected"`
		Findings   []ThemeCount      `json:"unexpected_findings"`
		Quotes     []json.RawMessage `json:"quotes"`
	}
	if err := json.Unmarshal([]byte(variants.StripFences(text)), &doc); err != nil {
		return Themes{}, fmt.Errorf("parse themes: %w", err)
	}
	th := Themes{
		PositiveThemes: clean(doc.Positive),
		Concerns:       clean(doc.Concerns),
		Unexpected:     clean(append(doc.Unexpected, doc.Findings...)),
		Quotes:         []Quote{},
		Source:         SourceSummarizer,
	}
	for _, raw := range doc.Quotes {
		if len(th.Quotes) == MaxQuotes {
			break
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if s = strings.TrimSpace(s); s != "" {
				th.Quotes = append(th.Quotes, Quote{Text: s})
			}
			continue
		}
		var q Quote
		if json.Unmarshal(raw, &q) == nil && strings.TrimSpace(q.Text) != "" {
			th.Quotes = append(th.Quotes, q)
		}
	}
	return th, nil
}

func clean(in []ThemeCount) []ThemeCount {
	out := make([]ThemeCount, 0, len(in))
	for _, t := range in {
		t.Theme = strings.TrimSpace(t.Theme)
		if t.Theme == "" {
			continue
		}
		if t.Frequency < 0 {
			t.Frequency = 0
		}
		out = append(out, t)
	}
	rank(out)
	return out
}

func rank(ts []ThemeCount) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].Frequency != ts[j].Frequency {
			return ts[i].Frequency > ts[j].Frequency
		}
		return ts[i].Theme < ts[j].Theme
	})
}
