package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/synthpanel/internal/domain/aggregate"
)

// ThemesSystemPrompt fixes the output schema for theme extraction.
func ThemesSystemPrompt() string {
	return `You are a qualitative research analyst summarizing a synthetic focus group. You must produce one valid JSON object only (no markdown, no commentary). Do not include code fences.

Requirements:
- positive_themes, concerns and unexpected are arrays ranked by frequency, at most 6 items each.
- frequency is the number of responses that express the theme.
- quotes holds 3 to 5 short verbatim excerpts from the responses, each with an attribution built only from the given attributes (for example "25-34, TikTok").

Schema (example with empty values):
{
  "positive_themes": [{"theme": "<string>", "frequency": 0}],
  "concerns": [{"theme": "<string>", "frequency": 0}],
  "unexpected": [{"theme": "<string>", "frequency": 0}],
  "quotes": [{"text": "<string>", "attribution": "<string>"}]
}`
}

// ThemesUserPrompt embeds the concept and the anonymized sample as JSON.
func ThemesUserPrompt(concept string, sample []aggregate.SampledResponse) (string, error) {
	raw, err := json.Marshal(sample)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Concept tested:\n%s\n\n%d panel responses (JSON):\n%s\n\nRespond with the JSON per schema.", concept, len(sample), raw), nil
}
