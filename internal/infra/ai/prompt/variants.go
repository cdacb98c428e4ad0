package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

// VariantsSystemPrompt fixes the output schema for variant generation.
func VariantsSystemPrompt() string {
	return `You are an audience research specialist who builds synthetic focus-group panels. You must produce one valid JSON object only (no markdown, no commentary). Do not include code fences.

Requirements:
- The object has a single key "variants" holding an array.
- Every variant is a distinct individual derived from the base persona, not a copy of it.
- age is an integer between 18 and 99; attitude_score is an integer between 1 and 10.
- engagement_tier is one of: heavy, moderate, light, lapsed.
- voice_modifier describes how this person's way of speaking differs from the base persona.

Schema (example with empty values):
{
  "variants": [
    {
      "name": "<string>",
      "age": 0,
      "location": "<string>",
      "attitude_score": 0,
      "primary_platform": "<string>",
      "engagement_tier": "<heavy|moderate|light|lapsed>",
      "distinguishing_trait": "<string>",
      "voice_modifier": "<string>"
    }
  ]
}`
}

// VariantsUserPrompt describes the persona and the spread to generate.
func VariantsUserPrompt(p *variants.Persona, count int, cfg variants.DiversityConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Base persona: %s\n\n%s\n\n", p.Name, strings.TrimSpace(p.Profile))
	if s := strings.TrimSpace(p.VoiceSample); s != "" {
		fmt.Fprintf(&b, "How the base persona sounds:\n%q\n\n", s)
	}
	fmt.Fprintf(&b, "Generate exactly %d variants.\n", count)
	fmt.Fprintf(&b, "- Spread ages roughly +/-%d years around the persona's typical age.\n", cfg.AgeSpread)
	switch cfg.Attitude {
	case variants.ShapeSkewPositive:
		b.WriteString("- Attitude scores skew positive: most between 6 and 10, a few skeptics.\n")
	case variants.ShapeSkewNegative:
		b.WriteString("- Attitude scores skew negative: most between 1 and 5, a few enthusiasts.\n")
	default:
		b.WriteString("- Attitude scores follow a bell curve centred on 5-6, with a few at each extreme.\n")
	}
	if len(cfg.Platforms) > 0 {
		fmt.Fprintf(&b, "- primary_platform must be one of: %s.\n", strings.Join(cfg.Platforms, ", "))
	}
	b.WriteString("Respond with the JSON per schema.")
	return b.String()
}
