package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
)

// MaxAttachmentText bounds each PDF text block embedded in a reaction prompt.
const MaxAttachmentText = 8000

// ReactionSystemPrompt asks for narrative text followed by the score block.
func ReactionSystemPrompt() string {
	tags := make([]string, 0, len(runs.Vocabulary))
	for _, t := range runs.Vocabulary {
		tags = append(tags, string(t))
	}
	return fmt.Sprintf(`You are role-playing one member of a consumer panel reacting to a marketing concept. Stay in character: use the person's voice, age, platform habits and attitude. Be honest, including when you are bored, confused or annoyed.

Reply in exactly two parts:
1. Your reaction in the first person, 2 to 5 sentences, no headings.
2. A line containing only %s followed by one JSON object:
{"sentiment": <1-10>, "engagement": <1-10>, "share": <1-10>, "comprehension": <1-10>, "tags": [<1-3 tags>]}

sentiment is how you feel about it, engagement how likely you are to stop and engage, share how likely you are to pass it on, comprehension how well you understood it.
Allowed tags: %s.`, runs.ScoreDelimiter, strings.Join(tags, ", "))
}

// ReactionUserPrompt embeds the variant, its base persona and the concept.
func ReactionUserPrompt(req runs.ReactionRequest) string {
	v, p := req.Variant, req.Persona
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %d, from %s.\n", v.Name, v.Age, orUnknown(v.Location))
	fmt.Fprintf(&b, "Main platform: %s (%s user). Attitude towards the brand: %d/10.\n", v.PrimaryPlatform, v.EngagementTier, v.AttitudeScore)
	if v.DistinguishingTrait != "" {
		fmt.Fprintf(&b, "What sets you apart: %s.\n", v.DistinguishingTrait)
	}
	if v.VoiceModifier != "" {
		fmt.Fprintf(&b, "How you talk: %s.\n", v.VoiceModifier)
	}
	if p != nil {
		fmt.Fprintf(&b, "\nYou belong to the audience %q:\n%s\n", p.Name, strings.TrimSpace(p.Profile))
		if s := strings.TrimSpace(p.VoiceSample); s != "" {
			fmt.Fprintf(&b, "People like you sound like this: %q\n", s)
		}
	}

	fmt.Fprintf(&b, "\nThe concept:\n%s\n", strings.TrimSpace(req.Concept.Text))
	if f := strings.TrimSpace(req.Concept.FocusModifier); f != "" {
		fmt.Fprintf(&b, "\nPay particular attention to: %s\n", f)
	}
	for _, a := range req.Attachments {
		switch a.Kind {
		case runs.AttachmentPDFText:
			text := a.Text
			if len([]rune(text)) > MaxAttachmentText {
				text = string([]rune(text)[:MaxAttachmentText])
			}
			fmt.Fprintf(&b, "\n--- Attached document: %s ---\n%s\n--- End of document ---\n", a.Name, text)
		case runs.AttachmentImage:
			fmt.Fprintf(&b, "\n(An image is attached: %s)\n", a.Name)
		}
	}
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "somewhere"
	}
	return s
}
