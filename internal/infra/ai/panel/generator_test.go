package panel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/synthpanel/internal/domain/aggregate"
	"github.com/bryanwahyu/synthpanel/internal/domain/ai"
	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

type scriptedClient struct {
	reply      string
	err        error
	configured bool
	got        ai.Request
}

func (c *scriptedClient) Complete(_ context.Context, r ai.Request) (ai.Completion, error) {
	c.got = r
	if c.err != nil {
		return ai.Completion{}, c.err
	}
	return ai.Completion{Text: c.reply, Model: "scripted-1", LatencyMS: 40}, nil
}
func (c *scriptedClient) Model() string    { return "scripted-1" }
func (c *scriptedClient) Configured() bool { return c.configured }

var persona = &variants.Persona{ID: "p1", Name: "Weekend cyclist", Profile: "Rides on Sundays", VoiceSample: "Honestly? Love a good hill."}

func TestGenerateVariantsKinds(t *testing.T) {
	tests := []struct {
		name   string
		client *scriptedClient
		kind   variants.FailureKind
		keys   []string
	}{
		{"no key", &scriptedClient{}, variants.KindNotConfigured, nil},
		{"provider", &scriptedClient{configured: true, err: errors.New("503")}, variants.KindProvider, nil},
		{"malformed", &scriptedClient{configured: true, reply: "sorry!"}, variants.KindMalformed, nil},
		{"wrong shape", &scriptedClient{configured: true, reply: `{"foo":"bar"}`}, variants.KindWrongShape, []string{"foo"}},
		{"empty", &scriptedClient{configured: true, reply: `{"variants":[{"name":"x"}]}`}, variants.KindEmpty, []string{"variants"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.client, nil).GenerateVariants(context.Background(), persona, 3, variants.DiversityConfig{}.WithDefaults())
			var ge *variants.GenerationError
			require.True(t, errors.As(err, &ge), "got %v", err)
			assert.Equal(t, tc.kind, ge.Kind)
			assert.Equal(t, tc.keys, ge.Keys)
			assert.Equal(t, variants.PersonaID("p1"), ge.PersonaID)
			assert.Equal(t, tc.client.configured, ge.APIKeySet)
		})
	}
}

func TestGenerateVariantsQuotaStaysDetectable(t *testing.T) {
	c := &scriptedClient{configured: true, err: ai.ErrQuotaExceeded}
	_, err := New(c, nil).GenerateVariants(context.Background(), persona, 3, variants.DiversityConfig{})
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
}

func TestGenerateVariantsOK(t *testing.T) {
	c := &scriptedClient{configured: true, reply: `{"variants":[{"name":"A","age":30,"primary_platform":"Strava"},{"name":"B"}]}`}
	b, err := New(c, nil).GenerateVariants(context.Background(), persona, 3, variants.DiversityConfig{Attitude: variants.ShapeSkewNegative, AgeSpread: 5, Platforms: []string{"Strava"}})
	require.NoError(t, err)
	assert.Len(t, b.Variants, 1)
	assert.Equal(t, 1, b.Dropped)
	assert.Equal(t, 2, b.Shortfall())
	assert.True(t, c.got.JSON)
	assert.Contains(t, c.got.Prompt, "exactly 3 variants")
	assert.Contains(t, c.got.Prompt, "skew negative")
	assert.Contains(t, c.got.Prompt, "one of: Strava")
}

func reactionReq() runs.ReactionRequest {
	return runs.ReactionRequest{
		Variant: &variants.VariantProfile{ID: "v1", Name: "Ana", Age: 27, PrimaryPlatform: "Instagram", EngagementTier: variants.TierLight, AttitudeScore: 4},
		Persona: persona,
		Concept: runs.Concept{Text: "Carbon bike for 999", FocusModifier: "price"},
		Attachments: []runs.Attachment{
			{Kind: runs.AttachmentImage, Name: "bike.jpg", MimeType: "image/jpeg", Data: []byte{1}},
			{Kind: runs.AttachmentPDFText, Name: "datasheet.pdf", Text: "Weight 7.1kg"},
		},
	}
}

func TestGenerateReaction(t *testing.T) {
	c := &scriptedClient{configured: true, reply: "Too pricey.\n---SCORES---\n{\"sentiment\":3,\"engagement\":4,\"share\":2,\"comprehension\":8,\"tags\":[\"skeptical\"]}"}
	res, err := New(c, nil).GenerateReaction(context.Background(), reactionReq())
	require.NoError(t, err)
	assert.Equal(t, "Too pricey.", res.Reaction.Text)
	assert.Equal(t, runs.Scores{Sentiment: 3, Engagement: 4, Share: 2, Comprehension: 8}, res.Reaction.Scores)
	assert.Equal(t, "scripted-1", res.Model)

	require.Len(t, c.got.Images, 1)
	assert.Equal(t, "image/jpeg", c.got.Images[0].MimeType)
	assert.Contains(t, c.got.Prompt, "Weight 7.1kg")
	assert.Contains(t, c.got.Prompt, "Pay particular attention to: price")
	assert.Contains(t, c.got.Prompt, "Love a good hill")
	assert.True(t, strings.Contains(c.got.System, runs.ScoreDelimiter))
}

func TestGenerateReactionDefaultsAndErrors(t *testing.T) {
	c := &scriptedClient{configured: true, err: ai.ErrEmptyCompletion}
	res, err := New(c, nil).GenerateReaction(context.Background(), reactionReq())
	require.NoError(t, err)
	assert.Equal(t, runs.DefaultScores(), res.Reaction.Scores)

	c = &scriptedClient{configured: true, err: errors.New("connection reset")}
	_, err = New(c, nil).GenerateReaction(context.Background(), reactionReq())
	assert.Error(t, err)
}

func TestSummarizeThemes(t *testing.T) {
	c := &scriptedClient{configured: true, reply: `{"positive_themes":[{"theme":"Light","frequency":4}],"concerns":[],"unexpected":[],"quotes":["so light"]}`}
	sample := []aggregate.SampledResponse{{AgeBand: "25-34", Platform: "Instagram", AttitudeTier: "neutral", Text: "so light", Sentiment: 8}}
	th, err := New(c, nil).SummarizeThemes(context.Background(), "Carbon bike", sample)
	require.NoError(t, err)
	assert.Equal(t, []aggregate.ThemeCount{{Theme: "Light", Frequency: 4}}, th.PositiveThemes)
	assert.Contains(t, c.got.Prompt, `"response":"so light"`)

	c = &scriptedClient{configured: true, reply: "nope"}
	_, err = New(c, nil).SummarizeThemes(context.Background(), "x", sample)
	assert.Error(t, err)
}
