// Package panel is the Generative Response Service: variant generation,
// per-variant reactions and theme summaries on top of one ai.Client.
package panel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/synthpanel/internal/domain/aggregate"
	"github.com/bryanwahyu/synthpanel/internal/domain/ai"
	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
	"github.com/bryanwahyu/synthpanel/internal/infra/ai/prompt"
	"github.com/bryanwahyu/synthpanel/internal/logger"
)

const (
	reactionMaxTokens = 700
	themesMaxTokens   = 1500
)

type Generator struct {
	Client ai.Client
	Log    *logger.Logger
	// Timeout bounds each provider call; zero means no extra bound.
	Timeout time.Duration
}

func (g *Generator) complete(ctx context.Context, req ai.Request) (ai.Completion, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	return g.Client.Complete(ctx, req)
}

func New(client ai.Client, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{Client: client, Log: log.With("service", "PanelGenerator", "model", client.Model())}
}

// GenerateVariants makes one generator call and normalizes the answer.
// An answer with no usable variant is a *variants.GenerationError.
func (g *Generator) GenerateVariants(ctx context.Context, p *variants.Persona, count int, cfg variants.DiversityConfig) (*variants.Batch, error) {
	genErr := func(kind variants.FailureKind, keys []string, err error) error {
		return &variants.GenerationError{
			Kind:      kind,
			Model:     g.Client.Model(),
			PersonaID: p.ID,
			APIKeySet: g.Client.Configured(),
			Keys:      keys,
			Err:       err,
		}
	}
	if !g.Client.Configured() {
		return nil, genErr(variants.KindNotConfigured, nil, ai.ErrNotConfigured)
	}

	out, err := g.complete(ctx, ai.Request{
		System: prompt.VariantsSystemPrompt(),
		Prompt: prompt.VariantsUserPrompt(p, count, cfg),
		JSON:   true,
	})
	switch {
	case errors.Is(err, ai.ErrEmptyCompletion):
		return nil, genErr(variants.KindEmpty, nil, err)
	case err != nil:
		return nil, genErr(variants.KindProvider, nil, err)
	}

	norm, err := variants.Normalize(out.Text, p.ID, count)
	if err != nil {
		return nil, genErr(variants.KindMalformed, nil, err)
	}
	if len(norm.Variants) == 0 {
		kind := variants.KindEmpty
		if norm.Shape == variants.OutputNoList {
			kind = variants.KindWrongShape
		}
		return nil, genErr(kind, norm.Keys, nil)
	}
	g.Log.Debug("variants generated", "persona_id", p.ID, "requested", count, "got", len(norm.Variants), "dropped", norm.Dropped, "shape", norm.Shape)
	return &variants.Batch{
		Variants:  norm.Variants,
		Requested: count,
		Dropped:   norm.Dropped,
		Model:     out.Model,
	}, nil
}

// GenerateReaction returns provider errors as-is; an empty or unparsable
// reply becomes the neutral default reaction.
func (g *Generator) GenerateReaction(ctx context.Context, req runs.ReactionRequest) (runs.ReactionResult, error) {
	var images []ai.Image
	for _, a := range req.Attachments {
		if a.Kind == runs.AttachmentImage && len(a.Data) > 0 {
			images = append(images, ai.Image{MimeType: a.MimeType, Data: a.Data})
		}
	}
	out, err := g.complete(ctx, ai.Request{
		System:    prompt.ReactionSystemPrompt(),
		Prompt:    prompt.ReactionUserPrompt(req),
		Images:    images,
		MaxTokens: reactionMaxTokens,
	})
	if errors.Is(err, ai.ErrEmptyCompletion) {
		g.Log.Warn("empty reaction, using defaults", "variant_id", req.Variant.ID)
		return runs.ReactionResult{Reaction: runs.ParseReaction(""), Model: g.Client.Model()}, nil
	}
	if err != nil {
		return runs.ReactionResult{}, fmt.Errorf("reaction for variant %s: %w", req.Variant.ID, err)
	}
	reaction := runs.ParseReaction(out.Text)
	if reaction.Fallback {
		g.Log.Warn("unparsable score block, using defaults", "variant_id", req.Variant.ID)
	}
	return runs.ReactionResult{Reaction: reaction, Model: out.Model, LatencyMS: out.LatencyMS}, nil
}

func (g *Generator) SummarizeThemes(ctx context.Context, concept string, sample []aggregate.SampledResponse) (aggregate.Themes, error) {
	user, err := prompt.ThemesUserPrompt(concept, sample)
	if err != nil {
		return aggregate.Themes{}, err
	}
	out, err := g.complete(ctx, ai.Request{
		System:    prompt.ThemesSystemPrompt(),
		Prompt:    user,
		JSON:      true,
		MaxTokens: themesMaxTokens,
	})
	if err != nil {
		return aggregate.Themes{}, fmt.Errorf("summarize themes: %w", err)
	}
	return aggregate.ParseThemes(out.Text)
}

var (
	_ variants.Generator        = (*Generator)(nil)
	_ runs.ReactionGenerator    = (*Generator)(nil)
	_ aggregate.ThemeSummarizer = (*Generator)(nil)
)
