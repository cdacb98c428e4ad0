package variants

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bryanwahyu/synthpanel/internal/application"
	domain "github.com/bryanwahyu/synthpanel/internal/domain/variants"
	"github.com/bryanwahyu/synthpanel/internal/logger"
)

// Service implements use-cases untuk persona dan variant
type Service struct {
	Personas  domain.PersonaRepository
	Repo      domain.Repository
	Generator domain.Generator
	Clock     application.Clock
	Log       *logger.Logger
	// MaxVariants caps a single generation request.
	MaxVariants int
}

type SavePersonaCommand struct {
	ProjectID   string
	Name        string
	Profile     string
	VoiceSample string
}

// SavePersona stores a new base persona.
func (s *Service) SavePersona(ctx context.Context, cmd SavePersonaCommand) (*domain.Persona, error) {
	if strings.TrimSpace(cmd.Name) == "" || strings.TrimSpace(cmd.Profile) == "" {
		return nil, fmt.Errorf("%w: persona name and profile are required", application.ErrInvalidInput)
	}
	p := &domain.Persona{
		ID:          domain.PersonaID(uuid.NewString()),
		ProjectID:   cmd.ProjectID,
		Name:        strings.TrimSpace(cmd.Name),
		Profile:     cmd.Profile,
		VoiceSample: cmd.VoiceSample,
		CreatedAt:   s.Clock.Now().UTC(),
	}
	if err := s.Personas.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save persona: %w", err)
	}
	return p, nil
}

func (s *Service) GetPersona(ctx context.Context, project string, id domain.PersonaID) (*domain.Persona, error) {
	return s.Personas.Get(ctx, project, id)
}

type GenerateCommand struct {
	ProjectID string
	PersonaID domain.PersonaID
	Count     int
	Diversity domain.DiversityConfig
}

type GenerateResult struct {
	PersonaID domain.PersonaID         `json:"persona_id"`
	Requested int                      `json:"requested"`
	Generated int                      `json:"generated"`
	Shortfall int                      `json:"shortfall"`
	Dropped   int                      `json:"dropped"`
	Model     string                   `json:"model"`
	Variants  []*domain.VariantProfile `json:"variants"`
}

// GenerateForPersona asks the generator for cmd.Count variants and replaces
// the persona's previous set with whatever came back. A failed generation
// leaves the previous set untouched.
func (s *Service) GenerateForPersona(ctx context.Context, cmd GenerateCommand) (GenerateResult, error) {
	if cmd.Count <= 0 || (s.MaxVariants > 0 && cmd.Count > s.MaxVariants) {
		return GenerateResult{}, fmt.Errorf("%w: count must be between 1 and %d", application.ErrInvalidInput, s.MaxVariants)
	}
	persona, err := s.Personas.Get(ctx, cmd.ProjectID, cmd.PersonaID)
	if err != nil {
		return GenerateResult{}, err
	}

	batch, err := s.Generator.GenerateVariants(ctx, persona, cmd.Count, cmd.Diversity.WithDefaults())
	if err != nil {
		s.log().Error("variant generation failed", "persona_id", persona.ID, "requested", cmd.Count, "error", err)
		return GenerateResult{}, err
	}

	now := s.Clock.Now().UTC()
	for i, v := range batch.Variants {
		v.ID = domain.VariantID(uuid.NewString())
		v.PersonaID = persona.ID
		v.Index = i
		v.CreatedAt = now
	}
	if err := s.Repo.ReplaceForPersona(ctx, persona.ID, batch.Variants); err != nil {
		return GenerateResult{}, fmt.Errorf("replace variants: %w", err)
	}

	res := GenerateResult{
		PersonaID: persona.ID,
		Requested: cmd.Count,
		Generated: len(batch.Variants),
		Shortfall: batch.Shortfall(),
		Dropped:   batch.Dropped,
		Model:     batch.Model,
		Variants:  batch.Variants,
	}
	if res.Shortfall > 0 {
		s.log().Warn("variant generation shortfall", "persona_id", persona.ID, "requested", res.Requested, "generated", res.Generated, "dropped", res.Dropped)
	}
	return res, nil
}

func (s *Service) ListVariants(ctx context.Context, project string, id domain.PersonaID) ([]*domain.VariantProfile, error) {
	if _, err := s.Personas.Get(ctx, project, id); err != nil {
		return nil, err
	}
	return s.Repo.ListByPersona(ctx, id)
}

func (s *Service) log() *logger.Logger {
	if s.Log == nil {
		return logger.Nop()
	}
	return s.Log
}
