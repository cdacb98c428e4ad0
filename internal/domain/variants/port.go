package variants

import "context"

// Repository port for variant profiles
type Repository interface {
	// ReplaceForPersona deletes every variant of the persona and inserts vs.
	ReplaceForPersona(ctx context.Context, persona PersonaID, vs []*VariantProfile) error
	ListByPersona(ctx context.Context, persona PersonaID) ([]*VariantProfile, error)
	ListByPersonas(ctx context.Context, personas []PersonaID) ([]*VariantProfile, error)
	GetMany(ctx context.Context, ids []VariantID) ([]*VariantProfile, error)
}

// PersonaRepository port for base personas
type PersonaRepository interface {
	Save(ctx context.Context, p *Persona) error
	Get(ctx context.Context, project string, id PersonaID) (*Persona, error)
	GetMany(ctx context.Context, ids []PersonaID) ([]*Persona, error)
}

// Generator produces candidate variants for a persona.
type Generator interface {
	GenerateVariants(ctx context.Context, persona *Persona, count int, cfg DiversityConfig) (*Batch, error)
}

// Batch is the normalized outcome of one generation call.
type Batch struct {
	Variants  []*VariantProfile
	Requested int
	Dropped   int
	Model     string
}

// Shortfall is how many requested variants were not produced.
func (b *Batch) Shortfall() int {
	if b == nil {
		return 0
	}
	if d := b.Requested - len(b.Variants); d > 0 {
		return d
	}
	return 0
}
