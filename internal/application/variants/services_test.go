package variants

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/synthpanel/internal/application"
	domain "github.com/bryanwahyu/synthpanel/internal/domain/variants"
	"github.com/bryanwahyu/synthpanel/internal/infra/db/memory"
)

type fakeGenerator struct {
	batch *domain.Batch
	err   error
	got   domain.DiversityConfig
}

func (f *fakeGenerator) GenerateVariants(_ context.Context, _ *domain.Persona, count int, cfg domain.DiversityConfig) (*domain.Batch, error) {
	f.got = cfg
	if f.err != nil {
		return nil, f.err
	}
	f.batch.Requested = count
	return f.batch, nil
}

func newService(gen domain.Generator) (*Service, *memory.Store) {
	store := memory.NewStore()
	return &Service{
		Personas:    store.Personas(),
		Repo:        store.Variants(),
		Generator:   gen,
		Clock:       application.SystemClock{},
		MaxVariants: 50,
	}, store
}

func TestGenerateReplacesAndReportsShortfall(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{batch: &domain.Batch{
		Variants: []*domain.VariantProfile{{Name: "A", Age: 20}, {Name: "B", Age: 40}},
		Dropped:  1,
		Model:    "m",
	}}
	svc, store := newService(gen)
	p, err := svc.SavePersona(ctx, SavePersonaCommand{ProjectID: "acme", Name: "Gen Z gamer", Profile: "plays a lot"})
	require.NoError(t, err)
	require.NoError(t, store.Variants().ReplaceForPersona(ctx, p.ID, []*domain.VariantProfile{{ID: "old"}}))

	res, err := svc.GenerateForPersona(ctx, GenerateCommand{ProjectID: "acme", PersonaID: p.ID, Count: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, 2, res.Generated)
	assert.Equal(t, 1, res.Shortfall)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, domain.ShapeNormal, gen.got.Attitude)

	list, err := svc.ListVariants(ctx, "acme", p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for i, v := range list {
		assert.NotEmpty(t, v.ID)
		assert.NotEqual(t, domain.VariantID("old"), v.ID)
		assert.Equal(t, p.ID, v.PersonaID)
		assert.Equal(t, i, v.Index)
	}
}

func TestGenerateFailureKeepsPreviousSet(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{err: &domain.GenerationError{Kind: domain.KindEmpty}}
	svc, store := newService(gen)
	p, err := svc.SavePersona(ctx, SavePersonaCommand{ProjectID: "acme", Name: "n", Profile: "p"})
	require.NoError(t, err)
	require.NoError(t, store.Variants().ReplaceForPersona(ctx, p.ID, []*domain.VariantProfile{{ID: "old"}}))

	_, err = svc.GenerateForPersona(ctx, GenerateCommand{ProjectID: "acme", PersonaID: p.ID, Count: 3})
	var ge *domain.GenerationError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, domain.KindEmpty, ge.Kind)

	list, _ := store.Variants().ListByPersona(ctx, p.ID)
	assert.Len(t, list, 1)
}

func TestGenerateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(&fakeGenerator{})

	_, err := svc.GenerateForPersona(ctx, GenerateCommand{ProjectID: "acme", PersonaID: "x", Count: 0})
	assert.ErrorIs(t, err, application.ErrInvalidInput)
	_, err = svc.GenerateForPersona(ctx, GenerateCommand{ProjectID: "acme", PersonaID: "x", Count: 51})
	assert.ErrorIs(t, err, application.ErrInvalidInput)
	_, err = svc.GenerateForPersona(ctx, GenerateCommand{ProjectID: "acme", PersonaID: "missing", Count: 2})
	assert.ErrorIs(t, err, domain.ErrPersonaNotFound)

	_, err = svc.SavePersona(ctx, SavePersonaCommand{ProjectID: "acme", Name: " "})
	assert.ErrorIs(t, err, application.ErrInvalidInput)
}
