package runs

import (
	"context"

	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, r *TestRun) error
	Get(ctx context.Context, project string, id RunID) (*TestRun, error)
	// UpdateStatus persists status and timestamps of r.
	UpdateStatus(ctx context.Context, r *TestRun) error
	// UpdateCompleted raises the completed counter; it never lowers it.
	UpdateCompleted(ctx context.Context, id RunID, completed int) error
	Delete(ctx context.Context, project string, id RunID) error
}

// ResponseRepository stores append-only VariantResponse rows.
type ResponseRepository interface {
	Insert(ctx context.Context, r *VariantResponse) error
	ListByRun(ctx context.Context, id RunID) ([]*VariantResponse, error)
	CountByRun(ctx context.Context, id RunID) (int, error)
	DeleteByRun(ctx context.Context, id RunID) error
}

// ProgressStore is the Progress Channel: a keyed map of run progress with
// a single writer per run and any number of readers.
type ProgressStore interface {
	Set(ctx context.Context, id RunID, p Progress) error
	Get(ctx context.Context, id RunID) (Progress, bool, error)
	Remove(ctx context.Context, id RunID) error
}

// AttachmentStore port (interface untuk penyimpanan lampiran)
type AttachmentStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// ReactionRequest is everything the generator needs for one variant.
type ReactionRequest struct {
	Variant     *variants.VariantProfile
	Persona     *variants.Persona
	Concept     Concept
	Attachments []Attachment
}

// ReactionResult is a parsed reaction plus call metadata.
type ReactionResult struct {
	Reaction  Reaction
	Model     string
	LatencyMS int64
}

// ReactionGenerator produces one variant's reaction to a concept.
type ReactionGenerator interface {
	GenerateReaction(ctx context.Context, req ReactionRequest) (ReactionResult, error)
}
