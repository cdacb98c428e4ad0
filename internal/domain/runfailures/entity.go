package runfailures

import (
	"context"
	"time"
)

// Class identifies the cause class of a run failure.
type Class string

const (
	ClassMalformedOutput Class = "malformed_output"
	ClassEmptyGeneration Class = "empty_generation"
	ClassProvider        Class = "provider_error"
	ClassSummarizer      Class = "summarizer_error"
	ClassStorage         Class = "storage_error"
)

// Failure represents a persisted failure context entry for a run
type Failure struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Class       Class     `json:"class"`
	Phase       string    `json:"phase,omitempty"` // start | batch | aggregate
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}

// Repository defines persistence for run failures
type Repository interface {
	Save(ctx context.Context, f *Failure) error
	ListByRun(ctx context.Context, runID string, limit int) ([]*Failure, error)
}
