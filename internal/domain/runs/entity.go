package runs

import (
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

// RunID tipe untuk TestRun
type RunID string

// Status enum
type Status string

const (
	StatusDraft    Status = "draft"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

var (
	ErrNotFound          = errors.New("run not found")
	ErrInvalidTransition = errors.New("invalid run status transition")
	ErrNotComplete       = errors.New("run is not complete")
)

// CanTransition encodes draft -> running -> {complete | failed}.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusComplete || to == StatusFailed
	}
	return false
}

// AttachmentKind enum
type AttachmentKind string

const (
	AttachmentImage   AttachmentKind = "image"
	AttachmentPDFText AttachmentKind = "pdf_text"
)

// Attachment references a concept attachment held in the attachment store.
// Data/Text are only populated once resolved.
type Attachment struct {
	Kind     AttachmentKind `json:"kind"`
	Name     string         `json:"name"`
	MimeType string         `json:"mime_type,omitempty"`
	Key      string         `json:"key,omitempty"`
	Data     []byte         `json:"-"`
	Text     string         `json:"-"`
}

// Concept is the creative being tested.
type Concept struct {
	Text          string       `json:"text"`
	FocusModifier string       `json:"focus_modifier,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty"`
}

// TestRun is one execution of a concept against a set of variants.
type TestRun struct {
	ID          RunID                `json:"id"`
	ProjectID   string               `json:"project_id"`
	Concept     Concept              `json:"concept"`
	VariantIDs  []variants.VariantID `json:"variant_ids"`
	Status      Status               `json:"status"`
	Completed   int                  `json:"completed"`
	Total       int                  `json:"total"`
	CreatedAt   time.Time            `json:"created_at"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

// Transition moves the run to status "to" and stamps the relevant timestamp.
func (r *TestRun) Transition(to Status, at time.Time) error {
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	r.Status = to
	switch to {
	case StatusRunning:
		r.StartedAt = &at
	case StatusComplete, StatusFailed:
		r.CompletedAt = &at
	}
	return nil
}

// Progress is the observable {completed, total, status} tuple of a run.
type Progress struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Status    Status `json:"status"`
}

// Progress returns the run's current progress tuple.
func (r *TestRun) Progress() Progress {
	return Progress{Completed: r.Completed, Total: r.Total, Status: r.Status}
}
