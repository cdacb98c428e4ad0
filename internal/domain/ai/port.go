package ai

import "context"

// Image is an inline image passed to a vision-capable model.
type Image struct {
	MimeType string
	Data     []byte
}

// Request is one completion call.
type Request struct {
	System    string
	Prompt    string
	Images    []Image
	JSON      bool // ask the provider for a JSON-only reply when supported
	MaxTokens int
}

// Completion is a provider reply.
type Completion struct {
	Text      string
	Model     string
	LatencyMS int64
}

// Client is the single provider abstraction.
type Client interface {
	Complete(ctx context.Context, req Request) (Completion, error)
	Model() string
	Configured() bool
}
