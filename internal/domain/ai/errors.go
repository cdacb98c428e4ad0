package ai

import "errors"

var (
	// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")
	// ErrNotConfigured indicates the provider has no API key.
	ErrNotConfigured = errors.New("ai provider not configured")
	// ErrEmptyCompletion indicates the provider answered with no content.
	ErrEmptyCompletion = errors.New("ai provider returned no content")
)
