package variants

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPersonaNotFound is returned when the base persona does not exist.
var ErrPersonaNotFound = errors.New("persona not found")

// FailureKind classifies why a generation produced nothing usable.
type FailureKind string

const (
	KindNotConfigured FailureKind = "not_configured" // provider has no API key
	KindProvider      FailureKind = "provider"       // transport/provider error
	KindMalformed     FailureKind = "malformed"      // output did not parse
	KindWrongShape    FailureKind = "wrong_shape"    // parsed, but no list anywhere
	KindEmpty         FailureKind = "empty"          // list present, no usable element
)

// GenerationError carries the inputs that produced an unusable generation
// so operators can tell the failure classes apart.
type GenerationError struct {
	Kind      FailureKind
	Model     string
	PersonaID PersonaID
	APIKeySet bool
	Keys      []string
	Err       error
}

func (e *GenerationError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case KindEmpty, KindWrongShape:
		b.WriteString("generator returned no usable variants")
	case KindNotConfigured:
		b.WriteString("generator is not configured")
	case KindMalformed:
		b.WriteString("generator returned malformed output")
	default:
		b.WriteString("generator call failed")
	}
	fmt.Fprintf(&b, " (kind=%s model=%s persona=%s api_key_set=%t", e.Kind, e.Model, e.PersonaID, e.APIKeySet)
	if len(e.Keys) > 0 {
		fmt.Fprintf(&b, " keys=%s", strings.Join(e.Keys, ","))
	}
	b.WriteString(")")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GenerationError) Unwrap() error { return e.Err }
