package application

import "errors"

// ErrInvalidInput marks caller mistakes (bad ids, counts, payloads).
var ErrInvalidInput = errors.New("invalid input")
