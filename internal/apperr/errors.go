// Package apperr defines the error taxonomy shared by storage, validation and the
// content service.
package apperr

import (
	"errors"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidPath      = errors.New("invalid path")
	ErrValidationFailed = errors.New("validation failed")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrIOFailure        = errors.New("io failure")
	ErrToolUnavailable  = errors.New("upstream tool unavailable")
	ErrAlreadyExists    = errors.New("already exists")
	ErrConflict         = errors.New("conflict")
)

// ValidationError carries every rule an entity violated.
type ValidationError struct {
	Prefix string
	Rules  []string
}

func (e *ValidationError) Error() string {
	p := e.Prefix
	if p == "" {
		p = "Validation failed"
	}
	return p + ": " + strings.Join(e.Rules, ", ")
}

// Unwrap lets errors.Is match ErrValidationFailed.
func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
