package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers match them with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Record kinds used in ValidationError.
const (
	KindSeeker = "seeker"
	KindItem   = "item"
)

// ValidationError reports a malformed or out-of-domain input record.
type ValidationError struct {
	Kind   string // KindSeeker or KindItem
	ID     int64
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %d: %s: %s", e.Kind, e.ID, e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError.
func NewValidationError(kind string, id int64, field, reason string) *ValidationError {
	return &ValidationError{Kind: kind, ID: id, Field: field, Reason: reason}
}

// ConfigurationError reports an invalid weight or tolerance setting. It is
// always fatal before scoring begins.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrConfiguration) succeed.
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}
