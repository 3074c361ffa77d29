package domain

import (
	"sort"
	"strings"
)

// Form field names carried by ValidationError
const (
	FieldURL             = "currentUrl"
	FieldCustomShortCode = "customShortcode"
	FieldValidityPeriod  = "validityPeriod"
)

// ValidationError maps each rejected field to a user-facing message.
// It is returned before any state change.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for field. Empty messages are ignored.
func (e *ValidationError) Add(field, message string) {
	if message == "" {
		return
	}
	e.Fields[field] = message
}

// HasErrors reports whether any field was rejected
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
