package testplan

import (
	"fmt"
	"strings"
)

// ValidationError is returned when a document misses a required field or a
// field has the wrong structure.
type ValidationError struct {
	File   string
	Field  string
	Reason string
}

// NewValidationError ...
func NewValidationError(file, field, reason string) error {
	return &ValidationError{File: file, Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid")
	if e.File != "" {
		fmt.Fprintf(&b, " %s", e.File)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (%s)", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

// CyclicImportError is returned when a testplan transitively imports itself.
// Cycle starts and ends with the re-entered file.
type CyclicImportError struct {
	Cycle []string
}

func (e *CyclicImportError) Error() string {
	return fmt.Sprintf("circular testplan import: %s", strings.Join(e.Cycle, " -> "))
}
