package schema

import (
	"fmt"
	"strings"
)

// Violation describes a single field that failed validation.
type Violation struct {
	Field   string // Field name, empty for document-level problems
	Message string // What went wrong
}

// Error implements the error interface.
func (v *Violation) Error() string {
	if v.Field != "" {
		return fmt.Sprintf("field '%s': %s", v.Field, v.Message)
	}
	return v.Message
}

// ViolationError aggregates every violation found in one output, so the
// caller reports all offending fields at once instead of the first.
type ViolationError struct {
	Violations []*Violation
}

// Error implements the error interface.
func (e *ViolationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("output violates schema: %s", strings.Join(msgs, "; "))
}

// Fields returns the names of all offending fields.
func (e *ViolationError) Fields() []string {
	var names []string
	for _, v := range e.Violations {
		if v.Field != "" {
			names = append(names, v.Field)
		}
	}
	return names
}

// IsViolation checks if the error is a schema violation.
func IsViolation(err error) bool {
	_, ok := err.(*ViolationError)
	return ok
}
