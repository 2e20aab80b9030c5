package orchestrator

import (
	"fmt"
	"strings"
)

// CycleError indicates the task graph contains a dependency cycle.
type CycleError struct {
	Tasks []string // Tasks involved in (or downstream of) the cycle
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle involving tasks: %s", strings.Join(e.Tasks, ", "))
}

// ValidationError represents an invalid pipeline definition.
type ValidationError struct {
	Field   string // Field that failed validation
	Message string // Error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
