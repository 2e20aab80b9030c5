// Package parser provides pipeline definition parsing and input interpolation.
package parser

import (
	"yqhp/crew-engine/pkg/types"
)

// Parser defines the interface for parsing pipeline definitions.
type Parser interface {
	// Parse parses a pipeline definition from bytes.
	Parse(data []byte) (*types.Pipeline, error)

	// ParseFile parses a pipeline definition from a file.
	ParseFile(path string) (*types.Pipeline, error)
}

// VariableResolver defines the interface for resolving variable references.
type VariableResolver interface {
	// Resolve resolves a variable reference and returns its value.
	Resolve(ref string) (any, error)
}
