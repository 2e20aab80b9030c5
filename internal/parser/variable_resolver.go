package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// variablePattern matches variable references like ${env:VAR}, ${input:name}
var variablePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// DefaultVariableResolver resolves references from the environment and
// the pipeline's declared inputs.
type DefaultVariableResolver struct {
	// Inputs holds the pipeline input values
	Inputs map[string]any
}

// NewDefaultVariableResolver creates a new DefaultVariableResolver.
func NewDefaultVariableResolver() *DefaultVariableResolver {
	return &DefaultVariableResolver{
		Inputs: make(map[string]any),
	}
}

// WithInputs sets the inputs map.
func (r *DefaultVariableResolver) WithInputs(inputs map[string]any) *DefaultVariableResolver {
	r.Inputs = inputs
	return r
}

// MergeDefaults 填入流水线文件里声明的默认输入，已有的运行时值优先。
func (r *DefaultVariableResolver) MergeDefaults(defaults map[string]any) *DefaultVariableResolver {
	if r.Inputs == nil {
		r.Inputs = make(map[string]any, len(defaults))
	}
	for k, v := range defaults {
		if _, exists := r.Inputs[k]; !exists {
			r.Inputs[k] = v
		}
	}
	return r
}

// MergeInputs 合并运行时传入的输入，运行时的值覆盖流水线文件里的默认值。
func (r *DefaultVariableResolver) MergeInputs(overrides map[string]any) *DefaultVariableResolver {
	if r.Inputs == nil {
		r.Inputs = make(map[string]any, len(overrides))
	}
	for k, v := range overrides {
		r.Inputs[k] = v
	}
	return r
}

// Resolve resolves a variable reference.
// Supported formats:
//   - ${env:VAR_NAME} - resolves from environment variables
//   - ${input:name} - resolves from pipeline inputs
//   - ${name} - resolves from pipeline inputs (shorthand)
func (r *DefaultVariableResolver) Resolve(ref string) (any, error) {
	if strings.Contains(ref, ":") {
		parts := strings.SplitN(ref, ":", 2)
		prefix := strings.ToLower(parts[0])
		key := parts[1]

		switch prefix {
		case "env":
			value, exists := os.LookupEnv(key)
			if !exists {
				return nil, NewVariableResolutionError(ref, fmt.Sprintf("environment variable '%s' not found", key), nil)
			}
			return value, nil

		case "input":
			value, exists := r.Inputs[key]
			if !exists {
				return nil, NewVariableResolutionError(ref, fmt.Sprintf("input '%s' not found", key), nil)
			}
			return value, nil

		default:
			return nil, NewVariableResolutionError(ref, fmt.Sprintf("unknown variable prefix '%s'", prefix), nil)
		}
	}

	// Shorthand: just the input name
	value, exists := r.Inputs[ref]
	if !exists {
		return nil, NewVariableResolutionError(ref, fmt.Sprintf("input '%s' not found", ref), nil)
	}
	return value, nil
}

// ResolveString resolves all variable references in a string.
func (r *DefaultVariableResolver) ResolveString(s string) (string, error) {
	var lastErr error
	result := variablePattern.ReplaceAllStringFunc(s, func(match string) string {
		ref := match[2 : len(match)-1]
		value, err := r.Resolve(ref)
		if err != nil {
			lastErr = err
			return match // Keep original on error
		}
		return fmt.Sprintf("%v", value)
	})

	if lastErr != nil {
		return "", lastErr
	}
	return result, nil
}

// HasVariableReferences checks if a string contains variable references.
func HasVariableReferences(s string) bool {
	return variablePattern.MatchString(s)
}

// ExtractVariableReferences extracts all variable references from a string.
func ExtractVariableReferences(s string) []string {
	matches := variablePattern.FindAllStringSubmatch(s, -1)
	refs := make([]string, 0, len(matches))
	for _, match := range matches {
		if len(match) > 1 {
			refs = append(refs, match[1])
		}
	}
	return refs
}
