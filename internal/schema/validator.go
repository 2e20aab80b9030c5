// Package schema validates agent output against the structured output
// contract a task declares.
package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/oj"

	"yqhp/crew-engine/pkg/types"
)

// Validate parses the raw agent output, extracts the JSON document and
// checks it against the schema. On success it returns the coerced object.
// All violations are collected before returning.
func Validate(raw string, s *types.OutputSchema) (map[string]any, error) {
	doc, err := ExtractJSON(raw)
	if err != nil {
		return nil, &ViolationError{Violations: []*Violation{
			{Message: err.Error()},
		}}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &ViolationError{Violations: []*Violation{
			{Message: fmt.Sprintf("expected a JSON object, got %T", doc)},
		}}
	}

	var violations []*Violation
	out := make(map[string]any, len(obj))

	for _, f := range s.Fields {
		val, present := obj[f.Name]
		if !present {
			if f.Required {
				violations = append(violations, &Violation{
					Field:   f.Name,
					Message: "required field is missing",
				})
			}
			continue
		}
		coerced, err := coerce(val, f.Type)
		if err != nil {
			violations = append(violations, &Violation{Field: f.Name, Message: err.Error()})
			continue
		}
		out[f.Name] = coerced
	}

	// Undeclared fields pass through untouched.
	for k, v := range obj {
		if _, declared := s.Field(k); !declared {
			out[k] = v
		}
	}

	if len(violations) > 0 {
		return nil, &ViolationError{Violations: violations}
	}
	return out, nil
}

// ExtractJSON locates the JSON document inside raw model output. It
// prefers a fenced code block, then falls back to the first balanced
// object or array in the text.
func ExtractJSON(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("output is empty")
	}

	if candidate, ok := fencedBlock(raw); ok {
		if doc, err := oj.ParseString(candidate); err == nil {
			return doc, nil
		}
	}
	if doc, err := oj.ParseString(raw); err == nil {
		return doc, nil
	}
	if candidate, ok := balancedDocument(raw); ok {
		doc, err := oj.ParseString(candidate)
		if err != nil {
			return nil, fmt.Errorf("embedded JSON is malformed: %v", err)
		}
		return doc, nil
	}
	return nil, fmt.Errorf("no JSON document found in output")
}

func fencedBlock(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start < 0 {
		return "", false
	}
	rest := raw[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// 去掉 ```json 之类的语言标记行
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// balancedDocument finds the first brace/bracket-balanced span,
// respecting string literals.
func balancedDocument(raw string) (string, bool) {
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// coerce converts val to the declared field type, accepting the loose
// renditions models commonly emit (numbers as strings, integral floats).
func coerce(val any, ft types.FieldType) (any, error) {
	switch ft {
	case types.FieldTypeString:
		if s, ok := val.(string); ok {
			return s, nil
		}
		return nil, typeMismatch("string", val)

	case types.FieldTypeNumber:
		switch v := val.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return n, nil
			}
		}
		return nil, typeMismatch("number", val)

	case types.FieldTypeInteger:
		switch v := val.(type) {
		case int64:
			return v, nil
		case float64:
			if v == math.Trunc(v) {
				return int64(v), nil
			}
			return nil, fmt.Errorf("expected integer, got non-integral number %v", v)
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n, nil
			}
		}
		return nil, typeMismatch("integer", val)

	case types.FieldTypeBoolean:
		switch v := val.(type) {
		case bool:
			return v, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b, nil
			}
		}
		return nil, typeMismatch("boolean", val)

	case types.FieldTypeArray:
		if arr, ok := val.([]any); ok {
			return arr, nil
		}
		return nil, typeMismatch("array", val)

	case types.FieldTypeObject:
		if obj, ok := val.(map[string]any); ok {
			return obj, nil
		}
		return nil, typeMismatch("object", val)
	}
	return nil, fmt.Errorf("unknown field type '%s'", ft)
}

func typeMismatch(want string, got any) error {
	return fmt.Errorf("expected %s, got %T", want, got)
}
