package parser

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"yqhp/crew-engine/pkg/types"
)

// YAMLParser implements the Parser interface for YAML pipeline definitions.
type YAMLParser struct {
	resolver *DefaultVariableResolver
}

// NewYAMLParser creates a new YAMLParser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{
		resolver: NewDefaultVariableResolver(),
	}
}

// WithResolver sets a custom variable resolver.
func (p *YAMLParser) WithResolver(resolver *DefaultVariableResolver) *YAMLParser {
	p.resolver = resolver
	return p
}

// Parse parses a pipeline definition from bytes.
func (p *YAMLParser) Parse(data []byte) (*types.Pipeline, error) {
	var pipeline types.Pipeline

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Strict mode: error on unknown fields

	if err := decoder.Decode(&pipeline); err != nil {
		return nil, p.wrapYAMLError(err)
	}

	// Pipeline inputs become resolvable as ${input:name} references.
	// Values already present on the resolver (runtime overrides) win.
	if pipeline.Inputs != nil {
		p.resolver.MergeDefaults(pipeline.Inputs)
	}

	if err := p.validate(&pipeline); err != nil {
		return nil, err
	}

	if err := p.interpolate(&pipeline); err != nil {
		return nil, err
	}

	return &pipeline, nil
}

// ParseFile parses a pipeline definition from a file.
func (p *YAMLParser) ParseFile(path string) (*types.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewParseError(0, 0, fmt.Sprintf("failed to read file: %s", path), err)
	}
	return p.Parse(data)
}

// wrapYAMLError converts a YAML error to a ParseError with line information.
func (p *YAMLParser) wrapYAMLError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	line, column := extractLineColumn(errStr)
	message := cleanYAMLErrorMessage(errStr)

	return NewParseError(line, column, message, err)
}

// extractLineColumn attempts to extract line and column from YAML error message.
func extractLineColumn(errStr string) (int, int) {
	var line, column int

	if idx := strings.Index(errStr, "line "); idx != -1 {
		fmt.Sscanf(errStr[idx:], "line %d", &line)
	}
	if idx := strings.Index(errStr, "column "); idx != -1 {
		fmt.Sscanf(errStr[idx:], "column %d", &column)
	}

	return line, column
}

// cleanYAMLErrorMessage creates a cleaner error message.
func cleanYAMLErrorMessage(errStr string) string {
	errStr = strings.TrimPrefix(errStr, "yaml: ")
	if len(errStr) > 0 {
		errStr = strings.ToUpper(errStr[:1]) + errStr[1:]
	}
	return errStr
}

// validate 校验解析出的流水线的局部形状。
// 任务图层面的校验（依赖存在性、环检测）由调度方完成。
func (p *YAMLParser) validate(pipeline *types.Pipeline) error {
	if pipeline.ID == "" {
		return NewValidationError("id", "pipeline ID is required")
	}

	if len(pipeline.Agents) == 0 {
		return NewValidationError("agents", "pipeline must have at least one agent")
	}
	if len(pipeline.Tasks) == 0 {
		return NewValidationError("tasks", "pipeline must have at least one task")
	}

	for i, a := range pipeline.Agents {
		path := fmt.Sprintf("agents[%d]", i)
		if a.ID == "" {
			return NewValidationError(path+".id", "agent id is required")
		}
		if a.Role == "" {
			return NewValidationError(path+".role", fmt.Sprintf("agent %s: role is required", a.ID))
		}
		if a.Model.Model == "" {
			return NewValidationError(path+".model", fmt.Sprintf("agent %s: model name is required", a.ID))
		}
	}

	for i, t := range pipeline.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		if t.ID == "" {
			return NewValidationError(path+".id", "task id is required")
		}
		if t.AgentID == "" {
			return NewValidationError(path+".agent", fmt.Sprintf("task %s: agent is required", t.ID))
		}
		if t.Description == "" {
			return NewValidationError(path+".description", fmt.Sprintf("task %s: description is required", t.ID))
		}
		if t.Output != nil {
			if err := validateOutputSchema(t.Output, path+".output"); err != nil {
				return err
			}
		}
	}

	for i, st := range pipeline.ScriptTools {
		path := fmt.Sprintf("tools[%d]", i)
		if st.Name == "" {
			return NewValidationError(path+".name", "script tool name is required")
		}
		if strings.TrimSpace(st.Script) == "" {
			return NewValidationError(path+".script", fmt.Sprintf("tool %s: script is required", st.Name))
		}
	}

	for i, srv := range pipeline.MCPServers {
		path := fmt.Sprintf("mcp_servers[%d]", i)
		if srv.Name == "" {
			return NewValidationError(path+".name", "mcp server name is required")
		}
		switch srv.Transport {
		case "stdio":
			if srv.Command == "" {
				return NewValidationError(path+".command", fmt.Sprintf("server %s: stdio transport requires a command", srv.Name))
			}
		case "sse":
			if srv.URL == "" {
				return NewValidationError(path+".url", fmt.Sprintf("server %s: sse transport requires a url", srv.Name))
			}
		default:
			return NewValidationError(path+".transport", fmt.Sprintf("server %s: unknown transport %q", srv.Name, srv.Transport))
		}
	}

	return nil
}

func validateOutputSchema(s *types.OutputSchema, path string) error {
	if len(s.Fields) == 0 {
		return NewValidationError(path+".fields", "output schema must declare at least one field")
	}
	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		fieldPath := fmt.Sprintf("%s.fields[%d]", path, i)
		if f.Name == "" {
			return NewValidationError(fieldPath+".name", "field name is required")
		}
		if seen[f.Name] {
			return NewValidationError(fieldPath, fmt.Sprintf("duplicate field: %s", f.Name))
		}
		seen[f.Name] = true
		switch f.Type {
		case types.FieldTypeString, types.FieldTypeNumber, types.FieldTypeInteger,
			types.FieldTypeBoolean, types.FieldTypeArray, types.FieldTypeObject:
		default:
			return NewValidationError(fieldPath+".type", fmt.Sprintf("field %s: unknown type %q", f.Name, f.Type))
		}
	}
	return nil
}

// interpolate 替换 Agent 画像和任务描述里的变量引用。
// 模型 API Key 常写成 ${env:OPENAI_API_KEY} 的形式。
func (p *YAMLParser) interpolate(pipeline *types.Pipeline) error {
	for i := range pipeline.Agents {
		a := &pipeline.Agents[i]
		for _, field := range []*string{&a.Role, &a.Goal, &a.Backstory, &a.Model.APIKey, &a.Model.BaseURL} {
			if err := p.resolveInto(field); err != nil {
				return err
			}
		}
	}
	for i := range pipeline.Tasks {
		t := &pipeline.Tasks[i]
		for _, field := range []*string{&t.Description, &t.ExpectedOutput} {
			if err := p.resolveInto(field); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *YAMLParser) resolveInto(field *string) error {
	if !HasVariableReferences(*field) {
		return nil
	}
	resolved, err := p.resolver.ResolveString(*field)
	if err != nil {
		return err
	}
	*field = resolved
	return nil
}
