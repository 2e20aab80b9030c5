package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/crew-engine/pkg/types"
)

const samplePipeline = `
id: market-research
name: 市场调研流水线
inputs:
  market: 宠物保险
agents:
  - id: researcher
    role: "${input:market}市场研究员"
    goal: 找出市场空白
    tools: [web_search, website_fetch]
    model:
      provider: openai
      model: gpt-4o-mini
  - id: strategist
    role: 策略师
    model:
      provider: deepseek
      model: deepseek-chat
tasks:
  - id: research
    agent: researcher
    description: "调研${input:market}市场"
    expected_output: 一份要点清单
    timeout: 45s
  - id: strategy
    agent: strategist
    description: 制定进入策略
    depends_on: [research]
    output:
      fields:
        - name: gap_name
          type: string
          required: true
        - name: score
          type: number
tools:
  - name: word_count
    description: 统计字数
    script: "params.text.length"
mcp_servers:
  - name: files
    transport: stdio
    command: mcp-files
    args: ["--root", "."]
`

func TestParse_FullPipeline(t *testing.T) {
	p, err := NewYAMLParser().Parse([]byte(samplePipeline))
	require.NoError(t, err)

	assert.Equal(t, "market-research", p.ID)
	require.Len(t, p.Agents, 2)
	require.Len(t, p.Tasks, 2)

	// 输入插值
	assert.Equal(t, "宠物保险市场研究员", p.Agents[0].Role)
	assert.Equal(t, "调研宠物保险市场", p.Tasks[0].Description)

	assert.Equal(t, []string{"web_search", "website_fetch"}, p.Agents[0].Tools)
	assert.Equal(t, 45*time.Second, p.Tasks[0].Timeout)
	assert.Equal(t, []string{"research"}, p.Tasks[1].DependsOn)

	require.NotNil(t, p.Tasks[1].Output)
	field, ok := p.Tasks[1].Output.Field("gap_name")
	require.True(t, ok)
	assert.True(t, field.Required)
	assert.Equal(t, types.FieldTypeString, field.Type)

	require.Len(t, p.ScriptTools, 1)
	assert.Equal(t, "word_count", p.ScriptTools[0].Name)
	require.Len(t, p.MCPServers, 1)
	assert.Equal(t, "stdio", p.MCPServers[0].Transport)
}

func TestParse_RuntimeInputsOverrideDefaults(t *testing.T) {
	resolver := NewDefaultVariableResolver().WithInputs(map[string]any{"market": "跨境电商"})
	p, err := NewYAMLParser().WithResolver(resolver).Parse([]byte(samplePipeline))
	require.NoError(t, err)

	assert.Equal(t, "跨境电商市场研究员", p.Agents[0].Role)
	assert.Equal(t, "调研跨境电商市场", p.Tasks[0].Description)
}

func TestParse_EnvInterpolation(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-123")

	yamlDef := `
id: p
agents:
  - id: a
    role: r
    model:
      provider: openai
      model: gpt-4o-mini
      api_key: "${env:TEST_API_KEY}"
tasks:
  - id: t1
    agent: a
    description: d
`
	p, err := NewYAMLParser().Parse([]byte(yamlDef))
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", p.Agents[0].Model.APIKey)
}

func TestParse_UnresolvedVariable(t *testing.T) {
	yamlDef := `
id: p
agents:
  - id: a
    role: "${input:missing}"
    model: {provider: openai, model: m}
tasks:
  - id: t1
    agent: a
    description: d
`
	_, err := NewYAMLParser().Parse([]byte(yamlDef))
	require.Error(t, err)
	var vErr *VariableResolutionError
	assert.ErrorAs(t, err, &vErr)
}

func TestParse_UnknownTopLevelField(t *testing.T) {
	_, err := NewYAMLParser().Parse([]byte("id: p\nbogus_field: 1\n"))
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := NewYAMLParser().Parse([]byte("id: [unclosed"))
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParse_MissingRequiredFields(t *testing.T) {
	cases := []struct {
		name  string
		yaml  string
		field string
	}{
		{
			name:  "missing pipeline id",
			yaml:  "name: x\nagents: [{id: a, role: r, model: {model: m}}]\ntasks: [{id: t, agent: a, description: d}]",
			field: "id",
		},
		{
			name:  "no agents",
			yaml:  "id: p\ntasks: [{id: t, agent: a, description: d}]",
			field: "agents",
		},
		{
			name:  "no tasks",
			yaml:  "id: p\nagents: [{id: a, role: r, model: {model: m}}]",
			field: "tasks",
		},
		{
			name:  "agent missing role",
			yaml:  "id: p\nagents: [{id: a, model: {model: m}}]\ntasks: [{id: t, agent: a, description: d}]",
			field: "role",
		},
		{
			name:  "agent missing model",
			yaml:  "id: p\nagents: [{id: a, role: r}]\ntasks: [{id: t, agent: a, description: d}]",
			field: "model",
		},
		{
			name:  "task missing description",
			yaml:  "id: p\nagents: [{id: a, role: r, model: {model: m}}]\ntasks: [{id: t, agent: a}]",
			field: "description",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewYAMLParser().Parse([]byte(tc.yaml))
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Field, tc.field)
		})
	}
}

func TestParse_InvalidOutputSchema(t *testing.T) {
	yamlDef := `
id: p
agents: [{id: a, role: r, model: {model: m}}]
tasks:
  - id: t1
    agent: a
    description: d
    output:
      fields:
        - name: x
          type: decimal
`
	_, err := NewYAMLParser().Parse([]byte(yamlDef))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestParse_DuplicateSchemaField(t *testing.T) {
	yamlDef := `
id: p
agents: [{id: a, role: r, model: {model: m}}]
tasks:
  - id: t1
    agent: a
    description: d
    output:
      fields:
        - {name: x, type: string}
        - {name: x, type: number}
`
	_, err := NewYAMLParser().Parse([]byte(yamlDef))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate field")
}

func TestParse_InvalidTimeout(t *testing.T) {
	yamlDef := `
id: p
agents: [{id: a, role: r, model: {model: m}}]
tasks:
  - id: t1
    agent: a
    description: d
    timeout: fast
`
	_, err := NewYAMLParser().Parse([]byte(yamlDef))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestParse_InvalidMCPTransport(t *testing.T) {
	yamlDef := `
id: p
agents: [{id: a, role: r, model: {model: m}}]
tasks: [{id: t1, agent: a, description: d}]
mcp_servers:
  - name: srv
    transport: grpc
`
	_, err := NewYAMLParser().Parse([]byte(yamlDef))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestParse_StdioRequiresCommand(t *testing.T) {
	yamlDef := `
id: p
agents: [{id: a, role: r, model: {model: m}}]
tasks: [{id: t1, agent: a, description: d}]
mcp_servers:
  - name: srv
    transport: stdio
`
	_, err := NewYAMLParser().Parse([]byte(yamlDef))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a command")
}

func TestParse_ScriptToolRequiresScript(t *testing.T) {
	yamlDef := `
id: p
agents: [{id: a, role: r, model: {model: m}}]
tasks: [{id: t1, agent: a, description: d}]
tools:
  - name: empty
    script: "   "
`
	_, err := NewYAMLParser().Parse([]byte(yamlDef))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script is required")
}

func TestParseFile_NotFound(t *testing.T) {
	_, err := NewYAMLParser().ParseFile("/nonexistent/pipeline.yaml")
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}
