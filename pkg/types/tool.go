package types

import "encoding/json"

// ToolDefinition 工具定义
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ToolCall AI 模型发出的工具调用
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

// ToolResult 工具执行结果
type ToolResult struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`

	// Cached 标记结果来自响应缓存，未发生外部调用。
	Cached bool `json:"cached,omitempty"`
}

// ScriptToolSpec 流水线文件中以 JavaScript 定义的自定义工具。
type ScriptToolSpec struct {
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	Parameters  json.RawMessage `yaml:"-" json:"parameters,omitempty"`
	Params      map[string]any  `yaml:"params,omitempty" json:"-"`
	Script      string          `yaml:"script" json:"script"`
}

// MCPServerSpec 外部 MCP 服务器连接配置。
type MCPServerSpec struct {
	Name      string            `yaml:"name" json:"name"`
	Transport string            `yaml:"transport" json:"transport"` // stdio | sse
	Command   string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	URL       string            `yaml:"url,omitempty" json:"url,omitempty"`

	// Tools 可选的工具名过滤；为空表示暴露服务器的全部工具。
	Tools []string `yaml:"tools,omitempty" json:"tools,omitempty"`

	// TimeoutSeconds 单次工具调用超时（秒），0 使用默认值。
	TimeoutSeconds int `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}
