// Package tool 提供 Agent 可调用的工具：内置工具、脚本工具与 MCP 远程工具，
// 以及统一的调用通道（缓存、限流、重试）。
package tool

import (
	"context"

	"yqhp/crew-engine/pkg/types"
)

// Tool 工具执行接口
type Tool interface {
	// Definition 返回工具的定义信息
	Definition() *types.ToolDefinition

	// Cacheable 返回结果是否可以进响应缓存。
	// 幂等的查询类工具返回 true，有副作用的工具返回 false。
	Cacheable() bool

	// Execute 执行工具调用。
	// 工具层面的失败通过 IsError=true 的 ToolResult 返回；
	// Go error 保留给传输层故障，调用通道会对其重试。
	Execute(ctx context.Context, params map[string]any) (*types.ToolResult, error)
}

// StringParam 从参数表中取字符串参数。
func StringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IntParam 从参数表中取整数参数，兼容 JSON 解码出的 float64。
func IntParam(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
