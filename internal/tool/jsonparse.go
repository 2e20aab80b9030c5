package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"yqhp/crew-engine/pkg/types"
)

// JSONParseTool JSON 解析工具，支持 JSONPath 表达式提取嵌套值。
type JSONParseTool struct{}

// NewJSONParseTool 创建 JSON 解析工具。
func NewJSONParseTool() *JSONParseTool {
	return &JSONParseTool{}
}

// Definition 返回 JSON 解析工具的定义信息
func (t *JSONParseTool) Definition() *types.ToolDefinition {
	return &types.ToolDefinition{
		Name:        "json_parse",
		Description: "解析 JSON 字符串，支持通过 JSONPath 表达式提取嵌套值",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"json_string": {
					"type": "string",
					"description": "要解析的 JSON 字符串"
				},
				"path": {
					"type": "string",
					"description": "可选的 JSONPath 表达式（如 $.data.items[0].name）"
				}
			},
			"required": ["json_string"]
		}`),
	}
}

// Cacheable 纯计算工具，无外部调用，不需要缓存。
func (t *JSONParseTool) Cacheable() bool { return false }

// Execute 执行 JSON 解析
// 无效 JSON 或路径无匹配时返回 IsError=true 的 ToolResult。
func (t *JSONParseTool) Execute(ctx context.Context, params map[string]any) (*types.ToolResult, error) {
	jsonString, ok := StringParam(params, "json_string")
	if !ok || jsonString == "" {
		return &types.ToolResult{
			IsError: true,
			Content: "缺少必填参数: json_string",
		}, nil
	}

	parsed, err := oj.ParseString(jsonString)
	if err != nil {
		return &types.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("无效的 JSON: %v", err),
		}, nil
	}

	if pathExpr, ok := StringParam(params, "path"); ok && strings.TrimSpace(pathExpr) != "" {
		path, err := jp.ParseString(pathExpr)
		if err != nil {
			return &types.ToolResult{
				IsError: true,
				Content: fmt.Sprintf("无效的 JSONPath 表达式 %q: %v", pathExpr, err),
			}, nil
		}
		matches := path.Get(parsed)
		switch len(matches) {
		case 0:
			return &types.ToolResult{
				IsError: true,
				Content: fmt.Sprintf("JSONPath %q 没有匹配到任何值", pathExpr),
			}, nil
		case 1:
			parsed = matches[0]
		default:
			parsed = matches
		}
	}

	return &types.ToolResult{Content: oj.JSON(parsed)}, nil
}
