package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"yqhp/crew-engine/pkg/types"
)

// maxFileReadSize 文件读取最大长度（字节），超过则截断
const maxFileReadSize = 64 * 1024

// FileReadTool 文件读取工具，限制在指定根目录内读取文本文件。
type FileReadTool struct {
	root string
}

// NewFileReadTool 创建文件读取工具。root 为空时使用当前工作目录。
func NewFileReadTool(root string) *FileReadTool {
	if root == "" {
		root = "."
	}
	return &FileReadTool{root: root}
}

// Definition 返回文件读取工具的定义信息
func (t *FileReadTool) Definition() *types.ToolDefinition {
	return &types.ToolDefinition{
		Name:        "file_read",
		Description: "读取工作目录内指定路径的文本文件内容",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "相对于工作目录的文件路径"
				}
			},
			"required": ["path"]
		}`),
	}
}

// Cacheable 文件内容在运行期间可能变化，不进缓存。
func (t *FileReadTool) Cacheable() bool { return false }

// Execute 执行文件读取
// 路径经过清理并校验在根目录之内，防止越界访问。
func (t *FileReadTool) Execute(ctx context.Context, params map[string]any) (*types.ToolResult, error) {
	relPath, ok := StringParam(params, "path")
	if !ok || strings.TrimSpace(relPath) == "" {
		return &types.ToolResult{
			IsError: true,
			Content: "缺少必填参数: path",
		}, nil
	}

	absRoot, err := filepath.Abs(t.root)
	if err != nil {
		return nil, fmt.Errorf("解析根目录失败: %w", err)
	}

	target := filepath.Join(absRoot, filepath.Clean(relPath))
	if target != absRoot && !strings.HasPrefix(target, absRoot+string(filepath.Separator)) {
		return &types.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("路径越界: %s", relPath),
		}, nil
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return &types.ToolResult{
				IsError: true,
				Content: fmt.Sprintf("文件不存在: %s", relPath),
			}, nil
		}
		return &types.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("读取文件失败: %v", err),
		}, nil
	}

	content := string(data)
	if len(content) > maxFileReadSize {
		content = content[:maxFileReadSize] + "...(已截断)"
	}
	return &types.ToolResult{Content: content}, nil
}
