package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"

	"yqhp/crew-engine/pkg/types"
)

// defaultScriptTimeout 脚本执行默认超时时间
const defaultScriptTimeout = 10 * time.Second

// ScriptTool 流水线文件中以 JavaScript 定义的自定义工具。
// 每次调用使用全新的 goja 运行时，调用之间互不影响。
type ScriptTool struct {
	spec    types.ScriptToolSpec
	timeout time.Duration
}

// NewScriptTool 根据脚本工具定义创建工具实例。
func NewScriptTool(spec types.ScriptToolSpec) (*ScriptTool, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("脚本工具名称不能为空")
	}
	if strings.TrimSpace(spec.Script) == "" {
		return nil, fmt.Errorf("脚本工具 %s 缺少脚本内容", spec.Name)
	}
	return &ScriptTool{spec: spec, timeout: defaultScriptTimeout}, nil
}

// Definition 返回脚本工具的定义信息
func (t *ScriptTool) Definition() *types.ToolDefinition {
	params := t.spec.Parameters
	if len(params) == 0 {
		// 未声明参数时给模型一个接受任意对象的 schema
		if len(t.spec.Params) > 0 {
			if raw, err := json.Marshal(schemaFromParams(t.spec.Params)); err == nil {
				params = raw
			}
		}
		if len(params) == 0 {
			params = json.RawMessage(`{"type": "object", "properties": {}}`)
		}
	}
	return &types.ToolDefinition{
		Name:        t.spec.Name,
		Description: t.spec.Description,
		Parameters:  params,
	}
}

// Cacheable 脚本可能有副作用，不进缓存。
func (t *ScriptTool) Cacheable() bool { return false }

// Execute 执行脚本
// 脚本通过全局 params 对象访问调用参数，最后一个表达式的值作为结果。
func (t *ScriptTool) Execute(ctx context.Context, params map[string]any) (*types.ToolResult, error) {
	vm := goja.New()
	t.setupConsole(vm)
	if err := vm.Set("params", params); err != nil {
		return nil, fmt.Errorf("注入脚本参数失败: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt("脚本执行超时或被取消")
		case <-done:
		}
	}()

	val, err := vm.RunString(t.spec.Script)
	close(done)

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return &types.ToolResult{
				IsError: true,
				Content: fmt.Sprintf("脚本 %s 执行超时（%v）", t.spec.Name, t.timeout),
			}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &types.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("脚本执行失败: %v", err),
		}, nil
	}

	return &types.ToolResult{Content: exportScriptValue(val)}, nil
}

// setupConsole 设置 console 对象，日志丢弃但保证脚本可用。
func (t *ScriptTool) setupConsole(vm *goja.Runtime) {
	console := vm.NewObject()
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = console.Set("log", noop)
	_ = console.Set("warn", noop)
	_ = console.Set("error", noop)
	_ = console.Set("info", noop)
	_ = vm.Set("console", console)
}

// exportScriptValue 将脚本返回值转换为字符串结果。
func exportScriptValue(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return ""
	}
	exported := val.Export()
	switch v := exported.(type) {
	case string:
		return v
	case map[string]any, []any:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// schemaFromParams 根据简化参数表生成 JSON Schema。
// 流水线文件中 params 以 名称->描述 的形式声明，统一按字符串参数处理。
func schemaFromParams(params map[string]any) map[string]any {
	properties := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for name, desc := range params {
		properties[name] = map[string]any{
			"type":        "string",
			"description": fmt.Sprintf("%v", desc),
		}
		required = append(required, name)
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}
