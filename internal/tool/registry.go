package tool

import (
	"fmt"
	"sort"
	"sync"

	"yqhp/crew-engine/pkg/types"
)

// Registry 工具注册表，管理和查询已注册的工具。
// 使用 sync.RWMutex 保证并发安全。
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry 创建一个新的工具注册表。
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register 注册一个工具到注册表。
// 如果工具名称已存在，返回名称冲突错误。
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("不能注册空工具")
	}

	def := tool.Definition()
	if def == nil || def.Name == "" {
		return fmt.Errorf("工具定义不能为空且名称不能为空")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("工具名称已注册: %s", def.Name)
	}

	r.tools[def.Name] = tool
	return nil
}

// MustRegister 注册工具，失败时 panic。用于程序启动期的内置工具注册。
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("注册工具失败: %v", err))
	}
}

// Get 按名称获取工具。
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

// Has 检查指定名称的工具是否已注册。
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tools[name]
	return exists
}

// List 返回所有已注册工具的定义列表，按名称排序。
func (r *Registry) List() []*types.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*types.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names 返回所有已注册工具的名称，按字典序排序。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count 返回已注册工具数量。
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
