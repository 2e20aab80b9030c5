// Package reporter 提供运行结果的输出框架。
// 一次流水线运行结束后，Manager 把最终的 PipelineRun 分发给
// 所有已配置的报告器（控制台、JSON 产物、文本叙述等）。
package reporter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"yqhp/crew-engine/pkg/types"
)

// Reporter 定义了运行结果输出的接口。
type Reporter interface {
	// Name 返回报告器名称。
	Name() string

	// Report 输出一次运行的最终结果。
	Report(ctx context.Context, run *types.PipelineRun) error

	// Close 关闭报告器并释放资源。
	Close(ctx context.Context) error
}

// Type 定义报告器类型。
type Type string

const (
	// TypeConsole 输出到控制台。
	TypeConsole Type = "console"
	// TypeJSON 输出到 JSON 文件。
	TypeJSON Type = "json"
	// TypeText 输出到可读的文本文件。
	TypeText Type = "text"
)

// Config 保存单个报告器的配置。
type Config struct {
	Type    Type           `yaml:"type"`
	Enabled bool           `yaml:"enabled"`
	Config  map[string]any `yaml:"config,omitempty"`
}

// Factory 创建特定类型的报告器。
type Factory func(config map[string]any) (Reporter, error)

// Registry 管理报告器的注册和创建。
type Registry struct {
	factories map[Type]Factory
	mu        sync.RWMutex
}

// NewRegistry 创建一个新的报告器注册表。
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Type]Factory),
	}
}

// Register 为指定类型注册报告器工厂。
func (r *Registry) Register(reporterType Type, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[reporterType]; exists {
		return fmt.Errorf("报告器类型已注册: %s", reporterType)
	}

	r.factories[reporterType] = factory
	return nil
}

// Create 创建指定类型的报告器。
func (r *Registry) Create(reporterType Type, config map[string]any) (Reporter, error) {
	r.mu.RLock()
	factory, exists := r.factories[reporterType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("未知的报告器类型: %s", reporterType)
	}

	return factory(config)
}

// ListTypes 返回所有已注册的报告器类型。
func (r *Registry) ListTypes() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Type, 0, len(r.factories))
	for t := range r.factories {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

// HasType 检查报告器类型是否已注册。
func (r *Registry) HasType(reporterType Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[reporterType]
	return exists
}
