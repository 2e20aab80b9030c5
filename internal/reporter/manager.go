package reporter

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"yqhp/crew-engine/pkg/logger"
	"yqhp/crew-engine/pkg/types"
)

// Manager 管理一次运行的所有报告器。
// 报告器的写入失败只记录日志，不影响运行结果本身。
type Manager struct {
	registry  *Registry
	reporters []Reporter
	mu        sync.RWMutex
}

// NewManager 创建报告器管理器。registry 为 nil 时使用空注册表。
func NewManager(registry *Registry) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		registry:  registry,
		reporters: make([]Reporter, 0),
	}
}

// AddReporter 直接添加一个报告器。
func (m *Manager) AddReporter(reporter Reporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters = append(m.reporters, reporter)
}

// AddFromConfig 按配置创建并添加报告器，未启用的配置被忽略。
func (m *Manager) AddFromConfig(config *Config) error {
	if !config.Enabled {
		return nil
	}

	reporter, err := m.registry.Create(config.Type, config.Config)
	if err != nil {
		return fmt.Errorf("创建报告器 %s 失败: %w", config.Type, err)
	}

	m.AddReporter(reporter)
	return nil
}

// Report 把运行结果分发给所有报告器。
// 单个报告器失败不会中断其余报告器，也不会向上传播。
func (m *Manager) Report(ctx context.Context, run *types.PipelineRun) {
	m.mu.RLock()
	reporters := make([]Reporter, len(m.reporters))
	copy(reporters, m.reporters)
	m.mu.RUnlock()

	for _, reporter := range reporters {
		if err := reporter.Report(ctx, run); err != nil {
			logger.Error("报告器输出失败",
				zap.String("reporter", reporter.Name()),
				zap.String("run_id", run.RunID),
				zap.Error(err))
		}
	}
}

// Close 关闭所有报告器。
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, reporter := range m.reporters {
		if err := reporter.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", reporter.Name(), err))
		}
	}
	m.reporters = nil

	if len(errs) > 0 {
		return fmt.Errorf("关闭错误: %v", errs)
	}
	return nil
}

// Reporters 返回当前已添加的报告器。
func (m *Manager) Reporters() []Reporter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Reporter, len(m.reporters))
	copy(out, m.reporters)
	return out
}
