package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"yqhp/crew-engine/internal/cache"
	"yqhp/crew-engine/internal/metrics"
	"yqhp/crew-engine/internal/ratelimit"
	"yqhp/crew-engine/pkg/logger"
	"yqhp/crew-engine/pkg/types"
)

// InvokerConfig 调用通道配置
type InvokerConfig struct {
	MaxAttempts int           `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	RetryDelay  time.Duration `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
	Backoff     BackoffType   `yaml:"backoff,omitempty" json:"backoff,omitempty"`
	MaxDelay    time.Duration `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
}

// Invoker 统一的工具调用通道。
// 所有 Agent 的工具调用都经过这里：先查缓存，未命中再过限流器，
// 然后带退避重试地执行工具。缓存命中不消耗限流配额。
type Invoker struct {
	registry  *Registry
	cache     cache.Store        // nil 表示缓存关闭
	limiter   *ratelimit.Limiter // nil 表示不限流
	collector *metrics.Collector

	maxAttempts int
	retryDelay  time.Duration
	backoff     BackoffType
	maxDelay    time.Duration
}

// NewInvoker 创建调用通道。cfg 为 nil 时使用默认重试策略。
func NewInvoker(registry *Registry, store cache.Store, limiter *ratelimit.Limiter, collector *metrics.Collector, cfg *InvokerConfig) *Invoker {
	inv := &Invoker{
		registry:    registry,
		cache:       store,
		limiter:     limiter,
		collector:   collector,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		backoff:     BackoffExponential,
		maxDelay:    DefaultMaxRetryDelay,
	}
	if cfg != nil {
		if cfg.MaxAttempts > 0 {
			inv.maxAttempts = cfg.MaxAttempts
		}
		if cfg.RetryDelay > 0 {
			inv.retryDelay = cfg.RetryDelay
		}
		if cfg.Backoff != "" {
			inv.backoff = cfg.Backoff
		}
		if cfg.MaxDelay > 0 {
			inv.maxDelay = cfg.MaxDelay
		}
	}
	return inv
}

// Registry 返回底层工具注册表。
func (inv *Invoker) Registry() *Registry {
	return inv.registry
}

// Invoke 按名称调用工具，arguments 为模型发出的 JSON 参数串。
// 所有失败都折叠成 IsError=true 的 ToolResult，由 Agent 决定如何向模型反馈；
// 只有上下文取消通过 error 上抛，用于中止整个任务。
func (inv *Invoker) Invoke(ctx context.Context, name string, arguments string) (*types.ToolResult, error) {
	t, ok := inv.registry.Get(name)
	if !ok {
		return &types.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("未注册的工具: %s", name),
		}, nil
	}

	params, err := parseArguments(arguments)
	if err != nil {
		return &types.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("参数解析失败: %v", err),
		}, nil
	}

	// 先查缓存，命中则不消耗限流配额
	var key string
	if inv.cache != nil && t.Cacheable() {
		key = cache.Key(name, params)
		entry, hit, cerr := inv.cache.Get(ctx, key)
		if cerr != nil {
			logger.Warn("缓存读取失败，按未命中处理",
				zap.String("tool", name), zap.Error(cerr))
		} else if hit {
			if inv.collector != nil {
				inv.collector.RecordCacheHit()
			}
			logger.Debug("工具响应缓存命中", zap.String("tool", name))
			return &types.ToolResult{Content: entry.Content, Cached: true}, nil
		}
		if inv.collector != nil {
			inv.collector.RecordCacheMiss()
		}
	}

	result, err := inv.execute(ctx, t, name, params)
	if err != nil {
		return nil, err
	}

	if key != "" && !result.IsError {
		if cerr := inv.cache.Set(ctx, key, &cache.Entry{Content: result.Content}); cerr != nil {
			logger.Warn("缓存写入失败", zap.String("tool", name), zap.Error(cerr))
		}
	}
	return result, nil
}

// execute 过限流器并带退避重试地执行工具。
func (inv *Invoker) execute(ctx context.Context, t Tool, name string, params map[string]any) (*types.ToolResult, error) {
	var lastErr error

	for attempt := 1; attempt <= inv.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if inv.limiter != nil {
			if err := inv.limiter.Acquire(ctx); err != nil {
				if ratelimit.IsWaitTimeout(err) {
					return &types.ToolResult{
						IsError: true,
						Content: fmt.Sprintf("工具 %s 调用失败: %v", name, err),
					}, nil
				}
				// 上下文取消
				return nil, err
			}
		}

		start := time.Now()
		result, err := t.Execute(ctx, params)
		elapsed := time.Since(start)
		if inv.collector != nil {
			inv.collector.RecordToolCall(elapsed)
		}

		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		logger.Warn("工具调用出错，准备重试",
			zap.String("tool", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", inv.maxAttempts),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))

		if attempt < inv.maxAttempts {
			delay := CalculateBackoffDelay(inv.retryDelay, attempt, inv.backoff, inv.maxDelay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return &types.ToolResult{
		IsError: true,
		Content: fmt.Sprintf("工具 %s 连续 %d 次调用失败: %v", name, inv.maxAttempts, lastErr),
	}, nil
}

func parseArguments(arguments string) (map[string]any, error) {
	if arguments == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := sonic.UnmarshalString(arguments, &params); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}
