// Package engine 提供流水线引擎的公共 API：
// 解析流水线定义，装配工具和模型，执行任务 DAG 并输出运行产物。
package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"yqhp/crew-engine/internal/agent"
	"yqhp/crew-engine/internal/cache"
	"yqhp/crew-engine/internal/config"
	"yqhp/crew-engine/internal/metrics"
	"yqhp/crew-engine/internal/orchestrator"
	"yqhp/crew-engine/internal/parser"
	"yqhp/crew-engine/internal/ratelimit"
	"yqhp/crew-engine/internal/reporter"
	"yqhp/crew-engine/internal/reporter/console"
	"yqhp/crew-engine/internal/reporter/file"
	"yqhp/crew-engine/internal/tool"
	"yqhp/crew-engine/pkg/logger"
	"yqhp/crew-engine/pkg/types"
)

// Engine 流水线引擎。一个 Engine 可以顺序或并发执行多条流水线，
// 限流器和响应缓存在所有运行之间共享。
type Engine struct {
	cfg     *config.Config
	store   cache.Store
	limiter *ratelimit.Limiter
	manager *reporter.Manager

	// modelFactory 为 nil 时使用默认的 OpenAI 兼容模型
	modelFactory agent.ModelFactory

	// extraTools 除内置工具外额外注册的工具
	extraTools []tool.Tool

	mu     sync.Mutex
	closed bool
}

// Option 配置 Engine 的可选项。
type Option func(*Engine)

// WithModelFactory 替换聊天模型工厂，测试中用来注入假模型。
func WithModelFactory(factory agent.ModelFactory) Option {
	return func(e *Engine) { e.modelFactory = factory }
}

// WithTool 注册一个额外的工具，对所有流水线可用。
func WithTool(t tool.Tool) Option {
	return func(e *Engine) { e.extraTools = append(e.extraTools, t) }
}

// WithReporter 追加一个自定义报告器。
func WithReporter(r reporter.Reporter) Option {
	return func(e *Engine) { e.manager.AddReporter(r) }
}

// New 创建引擎。cfg 为 nil 时使用默认配置。
// redis 缓存后端在这里建立连接，连接失败直接返回错误。
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	logger.Init(&logger.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Output:   cfg.Logging.Output,
		FilePath: cfg.Logging.FilePath,
	})

	e := &Engine{cfg: cfg}

	if cfg.RateLimit.MaxCalls > 0 {
		var limiterOpts []ratelimit.Option
		if cfg.RateLimit.MaxWait > 0 {
			limiterOpts = append(limiterOpts, ratelimit.WithMaxWait(cfg.RateLimit.MaxWait.Std()))
		}
		e.limiter = ratelimit.New(cfg.RateLimit.MaxCalls, cfg.RateLimit.Window.Std(), limiterOpts...)
	}

	if cfg.Cache.Enabled {
		store, err := newCacheStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("初始化响应缓存失败: %w", err)
		}
		e.store = store
	}

	manager, err := newReporterManager(cfg)
	if err != nil {
		return nil, err
	}
	e.manager = manager

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func newCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisStore(ctx, &cache.RedisConfig{
			Host:     cfg.Cache.Redis.Host,
			Port:     cfg.Cache.Redis.Port,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		}, cfg.Cache.TTL.Std())
	case "memory", "":
		return cache.NewMemoryStore(cfg.Cache.TTL.Std()), nil
	default:
		return nil, fmt.Errorf("未知的缓存后端: %s", cfg.Cache.Backend)
	}
}

func newReporterManager(cfg *config.Config) (*reporter.Manager, error) {
	registry, err := reporter.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}
	manager := reporter.NewManager(registry)

	if cfg.Output.Console {
		manager.AddReporter(console.New(&console.Config{ColorOutput: cfg.Output.Color, Writer: os.Stdout}))
	}
	if cfg.Output.JSON {
		manager.AddReporter(file.NewJSONReporter(&file.Config{OutputDir: cfg.Output.Dir}))
	}
	if cfg.Output.Text {
		manager.AddReporter(file.NewTextReporter(&file.Config{OutputDir: cfg.Output.Dir}))
	}
	return manager, nil
}

// RunFile 解析流水线文件并执行。inputs 覆盖文件里声明的默认输入。
func (e *Engine) RunFile(ctx context.Context, path string, inputs map[string]any) (*types.PipelineRun, error) {
	resolver := parser.NewDefaultVariableResolver().WithInputs(inputs)
	pipeline, err := parser.NewYAMLParser().WithResolver(resolver).ParseFile(path)
	if err != nil {
		return nil, err
	}
	pipeline.Inputs = resolver.Inputs
	return e.Run(ctx, pipeline)
}

// Run 执行一条已解析的流水线并输出运行产物。
// 任务级失败不作为 error 返回，而是体现在返回的 PipelineRun 里。
func (e *Engine) Run(ctx context.Context, pipeline *types.Pipeline) (*types.PipelineRun, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, fmt.Errorf("引擎已关闭")
	}
	e.mu.Unlock()

	registry, closeSources, err := e.buildRegistry(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer closeSources()

	collector := metrics.NewCollector()
	invoker := tool.NewInvoker(registry, e.store, e.limiter, collector, &tool.InvokerConfig{
		MaxAttempts: e.cfg.Run.MaxToolAttempts,
	})
	runner := agent.NewRunner(invoker, collector, e.modelFactory)

	orch := orchestrator.New(runner, collector, orchestrator.Options{
		Workers:     e.cfg.Run.Workers,
		OnFailure:   orchestrator.FailurePolicy(e.cfg.Run.OnFailure),
		SchemaMode:  orchestrator.SchemaPolicy(e.cfg.Run.SchemaMode),
		TaskTimeout: e.cfg.Run.TaskTimeout.Std(),
	})

	run, err := orch.Execute(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	e.manager.Report(ctx, run)
	return run, nil
}

// buildRegistry 装配一次运行可见的全部工具：
// 内置工具、Option 注入的工具、流水线里的脚本工具、MCP 服务器导出的工具。
func (e *Engine) buildRegistry(ctx context.Context, pipeline *types.Pipeline) (*tool.Registry, func(), error) {
	registry := tool.NewRegistry()

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	builtins := []tool.Tool{
		tool.NewWebSearchTool(os.Getenv("SERPER_API_KEY")),
		tool.NewWebFetchTool(),
		tool.NewFileReadTool(cwd),
		tool.NewJSONParseTool(),
	}
	for _, t := range append(builtins, e.extraTools...) {
		if err := registry.Register(t); err != nil {
			return nil, nil, err
		}
	}

	for _, spec := range pipeline.ScriptTools {
		st, err := tool.NewScriptTool(spec)
		if err != nil {
			return nil, nil, fmt.Errorf("构建脚本工具 %s 失败: %w", spec.Name, err)
		}
		if err := registry.Register(st); err != nil {
			return nil, nil, err
		}
	}

	var sources []*tool.MCPSource
	closeSources := func() {
		for _, s := range sources {
			if err := s.Close(); err != nil {
				logger.Warn("关闭 MCP 服务器连接失败",
					zap.String("server", s.Name()), zap.Error(err))
			}
		}
	}

	for _, spec := range pipeline.MCPServers {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		source, err := tool.ConnectMCPServer(connectCtx, spec)
		cancel()
		if err != nil {
			closeSources()
			return nil, nil, fmt.Errorf("连接 MCP 服务器 %s 失败: %w", spec.Name, err)
		}
		sources = append(sources, source)

		tools, err := source.Tools(ctx)
		if err != nil {
			closeSources()
			return nil, nil, fmt.Errorf("列举 MCP 服务器 %s 的工具失败: %w", spec.Name, err)
		}
		for _, t := range tools {
			if err := registry.Register(t); err != nil {
				closeSources()
				return nil, nil, err
			}
		}
		logger.Info("MCP 服务器已接入",
			zap.String("server", spec.Name),
			zap.Int("tools", len(tools)))
	}

	return registry, closeSources, nil
}

// Close 释放引擎持有的资源（缓存连接、报告器）。
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭缓存失败: %w", err))
		}
	}
	if err := e.manager.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("关闭引擎时出错: %v", errs)
	}
	return nil
}
