package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"yqhp/crew-engine/internal/metrics"
	"yqhp/crew-engine/internal/tool"
	"yqhp/crew-engine/pkg/logger"
	"yqhp/crew-engine/pkg/types"
)

// DefaultMaxIterations 工具调用循环默认最大轮次
const DefaultMaxIterations = 10

// Output Agent 执行任务的结果
type Output struct {
	Content string

	// ToolCalls 真实执行的工具调用次数，缓存命中的请求不计入
	ToolCalls        int
	ModelCalls       int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	// Warnings 非致命异常，例如轮次预算耗尽
	Warnings []string
}

// Runner 驱动 Agent 完成任务的执行器。
// 同一个 Runner 可被多个任务并发使用。
type Runner struct {
	invoker   *tool.Invoker
	collector *metrics.Collector
	newModel  ModelFactory
}

// NewRunner 创建 Agent 执行器。factory 为 nil 时使用默认的 OpenAI 兼容模型。
func NewRunner(invoker *tool.Invoker, collector *metrics.Collector, factory ModelFactory) *Runner {
	if factory == nil {
		factory = NewChatModel
	}
	return &Runner{
		invoker:   invoker,
		collector: collector,
		newModel:  factory,
	}
}

// Run 让 Agent 执行一个任务。
// contextBlock 是依赖任务结果渲染出的上下文，任务无依赖时为空。
func (r *Runner) Run(ctx context.Context, spec *types.AgentSpec, task *types.TaskSpec, contextBlock string) (*Output, error) {
	chatModel, err := r.newModel(ctx, &spec.Model)
	if err != nil {
		return nil, fmt.Errorf("创建聊天模型失败: %w", err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(BuildSystemPrompt(spec)),
		schema.UserMessage(BuildTaskPrompt(task, contextBlock)),
	}

	toolDefs := r.allowedToolDefs(spec)
	schemaTools := toSchemaTools(toolDefs)

	maxIter := spec.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	output := &Output{}

	for round := 1; round <= maxIter; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var resp *schema.Message
		if len(schemaTools) > 0 {
			resp, err = chatModel.Generate(ctx, messages, model.WithTools(schemaTools))
		} else {
			resp, err = chatModel.Generate(ctx, messages)
		}
		if err != nil {
			return nil, fmt.Errorf("模型调用失败: %w", err)
		}
		r.recordUsage(output, resp)

		// 没有工具调用，回答即最终结果
		if len(resp.ToolCalls) == 0 {
			output.Content = resp.Content
			return output, nil
		}

		messages = append(messages, resp)

		for _, tc := range resp.ToolCalls {
			content, cached, isErr, err := r.invokeTool(ctx, spec, tc)
			if err != nil {
				return nil, err
			}
			// 缓存命中没有发生真实外部调用，不计入工具调用数
			if !cached {
				output.ToolCalls++
			}
			if isErr {
				logger.Debug("工具调用返回错误，反馈给模型",
					zap.String("agent", spec.ID),
					zap.String("tool", tc.Function.Name),
					zap.Int("round", round))
			}
			messages = append(messages, schema.ToolMessage(content, tc.ID))
		}
	}

	// 达到最大轮次限制，进行最后一次调用（不带工具）获取最终回答
	logger.Warn("工具调用轮次达到最大值，停止循环",
		zap.String("agent", spec.ID),
		zap.String("task", task.ID),
		zap.Int("max_iterations", maxIter))
	output.Warnings = append(output.Warnings,
		fmt.Sprintf("工具调用轮次达到上限 %d，结果可能不完整", maxIter))

	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("模型调用失败: %w", err)
	}
	r.recordUsage(output, resp)
	output.Content = resp.Content
	return output, nil
}

// invokeTool 调用单个工具，禁用名单外的工具直接拒绝。
// 所有失败都折叠成反馈给模型的错误文本；cached 表示结果来自响应缓存。
func (r *Runner) invokeTool(ctx context.Context, spec *types.AgentSpec, tc schema.ToolCall) (content string, cached, isErr bool, err error) {
	name := tc.Function.Name
	if !spec.AllowsTool(name) {
		return fmt.Sprintf("错误：当前 Agent 不允许使用工具 %s", name), false, true, nil
	}

	result, err := r.invoker.Invoke(ctx, name, tc.Function.Arguments)
	if err != nil {
		return "", false, false, err
	}
	if result.IsError {
		return fmt.Sprintf("错误：%s", result.Content), false, true, nil
	}
	return result.Content, result.Cached, false, nil
}

// allowedToolDefs 返回 Agent 名单内且已注册的工具定义。
func (r *Runner) allowedToolDefs(spec *types.AgentSpec) []*types.ToolDefinition {
	var defs []*types.ToolDefinition
	for _, name := range spec.Tools {
		t, ok := r.invoker.Registry().Get(name)
		if !ok {
			logger.Warn("未知的工具名称，已跳过",
				zap.String("agent", spec.ID),
				zap.String("tool", name))
			continue
		}
		defs = append(defs, t.Definition())
	}
	return defs
}

func (r *Runner) recordUsage(output *Output, resp *schema.Message) {
	output.ModelCalls++
	total := 0
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		output.PromptTokens += resp.ResponseMeta.Usage.PromptTokens
		output.CompletionTokens += resp.ResponseMeta.Usage.CompletionTokens
		output.TotalTokens += resp.ResponseMeta.Usage.TotalTokens
		total = resp.ResponseMeta.Usage.TotalTokens
	}
	if r.collector != nil {
		r.collector.RecordModelCall(total)
	}
}
