// Package types 定义 Agent 流水线执行引擎的核心数据结构。
//
// 所有跨包共享的数据模型都集中在这里：AgentSpec / TaskSpec 描述流水线
// 配置，TaskResult / PipelineRun 描述执行结果，ToolDefinition / ToolCall /
// ToolResult 描述工具调用协议，OutputSchema 描述任务的结构化输出契约。
package types
