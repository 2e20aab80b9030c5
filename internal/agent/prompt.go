package agent

import (
	"fmt"
	"strings"

	"yqhp/crew-engine/pkg/types"
)

// BuildSystemPrompt 根据 Agent 人设组装系统提示词。
// 角色、目标、背景分段呈现，缺省段落直接省略。
func BuildSystemPrompt(spec *types.AgentSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "你是%s。", spec.Role)
	if spec.Goal != "" {
		fmt.Fprintf(&sb, "\n\n你的目标：%s", spec.Goal)
	}
	if spec.Backstory != "" {
		fmt.Fprintf(&sb, "\n\n背景：%s", spec.Backstory)
	}
	sb.WriteString("\n\n使用提供的工具收集完成任务所需的信息。信息充分后，直接输出最终结果。")
	return sb.String()
}

// BuildTaskPrompt 组装任务提示词：任务描述、期望输出、依赖任务的上下文
// 与可选的结构化输出契约。
func BuildTaskPrompt(task *types.TaskSpec, contextBlock string) string {
	var sb strings.Builder
	sb.WriteString(task.Description)

	if task.ExpectedOutput != "" {
		fmt.Fprintf(&sb, "\n\n期望输出：%s", task.ExpectedOutput)
	}

	if contextBlock != "" {
		fmt.Fprintf(&sb, "\n\n以下是前置任务的结果，作为本任务的上下文：\n%s", contextBlock)
	}

	if task.Output != nil && len(task.Output.Fields) > 0 {
		sb.WriteString("\n\n最终结果必须是一个 JSON 对象，包含以下字段：\n")
		for _, f := range task.Output.Fields {
			marker := "可选"
			if f.Required {
				marker = "必填"
			}
			fmt.Fprintf(&sb, "- %s (%s, %s)", f.Name, f.Type, marker)
			if f.Description != "" {
				fmt.Fprintf(&sb, ": %s", f.Description)
			}
			sb.WriteByte('\n')
		}
		sb.WriteString("只输出 JSON 对象本身，不要附加其他说明。")
	}

	return sb.String()
}
