package file

import (
	"context"
	"fmt"
	"strings"
	"time"

	"yqhp/crew-engine/pkg/types"
)

// TextReporter 把运行结果渲染成面向人的文本叙述产物。
type TextReporter struct {
	config *Config

	// LastPath 最近一次写入的文件路径
	LastPath string
}

// NewTextReporter creates a new text narrative reporter.
func NewTextReporter(config *Config) *TextReporter {
	if config == nil {
		config = &Config{OutputDir: DefaultOutputDir}
	}
	if config.OutputDir == "" {
		config.OutputDir = DefaultOutputDir
	}
	return &TextReporter{config: config}
}

// Name returns the reporter name.
func (r *TextReporter) Name() string {
	return "text"
}

// Report writes the narrative to <output_dir>/<pipeline>_<timestamp>.txt.
func (r *TextReporter) Report(ctx context.Context, run *types.PipelineRun) error {
	path := artifactPath(r.config.OutputDir, run, "txt")
	if err := writeArtifact(path, []byte(RenderNarrative(run))); err != nil {
		return err
	}
	r.LastPath = path
	return nil
}

// Close implements the Reporter interface.
func (r *TextReporter) Close(ctx context.Context) error {
	return nil
}

// RenderNarrative 渲染完整的文本叙述：运行概览、逐任务结果、指标汇总。
func RenderNarrative(run *types.PipelineRun) string {
	var b strings.Builder

	title := run.Name
	if title == "" {
		title = run.PipelineID
	}
	fmt.Fprintf(&b, "%s\n%s\n\n", title, strings.Repeat("=", displayWidth(title)))
	fmt.Fprintf(&b, "运行 ID: %s\n", run.RunID)
	fmt.Fprintf(&b, "状态: %s\n", run.Status)
	fmt.Fprintf(&b, "开始时间: %s\n", run.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "耗时: %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "任务数: %d\n\n", run.TaskCount)

	for i, id := range run.TaskOrder {
		result, ok := run.Results[id]
		if !ok {
			continue
		}
		header := fmt.Sprintf("%d. 任务 %s [%s]", i+1, id, result.Status)
		fmt.Fprintf(&b, "%s\n%s\n", header, strings.Repeat("-", displayWidth(header)))

		switch result.Status {
		case types.TaskStatusSucceeded:
			fmt.Fprintf(&b, "%s\n", strings.TrimSpace(result.RawOutput))
		case types.TaskStatusFailed:
			fmt.Fprintf(&b, "执行失败: %s\n", result.Error)
		case types.TaskStatusSkipped:
			fmt.Fprintf(&b, "已跳过: %s\n", result.Error)
		default:
			fmt.Fprintf(&b, "状态: %s\n", result.Status)
		}

		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "告警: %s\n", w)
		}
		if result.Status == types.TaskStatusSucceeded {
			fmt.Fprintf(&b, "(耗时 %s, 模型调用 %d, 工具调用 %d, tokens %d)\n",
				result.Duration.Round(time.Millisecond),
				result.ModelCalls, result.ToolCalls, result.TotalTokens)
		}
		b.WriteString("\n")
	}

	m := run.Metrics
	fmt.Fprintf(&b, "运行指标\n--------\n")
	fmt.Fprintf(&b, "模型调用: %d\n", m.ModelCalls)
	fmt.Fprintf(&b, "工具调用: %d\n", m.ToolCalls)
	fmt.Fprintf(&b, "缓存命中: %d/%d\n", m.CacheHits, m.CacheHits+m.CacheMisses)
	fmt.Fprintf(&b, "消耗 tokens: %d\n", m.TotalTokens)
	if m.ToolCalls > 0 {
		fmt.Fprintf(&b, "工具延迟: p50=%.0fms p95=%.0fms max=%.0fms\n",
			m.ToolLatencyP50Ms, m.ToolLatencyP95Ms, m.ToolLatencyMaxMs)
	}
	return b.String()
}

// displayWidth 下划线长度按 rune 数估算，避免中文标题下划线过长
func displayWidth(s string) int {
	n := len([]rune(s))
	if n < 4 {
		return 4
	}
	return n
}
