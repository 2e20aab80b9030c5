// Package console 提供运行结果的控制台输出。
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"yqhp/crew-engine/pkg/types"
)

// Config holds configuration for the console reporter.
type Config struct {
	// ColorOutput enables colored status output.
	ColorOutput bool `yaml:"color_output"`
	// Writer is the output writer (defaults to os.Stdout).
	Writer io.Writer `yaml:"-"`
}

// DefaultConfig returns the default console reporter configuration.
func DefaultConfig() *Config {
	return &Config{
		ColorOutput: true,
		Writer:      os.Stdout,
	}
}

// Reporter 把运行摘要打印到终端。
type Reporter struct {
	config *Config
	writer io.Writer
}

// New creates a new console reporter.
func New(config *Config) *Reporter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	return &Reporter{
		config: config,
		writer: config.Writer,
	}
}

// ParseConfig 从通用配置表创建 Config。
func ParseConfig(raw map[string]any) *Config {
	config := DefaultConfig()
	if v, ok := raw["color_output"].(bool); ok {
		config.ColorOutput = v
	}
	return config
}

// Name returns the reporter name.
func (r *Reporter) Name() string {
	return "console"
}

// Report prints a human-readable run summary.
func (r *Reporter) Report(ctx context.Context, run *types.PipelineRun) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\n=== 流水线运行摘要 ===\n")
	fmt.Fprintf(&b, "运行 ID:   %s\n", run.RunID)
	fmt.Fprintf(&b, "流水线:    %s\n", run.PipelineID)
	fmt.Fprintf(&b, "状态:      %s\n", r.colorStatus(string(run.Status)))
	fmt.Fprintf(&b, "耗时:      %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "任务:      %d  Agent: %d\n\n", run.TaskCount, run.AgentCount)

	for _, id := range run.TaskOrder {
		result, ok := run.Results[id]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  [%s] %s  (%s, 工具调用 %d, tokens %d)\n",
			r.colorStatus(string(result.Status)), id,
			result.Duration.Round(time.Millisecond),
			result.ToolCalls, result.TotalTokens)
		if result.Error != "" {
			fmt.Fprintf(&b, "      原因: %s\n", result.Error)
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "      告警: %s\n", w)
		}
	}

	m := run.Metrics
	fmt.Fprintf(&b, "\n指标: 模型调用 %d, 工具调用 %d, 缓存命中 %d/%d, tokens %d\n",
		m.ModelCalls, m.ToolCalls, m.CacheHits, m.CacheHits+m.CacheMisses, m.TotalTokens)
	if m.ToolCalls > 0 {
		fmt.Fprintf(&b, "工具延迟: p50=%.0fms p95=%.0fms max=%.0fms\n",
			m.ToolLatencyP50Ms, m.ToolLatencyP95Ms, m.ToolLatencyMaxMs)
	}

	_, err := io.WriteString(r.writer, b.String())
	return err
}

// Close implements the Reporter interface.
func (r *Reporter) Close(ctx context.Context) error {
	return nil
}

func (r *Reporter) colorStatus(status string) string {
	if !r.config.ColorOutput {
		return status
	}
	switch status {
	case string(types.TaskStatusSucceeded), string(types.RunStatusCompleted):
		return "\033[32m" + status + "\033[0m"
	case string(types.TaskStatusFailed):
		return "\033[31m" + status + "\033[0m"
	case string(types.TaskStatusSkipped), string(types.RunStatusPartiallyFailed), string(types.RunStatusCancelled):
		return "\033[33m" + status + "\033[0m"
	default:
		return status
	}
}
