// Package file 提供运行产物的文件输出：完整的 JSON 记录和可读的文本叙述。
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"yqhp/crew-engine/pkg/types"
)

// DefaultOutputDir 产物文件的默认输出目录
const DefaultOutputDir = "output"

// timestampLayout 产物文件名里的时间戳格式
const timestampLayout = "20060102_150405"

// Config holds configuration for file reporters.
type Config struct {
	// OutputDir is the directory artifacts are written to.
	OutputDir string `yaml:"output_dir"`
}

// ParseConfig 从通用配置表创建 Config。
func ParseConfig(raw map[string]any) *Config {
	config := &Config{OutputDir: DefaultOutputDir}
	if v, ok := raw["output_dir"].(string); ok && v != "" {
		config.OutputDir = v
	}
	return config
}

// JSONReporter 把完整的 PipelineRun 序列化成 JSON 产物文件。
type JSONReporter struct {
	config *Config

	// LastPath 最近一次写入的文件路径，供调用方展示
	LastPath string
}

// NewJSONReporter creates a new JSON artifact reporter.
func NewJSONReporter(config *Config) *JSONReporter {
	if config == nil {
		config = &Config{OutputDir: DefaultOutputDir}
	}
	if config.OutputDir == "" {
		config.OutputDir = DefaultOutputDir
	}
	return &JSONReporter{config: config}
}

// Name returns the reporter name.
func (r *JSONReporter) Name() string {
	return "json"
}

// Report writes the run record to <output_dir>/<pipeline>_<timestamp>.json.
func (r *JSONReporter) Report(ctx context.Context, run *types.PipelineRun) error {
	data, err := sonic.ConfigDefault.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化运行记录失败: %w", err)
	}

	path := artifactPath(r.config.OutputDir, run, "json")
	if err := writeArtifact(path, data); err != nil {
		return err
	}
	r.LastPath = path
	return nil
}

// Close implements the Reporter interface.
func (r *JSONReporter) Close(ctx context.Context) error {
	return nil
}

func artifactPath(dir string, run *types.PipelineRun, ext string) string {
	name := run.PipelineID
	if name == "" {
		name = "run"
	}
	filename := fmt.Sprintf("%s_%s.%s", name, run.StartTime.Format(timestampLayout), ext)
	return filepath.Join(dir, filename)
}

func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入产物文件失败: %w", err)
	}
	return nil
}
