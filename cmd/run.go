package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"yqhp/crew-engine/internal/config"
	"yqhp/crew-engine/pkg/engine"
	"yqhp/crew-engine/pkg/logger"
	"yqhp/crew-engine/pkg/types"
)

var (
	// run 命令的 flags
	runInputs    []string
	runWorkers   int
	runOnFailure string
	runOutputDir string
	runNoCache   bool
)

// runCmd 是 run 子命令
var runCmd = &cobra.Command{
	Use:   "run <pipeline.yaml>",
	Short: "执行一条流水线",
	Long: `解析流水线文件并按依赖顺序执行其中的任务。

任务失败时的行为由失败策略控制：
  - skip_downstream: 只跳过失败任务的下游，独立分支继续执行（默认）
  - abort: 任一任务失败即中止整个运行`,
	Example: `  # 基本执行
  crew-engine run pipeline.yaml

  # 覆盖流水线输入
  crew-engine run -i market=宠物保险 pipeline.yaml

  # 并发执行独立任务
  crew-engine run --workers 4 --on-failure skip_downstream pipeline.yaml

  # 指定产物输出目录
  crew-engine run -o ./artifacts pipeline.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayVarP(&runInputs, "input", "i", nil, "流水线输入，格式: key=value（可多次指定）")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "并发 worker 数（覆盖配置文件）")
	runCmd.Flags().StringVar(&runOnFailure, "on-failure", "", "失败策略 (abort, skip_downstream)")
	runCmd.Flags().StringVarP(&runOutputDir, "output-dir", "o", "", "产物输出目录（覆盖配置文件）")
	runCmd.Flags().BoolVar(&runNoCache, "no-cache", false, "禁用工具响应缓存")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	pipelinePath := args[0]

	if debug {
		logger.EnableDebug()
	}

	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	inputs, err := parseInputs(runInputs)
	if err != nil {
		return err
	}

	// 处理关闭信号
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n正在中止运行...")
		cancel()
	}()

	e, err := engine.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close(context.Background())

	run, err := e.RunFile(ctx, pipelinePath, inputs)
	if err != nil {
		return fmt.Errorf("执行失败: %w", err)
	}

	switch run.Status {
	case types.RunStatusFailed:
		return fmt.Errorf("运行失败: %d/%d 个任务未成功", failedCount(run), run.TaskCount)
	case types.RunStatusCancelled:
		return fmt.Errorf("运行被取消")
	}
	return nil
}

// loadRunConfig 加载配置并应用命令行覆盖。
func loadRunConfig() (*config.Config, error) {
	overrides := make(map[string]string)
	if runWorkers > 0 {
		overrides["run.workers"] = fmt.Sprintf("%d", runWorkers)
	}
	if runOnFailure != "" {
		overrides["run.on_failure"] = runOnFailure
	}
	if runOutputDir != "" {
		overrides["output.dir"] = runOutputDir
	}
	if runNoCache {
		overrides["cache.enabled"] = "false"
	}
	if quiet {
		overrides["output.console"] = "false"
	}

	return config.NewLoader().
		WithConfigPath(cfgFile).
		WithCmdArgs(overrides).
		Load()
}

func parseInputs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	inputs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("输入格式不合法: %q，应为 key=value", pair)
		}
		inputs[parts[0]] = parts[1]
	}
	return inputs, nil
}

func failedCount(run *types.PipelineRun) int {
	n := 0
	for _, r := range run.Results {
		if r.Status != types.TaskStatusSucceeded {
			n++
		}
	}
	return n
}
