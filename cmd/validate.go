package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"yqhp/crew-engine/internal/orchestrator"
	"yqhp/crew-engine/internal/parser"
)

var validateInputs []string

// validateCmd 是 validate 子命令
var validateCmd = &cobra.Command{
	Use:   "validate <pipeline.yaml>",
	Short: "校验流水线文件",
	Long:  `解析流水线文件并校验其结构：引用的 Agent 是否存在、依赖是否成环等，不执行任何任务。`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := parseInputs(validateInputs)
		if err != nil {
			return err
		}
		resolver := parser.NewDefaultVariableResolver().WithInputs(inputs)
		pipeline, err := parser.NewYAMLParser().WithResolver(resolver).ParseFile(args[0])
		if err != nil {
			return err
		}
		if err := orchestrator.ValidatePipeline(pipeline); err != nil {
			return err
		}
		fmt.Printf("流水线 %s 校验通过: %d 个 Agent, %d 个任务\n",
			pipeline.ID, len(pipeline.Agents), len(pipeline.Tasks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringArrayVarP(&validateInputs, "input", "i", nil, "流水线输入，格式: key=value（可多次指定）")
}
