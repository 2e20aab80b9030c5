package orchestrator

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"yqhp/crew-engine/pkg/logger"
	"yqhp/crew-engine/pkg/types"
)

// 上下文渲染对 map 键排序，保证同样的结果渲染出同样的文本
var contextJSON = sonic.Config{SortMapKeys: true}.Froze()

// BuildContextBlock 把依赖任务的结果渲染成下游任务可见的上下文。
// 依赖顺序与 depends_on 声明顺序一致；有结构化输出时优先使用。
func BuildContextBlock(task *types.TaskSpec, results map[string]*types.TaskResult) string {
	if len(task.DependsOn) == 0 {
		return ""
	}

	var sections []string
	for _, dep := range task.DependsOn {
		result, ok := results[dep]
		if !ok || result.Status != types.TaskStatusSucceeded {
			continue
		}
		sections = append(sections, fmt.Sprintf("### 任务 %s 的结果\n%s", dep, renderResult(result)))
	}
	return strings.Join(sections, "\n\n")
}

func renderResult(result *types.TaskResult) string {
	if result.Structured != nil {
		data, err := contextJSON.MarshalIndent(result.Structured, "", "  ")
		if err == nil {
			return string(data)
		}
		logger.Warn("结构化输出序列化失败，回退到原始输出",
			zap.String("task", result.TaskID), zap.Error(err))
	}
	return result.RawOutput
}
