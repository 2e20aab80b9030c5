// Property-based tests for DAG scheduling.
// Property 1: every task ends in a terminal state exactly once.
// Property 2: a task only runs after all of its dependencies succeeded;
// under the skip-downstream policy everything downstream of a failure is
// skipped, never executed.
package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"yqhp/crew-engine/pkg/types"
)

// chainPipeline 构造长度为 n 的线性链 t0 <- t1 <- ... <- t(n-1)
func chainPipeline(n int) *types.Pipeline {
	p := &types.Pipeline{
		ID:     "chain",
		Agents: []types.AgentSpec{{ID: "worker", Role: "执行者"}},
	}
	for i := 0; i < n; i++ {
		task := types.TaskSpec{
			ID:          fmt.Sprintf("t%d", i),
			AgentID:     "worker",
			Description: "链上任务",
		}
		if i > 0 {
			task.DependsOn = []string{fmt.Sprintf("t%d", i-1)}
		}
		p.Tasks = append(p.Tasks, task)
	}
	return p
}

// fanOutPipeline 构造一个根任务加 k 个叶子任务的星形结构
func fanOutPipeline(k int) *types.Pipeline {
	p := &types.Pipeline{
		ID:     "fanout",
		Agents: []types.AgentSpec{{ID: "worker", Role: "执行者"}},
		Tasks: []types.TaskSpec{
			{ID: "root", AgentID: "worker", Description: "根任务"},
		},
	}
	for i := 0; i < k; i++ {
		p.Tasks = append(p.Tasks, types.TaskSpec{
			ID:          fmt.Sprintf("leaf%d", i),
			AgentID:     "worker",
			Description: "叶子任务",
			DependsOn:   []string{"root"},
		})
	}
	return p
}

func TestChainFailurePropagationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: 链上第 failAt 个任务失败时，前缀成功、失败点失败、后缀全部跳过
	properties.Property("prefix succeeds, suffix is skipped", prop.ForAll(
		func(n, failAt, workers int) bool {
			if failAt >= n {
				failAt = n - 1
			}

			f := newFakeRunner()
			failID := fmt.Sprintf("t%d", failAt)
			f.errs[failID] = fmt.Errorf("任务 %s 注入失败", failID)

			o := New(f, nil, Options{Workers: workers, OnFailure: PolicySkipDownstream})
			run, err := o.Execute(context.Background(), chainPipeline(n))
			if err != nil {
				return false
			}

			for i := 0; i < n; i++ {
				status := run.Results[fmt.Sprintf("t%d", i)].Status
				switch {
				case i < failAt && status != types.TaskStatusSucceeded:
					return false
				case i == failAt && status != types.TaskStatusFailed:
					return false
				case i > failAt && status != types.TaskStatusSkipped:
					return false
				}
			}

			// 跳过的任务不应被执行
			return len(f.order) == failAt+1
		},
		gen.IntRange(1, 8),
		gen.IntRange(0, 7),
		gen.IntRange(1, 4),
	))

	// Property: 每个任务恰好终结一次，运行状态与任务状态一致
	properties.Property("all tasks reach a terminal state", prop.ForAll(
		func(k, workers int) bool {
			f := newFakeRunner()
			o := New(f, nil, Options{Workers: workers})

			run, err := o.Execute(context.Background(), fanOutPipeline(k))
			if err != nil {
				return false
			}
			if run.Status != types.RunStatusCompleted {
				return false
			}
			for _, r := range run.Results {
				if r.Status != types.TaskStatusSucceeded {
					return false
				}
			}
			// 每个任务只执行一次
			seen := make(map[string]bool)
			for _, id := range f.order {
				if seen[id] {
					return false
				}
				seen[id] = true
			}
			return len(f.order) == k+1
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, 4),
	))

	// Property: 根任务失败时所有叶子任务都被跳过且从未执行
	properties.Property("failed root skips every leaf", prop.ForAll(
		func(k, workers int) bool {
			f := newFakeRunner()
			f.errs["root"] = fmt.Errorf("根任务注入失败")

			o := New(f, nil, Options{Workers: workers, OnFailure: PolicySkipDownstream})
			run, err := o.Execute(context.Background(), fanOutPipeline(k))
			if err != nil {
				return false
			}
			if run.Status != types.RunStatusFailed {
				return false
			}
			for i := 0; i < k; i++ {
				if run.Results[fmt.Sprintf("leaf%d", i)].Status != types.TaskStatusSkipped {
					return false
				}
			}
			return len(f.order) == 1
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
