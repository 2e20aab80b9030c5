// Package orchestrator 负责把流水线的任务 DAG 调度到 worker 池上执行：
// 先整体校验，再按依赖就绪顺序派发任务，失败时按策略中止或跳过下游。
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"yqhp/crew-engine/internal/agent"
	"yqhp/crew-engine/internal/metrics"
	"yqhp/crew-engine/internal/schema"
	"yqhp/crew-engine/pkg/logger"
	"yqhp/crew-engine/pkg/types"
)

// FailurePolicy 任务失败后的处理策略
type FailurePolicy string

const (
	// PolicyAbort 一个任务失败即中止整个运行
	PolicyAbort FailurePolicy = "abort"
	// PolicySkipDownstream 只跳过失败任务的下游，独立分支继续执行
	PolicySkipDownstream FailurePolicy = "skip_downstream"
)

// SchemaPolicy 输出 schema 校验失败的处理策略
type SchemaPolicy string

const (
	// SchemaStrict 校验失败视为任务失败
	SchemaStrict SchemaPolicy = "strict"
	// SchemaLenient 校验失败降级为告警，保留原始输出
	SchemaLenient SchemaPolicy = "lenient"
)

// DefaultTaskTimeout 单个任务的默认超时时间
const DefaultTaskTimeout = 10 * time.Minute

// TaskRunner 执行单个任务并返回 Agent 的输出。
// 由 agent.Runner 实现，测试中可替换。
type TaskRunner interface {
	Run(ctx context.Context, spec *types.AgentSpec, task *types.TaskSpec, contextBlock string) (*agent.Output, error)
}

// Options 控制一次运行的调度行为。
type Options struct {
	// Workers 并发执行任务的 worker 数量，默认 1（严格串行）
	Workers int
	// OnFailure 任务失败策略，默认 PolicySkipDownstream
	OnFailure FailurePolicy
	// SchemaMode schema 校验策略，默认 SchemaLenient
	SchemaMode SchemaPolicy
	// TaskTimeout 未单独配置超时的任务使用的默认超时
	TaskTimeout time.Duration
}

func (o Options) normalized() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.OnFailure == "" {
		o.OnFailure = PolicySkipDownstream
	}
	if o.SchemaMode == "" {
		o.SchemaMode = SchemaLenient
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = DefaultTaskTimeout
	}
	return o
}

// Orchestrator 执行流水线的任务 DAG。
type Orchestrator struct {
	runner    TaskRunner
	collector *metrics.Collector
	opts      Options
}

// New 创建 Orchestrator。collector 可为 nil（不输出指标快照）。
func New(runner TaskRunner, collector *metrics.Collector, opts Options) *Orchestrator {
	return &Orchestrator{
		runner:    runner,
		collector: collector,
		opts:      opts.normalized(),
	}
}

// scheduler 维护调度期间的共享状态，所有字段都由 mu 保护。
type scheduler struct {
	mu         sync.Mutex
	indeg      map[string]int
	deps       map[string][]string
	dependents map[string][]string
	remaining  int
	aborted    bool
	queue      chan string
	closed     bool
}

// Execute 运行整个流水线。校验失败时不执行任何任务直接返回错误；
// 任务级失败不作为 error 返回，而是体现在 PipelineRun 的状态里。
func (o *Orchestrator) Execute(ctx context.Context, p *types.Pipeline) (*types.PipelineRun, error) {
	if err := ValidatePipeline(p); err != nil {
		return nil, err
	}

	run := &types.PipelineRun{
		RunID:      uuid.NewString(),
		PipelineID: p.ID,
		Name:       p.Name,
		Status:     types.RunStatusRunning,
		StartTime:  time.Now(),
		Results:    make(map[string]*types.TaskResult, len(p.Tasks)),
		AgentCount: len(p.Agents),
		TaskCount:  len(p.Tasks),
	}
	for _, t := range p.Tasks {
		run.TaskOrder = append(run.TaskOrder, t.ID)
		run.Results[t.ID] = types.NewTaskResult(t.ID)
	}

	logger.Info("开始执行流水线",
		zap.String("run_id", run.RunID),
		zap.String("pipeline", p.ID),
		zap.Int("tasks", len(p.Tasks)),
		zap.Int("workers", o.opts.Workers))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &scheduler{
		indeg:      make(map[string]int, len(p.Tasks)),
		deps:       make(map[string][]string, len(p.Tasks)),
		dependents: make(map[string][]string, len(p.Tasks)),
		remaining:  len(p.Tasks),
		queue:      make(chan string, len(p.Tasks)),
	}
	for _, t := range p.Tasks {
		s.indeg[t.ID] = len(t.DependsOn)
		s.deps[t.ID] = t.DependsOn
		for _, dep := range t.DependsOn {
			s.dependents[dep] = append(s.dependents[dep], t.ID)
		}
	}

	s.mu.Lock()
	for _, t := range p.Tasks {
		if s.indeg[t.ID] == 0 {
			s.queue <- t.ID
		}
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < o.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for taskID := range s.queue {
				o.dispatch(runCtx, cancel, p, run, s, taskID)
			}
		}()
	}
	wg.Wait()

	run.EndTime = time.Now()
	run.Duration = run.EndTime.Sub(run.StartTime)
	if o.collector != nil {
		run.Metrics = o.collector.Snapshot()
	}
	run.Status = o.aggregateStatus(ctx, run, s)

	logger.Info("流水线执行结束",
		zap.String("run_id", run.RunID),
		zap.String("status", string(run.Status)),
		zap.Duration("duration", run.Duration))
	return run, nil
}

// dispatch 执行队列里的一个任务并处理其完成后的调度。
// 被提前标记为终态（中止/取消时跳过）的任务直接丢弃。
func (o *Orchestrator) dispatch(ctx context.Context, cancel context.CancelFunc, p *types.Pipeline, run *types.PipelineRun, s *scheduler, taskID string) {
	s.mu.Lock()
	result := run.Results[taskID]
	if result.Status.IsTerminal() {
		s.mu.Unlock()
		return
	}
	result.Start()
	s.mu.Unlock()

	if ctx.Err() != nil {
		s.mu.Lock()
		result.Skip("运行已取消")
		s.finishLocked(taskID, run)
		s.mu.Unlock()
		return
	}

	o.runTask(ctx, p, run, s, result)

	s.mu.Lock()
	defer s.mu.Unlock()

	if result.Status == types.TaskStatusFailed && o.opts.OnFailure == PolicyAbort {
		s.aborted = true
		cancel()
		for _, id := range run.TaskOrder {
			r := run.Results[id]
			if r.Status == types.TaskStatusPending {
				r.Skip(fmt.Sprintf("任务 %s 失败，运行已中止", taskID))
				s.remaining--
			}
		}
	}
	s.finishLocked(taskID, run)
}

// finishLocked 在 s.mu 持有时调用：登记任务完成，推进其下游的就绪状态，
// 全部任务终结后关闭队列。
func (s *scheduler) finishLocked(taskID string, run *types.PipelineRun) {
	s.remaining--
	s.advanceLocked(taskID, run)
	if s.remaining <= 0 && !s.closed {
		s.closed = true
		close(s.queue)
	}
}

func (s *scheduler) advanceLocked(taskID string, run *types.PipelineRun) {
	for _, next := range s.dependents[taskID] {
		s.indeg[next]--
		if s.indeg[next] != 0 {
			continue
		}
		r := run.Results[next]
		if r.Status.IsTerminal() {
			// 中止时已被批量跳过
			continue
		}
		if failedDep := s.failedDependency(next, run); failedDep != "" {
			r.Skip(fmt.Sprintf("依赖任务 %s 未成功", failedDep))
			s.remaining--
			s.advanceLocked(next, run)
			continue
		}
		s.queue <- next
	}
}

// failedDependency 按声明顺序返回第一个未成功的依赖任务 ID，全部成功时返回空串。
func (s *scheduler) failedDependency(taskID string, run *types.PipelineRun) string {
	for _, dep := range s.deps[taskID] {
		if run.Results[dep].Status != types.TaskStatusSucceeded {
			return dep
		}
	}
	return ""
}

// mutate 在调度锁内更新任务结果。
// 中止时的批量跳过会在锁内读取所有结果的状态，任何结果写入都必须走这里。
func (s *scheduler) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
}

// runTask 执行单个任务并把结果写入 result。只在这里写任务的终态，
// 所有写入都经由 s.mutate 与其他 worker 的状态读取互斥。
func (o *Orchestrator) runTask(ctx context.Context, p *types.Pipeline, run *types.PipelineRun, s *scheduler, result *types.TaskResult) {
	task, _ := p.TaskByID(result.TaskID)
	agentSpec, _ := p.AgentByID(task.AgentID)

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = o.opts.TaskTimeout
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	contextBlock := BuildContextBlock(task, run.Results)

	logger.Info("开始执行任务",
		zap.String("run_id", run.RunID),
		zap.String("task", task.ID),
		zap.String("agent", agentSpec.ID))

	out, err := o.runner.Run(taskCtx, agentSpec, task, contextBlock)
	if err != nil {
		logger.Error("任务执行失败",
			zap.String("run_id", run.RunID),
			zap.String("task", task.ID),
			zap.Error(err))
		s.mutate(func() { result.Fail(err) })
		return
	}

	if task.Output == nil {
		s.mutate(func() {
			accumulateUsage(result, out)
			result.Succeed(out.Content, nil)
		})
		return
	}

	structured, verr := schema.Validate(out.Content, task.Output)
	if verr == nil {
		s.mutate(func() {
			accumulateUsage(result, out)
			result.Succeed(out.Content, structured)
		})
		return
	}

	if o.opts.SchemaMode != SchemaStrict {
		logger.Warn("任务输出未通过校验，宽松模式下保留原始输出",
			zap.String("run_id", run.RunID),
			zap.String("task", task.ID),
			zap.Error(verr))
		s.mutate(func() {
			accumulateUsage(result, out)
			result.AddWarning(fmt.Sprintf("输出未通过 schema 校验: %s", verr.Error()))
			result.Succeed(out.Content, nil)
		})
		return
	}

	// 严格模式：带着校验错误重新提示一次，仍不合格才算失败
	logger.Warn("任务输出未通过校验，重新提示一次",
		zap.String("run_id", run.RunID),
		zap.String("task", task.ID),
		zap.Error(verr))
	s.mutate(func() {
		accumulateUsage(result, out)
		result.AddWarning(fmt.Sprintf("首次输出未通过 schema 校验: %s", verr.Error()))
	})

	retry, err := o.runner.Run(taskCtx, agentSpec, task, correctionBlock(contextBlock, out.Content, verr))
	if err != nil {
		s.mutate(func() { result.Fail(err) })
		return
	}

	structured, verr = schema.Validate(retry.Content, task.Output)
	if verr != nil {
		logger.Error("重新提示后输出仍未通过校验",
			zap.String("run_id", run.RunID),
			zap.String("task", task.ID),
			zap.Error(verr))
		s.mutate(func() {
			accumulateUsage(result, retry)
			result.Fail(verr)
		})
		return
	}
	s.mutate(func() {
		accumulateUsage(result, retry)
		result.Succeed(retry.Content, structured)
	})
}

// correctionBlock 在原上下文后追加上一次输出和校验错误，提示模型修正。
func correctionBlock(contextBlock, previous string, verr error) string {
	correction := fmt.Sprintf(
		"### 上一次输出未通过校验\n%s\n\n校验错误: %s\n\n请严格按照要求的 JSON 结构重新输出。",
		previous, verr.Error())
	if contextBlock == "" {
		return correction
	}
	return contextBlock + "\n\n" + correction
}

// accumulateUsage 把一次 Agent 执行的用量累加到任务结果上。
func accumulateUsage(result *types.TaskResult, out *agent.Output) {
	result.ToolCalls += out.ToolCalls
	result.ModelCalls += out.ModelCalls
	result.PromptTokens += out.PromptTokens
	result.CompletionTokens += out.CompletionTokens
	result.TotalTokens += out.TotalTokens
	for _, w := range out.Warnings {
		result.AddWarning(w)
	}
}

func (o *Orchestrator) aggregateStatus(ctx context.Context, run *types.PipelineRun, s *scheduler) types.RunStatus {
	if ctx.Err() != nil {
		return types.RunStatusCancelled
	}

	var succeeded, failed, skipped int
	for _, r := range run.Results {
		switch r.Status {
		case types.TaskStatusSucceeded:
			succeeded++
		case types.TaskStatusFailed:
			failed++
		case types.TaskStatusSkipped:
			skipped++
		}
	}

	switch {
	case failed == 0 && skipped == 0:
		return types.RunStatusCompleted
	case s.aborted:
		return types.RunStatusFailed
	case succeeded > 0:
		return types.RunStatusPartiallyFailed
	default:
		return types.RunStatusFailed
	}
}
