package types

import "time"

// TaskStatus represents the status of a task execution.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task is executing.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusSucceeded indicates successful execution.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusFailed indicates failed execution.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped indicates the task was skipped because a
	// dependency failed under the skip-downstream policy.
	TaskStatusSkipped TaskStatus = "skipped"
)

// IsTerminal reports whether the status is a terminal state.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusSkipped:
		return true
	}
	return false
}

// TaskResult contains the result of one task execution.
// 推荐使用 NewTaskResult 创建，执行过程中逐步填充，
// 终态只由执行该任务的 worker 写入一次。
type TaskResult struct {
	TaskID    string     `json:"task_id"`
	Status    TaskStatus `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// RawOutput is the agent's final answer as emitted.
	RawOutput string `json:"raw_output,omitempty"`

	// Structured is the schema-validated output, nil unless the
	// validator accepted the raw output.
	Structured map[string]any `json:"structured,omitempty"`

	Error string `json:"error,omitempty"`

	// Warnings carries non-fatal conditions such as an exhausted
	// iteration budget or a lenient-mode schema violation.
	Warnings []string `json:"warnings,omitempty"`

	// ToolCalls counts tool invocations that actually reached the
	// tool; cache-served requests are excluded.
	ToolCalls  int `json:"tool_calls"`
	ModelCalls int `json:"model_calls"`

	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// NewTaskResult 创建一个 pending 状态的 TaskResult。
func NewTaskResult(taskID string) *TaskResult {
	return &TaskResult{
		TaskID: taskID,
		Status: TaskStatusPending,
	}
}

// Start 标记任务开始执行。
func (r *TaskResult) Start() {
	r.Status = TaskStatusRunning
	r.StartTime = time.Now()
}

// Succeed 标记任务成功并记录结束时间。
func (r *TaskResult) Succeed(raw string, structured map[string]any) {
	r.Status = TaskStatusSucceeded
	r.RawOutput = raw
	r.Structured = structured
	r.finish()
}

// Fail 标记任务失败并记录结束时间。
func (r *TaskResult) Fail(err error) {
	r.Status = TaskStatusFailed
	if err != nil {
		r.Error = err.Error()
	}
	r.finish()
}

// Skip 标记任务因依赖失败被跳过。
func (r *TaskResult) Skip(reason string) {
	now := time.Now()
	r.Status = TaskStatusSkipped
	r.Error = reason
	r.StartTime = now
	r.EndTime = now
}

// AddWarning 附加一条非致命告警。
func (r *TaskResult) AddWarning(w string) {
	r.Warnings = append(r.Warnings, w)
}

func (r *TaskResult) finish() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}
