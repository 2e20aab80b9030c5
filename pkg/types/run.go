package types

import "time"

// RunStatus represents the overall status of a pipeline run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is in progress.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted indicates every task succeeded.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusPartiallyFailed indicates at least one task failed but
	// independent branches kept running.
	RunStatusPartiallyFailed RunStatus = "partially_failed"
	// RunStatusFailed indicates the run was aborted by the strict
	// failure policy or produced no successful task.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCancelled indicates the run was cancelled externally;
	// completed task results are preserved.
	RunStatusCancelled RunStatus = "cancelled"
)

// Pipeline is a parsed pipeline definition: the agents, the task DAG and
// the declarative tool/server inventory.
type Pipeline struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Inputs      map[string]any `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Agents      []AgentSpec    `yaml:"agents" json:"agents"`
	Tasks       []TaskSpec     `yaml:"tasks" json:"tasks"`

	// ScriptTools are user-defined tools implemented as JavaScript
	// snippets in the pipeline file.
	ScriptTools []ScriptToolSpec `yaml:"tools,omitempty" json:"tools,omitempty"`

	// MCPServers lists external MCP servers whose tools become
	// available to agents that allow them.
	MCPServers []MCPServerSpec `yaml:"mcp_servers,omitempty" json:"mcp_servers,omitempty"`
}

// AgentByID 按 ID 查找 AgentSpec。
func (p *Pipeline) AgentByID(id string) (*AgentSpec, bool) {
	for i := range p.Agents {
		if p.Agents[i].ID == id {
			return &p.Agents[i], true
		}
	}
	return nil, false
}

// TaskByID 按 ID 查找 TaskSpec。
func (p *Pipeline) TaskByID(id string) (*TaskSpec, bool) {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i], true
		}
	}
	return nil, false
}

// PipelineRun is the full record of one pipeline invocation.
// One PipelineRun exists per invocation; it is serialized to the output
// artifacts at completion.
type PipelineRun struct {
	RunID      string    `json:"run_id"`
	PipelineID string    `json:"pipeline_id"`
	Name       string    `json:"name,omitempty"`
	Status     RunStatus `json:"status"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Duration   time.Duration `json:"duration"`

	// TaskOrder preserves declaration order for reporting.
	TaskOrder []string               `json:"task_order"`
	Results   map[string]*TaskResult `json:"results"`

	Metrics RunMetricsSnapshot `json:"metrics"`

	AgentCount int `json:"agent_count"`
	TaskCount  int `json:"task_count"`
}

// RunMetricsSnapshot 运行级指标快照，随最终产物一起输出。
type RunMetricsSnapshot struct {
	ToolCalls   int64 `json:"tool_calls"`
	ModelCalls  int64 `json:"model_calls"`
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`

	TotalTokens int64 `json:"total_tokens"`

	// Tool call latency distribution in milliseconds.
	ToolLatencyP50Ms float64 `json:"tool_latency_p50_ms"`
	ToolLatencyP95Ms float64 `json:"tool_latency_p95_ms"`
	ToolLatencyMaxMs float64 `json:"tool_latency_max_ms"`
}
