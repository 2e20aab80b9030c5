package types

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// TaskSpec represents a single unit of pipeline work bound to one agent.
// Immutable after parsing; created at pipeline configuration time.
type TaskSpec struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	AgentID     string `yaml:"agent" json:"agent"`
	Description string `yaml:"description" json:"description"`

	// ExpectedOutput is a free-form description of what the agent should
	// produce, appended to the instruction the way crew-style frameworks do.
	ExpectedOutput string `yaml:"expected_output,omitempty" json:"expected_output,omitempty"`

	// DependsOn lists the task IDs whose structured outputs form this
	// task's visible context. Order is preserved in the rendered context.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	// Output declares the structured output contract, nil means raw-only.
	Output *OutputSchema `yaml:"output,omitempty" json:"output,omitempty"`

	// Timeout bounds the whole task execution, 0 uses the run default.
	Timeout time.Duration `yaml:"-" json:"-"`
}

// taskSpecYAML 是 TaskSpec 的 YAML 映射形式，timeout 写成 "30s" 这类时长字符串。
type taskSpecYAML struct {
	ID             string        `yaml:"id"`
	Name           string        `yaml:"name,omitempty"`
	AgentID        string        `yaml:"agent"`
	Description    string        `yaml:"description"`
	ExpectedOutput string        `yaml:"expected_output,omitempty"`
	DependsOn      []string      `yaml:"depends_on,omitempty"`
	Output         *OutputSchema `yaml:"output,omitempty"`
	Timeout        string        `yaml:"timeout,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler to support duration strings.
func (t *TaskSpec) UnmarshalYAML(node *yaml.Node) error {
	var raw taskSpecYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}

	t.ID = raw.ID
	t.Name = raw.Name
	t.AgentID = raw.AgentID
	t.Description = raw.Description
	t.ExpectedOutput = raw.ExpectedOutput
	t.DependsOn = raw.DependsOn
	t.Output = raw.Output

	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("任务 %s 的 timeout 格式不合法: %q", raw.ID, raw.Timeout)
		}
		t.Timeout = d
	}
	return nil
}
