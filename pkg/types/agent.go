package types

// AgentSpec Agent 配置：一个绑定了模型和工具白名单的角色画像。
// 在流水线配置阶段创建，构建完成后不可变。
type AgentSpec struct {
	ID        string `yaml:"id" json:"id"`
	Role      string `yaml:"role" json:"role"`
	Goal      string `yaml:"goal" json:"goal"`
	Backstory string `yaml:"backstory,omitempty" json:"backstory,omitempty"`

	// Tools 允许该 Agent 调用的工具名称白名单
	Tools []string `yaml:"tools,omitempty" json:"tools,omitempty"`

	// Model 绑定的模型配置
	Model ModelConfig `yaml:"model" json:"model"`

	// MaxIterations 每个任务允许的最大工具调用轮数，0 使用默认值
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

// ModelConfig 模型提供方配置。
type ModelConfig struct {
	Provider    string   `yaml:"provider" json:"provider"`
	Model       string   `yaml:"model" json:"model"`
	APIKey      string   `yaml:"api_key" json:"api_key"`
	BaseURL     string   `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIVersion  string   `yaml:"api_version,omitempty" json:"api_version,omitempty"`
	Temperature *float32 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	TopP        *float32 `yaml:"top_p,omitempty" json:"top_p,omitempty"`
}

// AllowsTool 检查工具名是否在白名单中。
func (a *AgentSpec) AllowsTool(name string) bool {
	for _, t := range a.Tools {
		if t == name {
			return true
		}
	}
	return false
}
