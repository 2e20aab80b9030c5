// Package agent 驱动单个 Agent 执行任务：组装提示词、运行工具调用循环、
// 返回最终回答。
package agent

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"yqhp/crew-engine/pkg/types"
)

// ModelFactory 创建聊天模型。测试中注入假模型。
type ModelFactory func(ctx context.Context, cfg *types.ModelConfig) (model.ChatModel, error)

// NewChatModel 根据模型配置创建 LLM 聊天模型。
func NewChatModel(ctx context.Context, cfg *types.ModelConfig) (model.ChatModel, error) {
	chatConfig := &openai.ChatModelConfig{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch cfg.Provider {
		case "openai":
			baseURL = "https://api.openai.com/v1"
		case "deepseek":
			baseURL = "https://api.deepseek.com/v1"
		case "azure":
			chatConfig.ByAzure = true
			if cfg.APIVersion == "" {
				chatConfig.APIVersion = "2024-06-01"
			} else {
				chatConfig.APIVersion = cfg.APIVersion
			}
		}
	}
	if baseURL != "" {
		chatConfig.BaseURL = baseURL
	}

	if cfg.Temperature != nil {
		chatConfig.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens != nil {
		chatConfig.MaxTokens = cfg.MaxTokens
	}
	if cfg.TopP != nil {
		chatConfig.TopP = cfg.TopP
	}

	return openai.NewChatModel(ctx, chatConfig)
}

// toSchemaTools 将 ToolDefinition 列表转换为 eino schema 格式
func toSchemaTools(defs []*types.ToolDefinition) []*schema.ToolInfo {
	tools := make([]*schema.ToolInfo, 0, len(defs))
	for _, td := range defs {
		toolInfo := &schema.ToolInfo{
			Name: td.Name,
			Desc: td.Description,
		}
		if len(td.Parameters) > 0 {
			var jsonSchemaMap map[string]any
			if err := json.Unmarshal(td.Parameters, &jsonSchemaMap); err == nil {
				params := jsonSchemaMapToParams(jsonSchemaMap)
				if params != nil {
					toolInfo.ParamsOneOf = schema.NewParamsOneOfByParams(params)
				}
			}
		}
		tools = append(tools, toolInfo)
	}
	return tools
}

// jsonSchemaMapToParams 将 JSON Schema map 转换为 schema.ParameterInfo map
func jsonSchemaMapToParams(schemaMap map[string]any) map[string]*schema.ParameterInfo {
	props, ok := schemaMap["properties"].(map[string]any)
	if !ok {
		return nil
	}

	// 获取 required 字段列表
	requiredSet := make(map[string]bool)
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				requiredSet[s] = true
			}
		}
	}

	params := make(map[string]*schema.ParameterInfo, len(props))
	for name, propRaw := range props {
		prop, ok := propRaw.(map[string]any)
		if !ok {
			continue
		}
		paramInfo := &schema.ParameterInfo{
			Required: requiredSet[name],
		}
		if t, ok := prop["type"].(string); ok {
			paramInfo.Type = schema.DataType(t)
		}
		if desc, ok := prop["description"].(string); ok {
			paramInfo.Desc = desc
		}
		if enumVals, ok := prop["enum"].([]any); ok {
			for _, ev := range enumVals {
				if s, ok := ev.(string); ok {
					paramInfo.Enum = append(paramInfo.Enum, s)
				}
			}
		}
		// 处理嵌套 object
		if paramInfo.Type == schema.Object {
			if subProps := jsonSchemaMapToParams(prop); subProps != nil {
				paramInfo.SubParams = subProps
			}
		}
		// 处理 array 的 items
		if paramInfo.Type == schema.Array {
			if items, ok := prop["items"].(map[string]any); ok {
				elemInfo := &schema.ParameterInfo{}
				if t, ok := items["type"].(string); ok {
					elemInfo.Type = schema.DataType(t)
				}
				if desc, ok := items["description"].(string); ok {
					elemInfo.Desc = desc
				}
				paramInfo.ElemInfo = elemInfo
			}
		}
		params[name] = paramInfo
	}
	return params
}
