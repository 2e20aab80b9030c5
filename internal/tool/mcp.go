package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"yqhp/crew-engine/pkg/logger"
	"yqhp/crew-engine/pkg/types"
)

// defaultMCPCallTimeout MCP 工具调用默认超时时间
const defaultMCPCallTimeout = 60 * time.Second

// MCPSource 一个已连接的 MCP 服务器，向注册表贡献远程工具。
type MCPSource struct {
	spec   types.MCPServerSpec
	client *client.Client

	mu    sync.Mutex
	tools []mcp.Tool
}

// Name 返回服务器在流水线定义里的名称。
func (s *MCPSource) Name() string {
	return s.spec.Name
}

// ConnectMCPServer 按配置连接 MCP 服务器并完成初始化握手。
func ConnectMCPServer(ctx context.Context, spec types.MCPServerSpec) (*MCPSource, error) {
	c, err := createMCPClient(spec)
	if err != nil {
		return nil, fmt.Errorf("创建 MCP 客户端失败: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "crew-engine",
		Version: "1.0.0",
	}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION

	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("初始化 MCP 连接失败: %w", err)
	}

	logger.Info("已连接 MCP 服务器",
		zap.String("server", spec.Name),
		zap.String("transport", spec.Transport))

	return &MCPSource{spec: spec, client: c}, nil
}

// createMCPClient 根据传输方式创建 MCP 客户端
func createMCPClient(spec types.MCPServerSpec) (*client.Client, error) {
	switch spec.Transport {
	case "stdio":
		if spec.Command == "" {
			return nil, fmt.Errorf("stdio 传输方式需要指定 command")
		}
		return client.NewStdioMCPClient(spec.Command, envMapToSlice(spec.Env), spec.Args...)
	case "sse":
		if spec.URL == "" {
			return nil, fmt.Errorf("sse 传输方式需要指定 url")
		}
		c, err := client.NewSSEMCPClient(spec.URL)
		if err != nil {
			return nil, err
		}
		// SSE 客户端需要手动启动
		if err := c.Start(context.Background()); err != nil {
			return nil, fmt.Errorf("启动 SSE 连接失败: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("不支持的传输方式: %s", spec.Transport)
	}
}

// Tools 列出服务器暴露的工具并包装为本地 Tool。
// spec.Tools 非空时按名单过滤。
func (s *MCPSource) Tools(ctx context.Context) ([]Tool, error) {
	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("获取 MCP 工具列表失败: %w", err)
	}

	allowed := make(map[string]bool, len(s.spec.Tools))
	for _, name := range s.spec.Tools {
		allowed[name] = true
	}

	s.mu.Lock()
	s.tools = result.Tools
	s.mu.Unlock()

	tools := make([]Tool, 0, len(result.Tools))
	for _, remote := range result.Tools {
		if len(allowed) > 0 && !allowed[remote.Name] {
			continue
		}
		schemaBytes, err := json.Marshal(remote.InputSchema)
		if err != nil {
			logger.Warn("序列化 MCP 工具 schema 失败，跳过该工具",
				zap.String("server", s.spec.Name),
				zap.String("tool", remote.Name),
				zap.Error(err))
			continue
		}
		tools = append(tools, &mcpTool{
			source: s,
			def: &types.ToolDefinition{
				Name:        remote.Name,
				Description: remote.Description,
				Parameters:  schemaBytes,
			},
		})
	}
	return tools, nil
}

// callTimeout 返回该服务器的单次调用超时。
func (s *MCPSource) callTimeout() time.Duration {
	if s.spec.TimeoutSeconds > 0 {
		return time.Duration(s.spec.TimeoutSeconds) * time.Second
	}
	return defaultMCPCallTimeout
}

// Close 关闭与服务器的连接。
func (s *MCPSource) Close() error {
	return s.client.Close()
}

// mcpTool 将一个 MCP 远程工具适配为本地 Tool 接口。
type mcpTool struct {
	source *MCPSource
	def    *types.ToolDefinition
}

// Definition 返回远程工具的定义信息
func (t *mcpTool) Definition() *types.ToolDefinition {
	return t.def
}

// Cacheable 远程工具语义未知，保守起见可缓存交由服务器幂等性保证。
func (t *mcpTool) Cacheable() bool { return true }

// Execute 调用远程工具
func (t *mcpTool) Execute(ctx context.Context, params map[string]any) (*types.ToolResult, error) {
	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = t.def.Name
	callReq.Params.Arguments = params

	ctx, cancel := context.WithTimeout(ctx, t.source.callTimeout())
	defer cancel()

	result, err := t.source.client.CallTool(ctx, callReq)
	if err != nil {
		// 传输层故障，交给调用通道重试
		return nil, fmt.Errorf("MCP 工具 %s 调用失败: %w", t.def.Name, err)
	}
	return convertCallToolResult(result), nil
}

// convertCallToolResult 将 MCP CallToolResult 转换为 ToolResult
func convertCallToolResult(result *mcp.CallToolResult) *types.ToolResult {
	var content string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			if content != "" {
				content += "\n"
			}
			content += tc.Text
		}
	}

	// 没有文本内容时尝试 JSON 序列化整个 Content
	if content == "" && len(result.Content) > 0 {
		if data, err := json.Marshal(result.Content); err == nil {
			content = string(data)
		}
	}

	return &types.ToolResult{
		Content: content,
		IsError: result.IsError,
	}
}

// envMapToSlice 将环境变量 map 转换为 KEY=VALUE 切片
func envMapToSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}
