package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"yqhp/crew-engine/pkg/types"
)

const (
	// serperEndpoint Serper 搜索 API 地址
	serperEndpoint = "https://google.serper.dev/search"

	// defaultSearchTimeout 搜索请求默认超时时间
	defaultSearchTimeout = 30 * time.Second

	// defaultSearchResults 默认返回结果条数
	defaultSearchResults = 10

	// maxSearchResults 单次最多返回结果条数
	maxSearchResults = 20
)

var (
	// 全局共享的 FastHTTP 客户端，所有工具共享连接池
	globalHTTPClient     *fasthttp.Client
	globalHTTPClientOnce sync.Once
)

func sharedHTTPClient() *fasthttp.Client {
	globalHTTPClientOnce.Do(func() {
		globalHTTPClient = &fasthttp.Client{
			MaxConnsPerHost:     256,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         defaultSearchTimeout,
			WriteTimeout:        defaultSearchTimeout,
		}
	})
	return globalHTTPClient
}

// WebSearchTool 网络搜索工具，调用 Serper API。
type WebSearchTool struct {
	apiKey  string
	client  *fasthttp.Client
	timeout time.Duration
}

// NewWebSearchTool 创建网络搜索工具。
func NewWebSearchTool(apiKey string) *WebSearchTool {
	return &WebSearchTool{
		apiKey:  apiKey,
		client:  sharedHTTPClient(),
		timeout: defaultSearchTimeout,
	}
}

// Definition 返回网络搜索工具的定义信息
func (t *WebSearchTool) Definition() *types.ToolDefinition {
	return &types.ToolDefinition{
		Name:        "web_search",
		Description: "在互联网上搜索指定关键词，返回标题、链接和摘要",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "搜索关键词"
				},
				"num_results": {
					"type": "integer",
					"description": "返回结果条数，默认 10，最多 20"
				}
			},
			"required": ["query"]
		}`),
	}
}

// Cacheable 搜索是幂等查询，结果可缓存。
func (t *WebSearchTool) Cacheable() bool { return true }

// serperRequest Serper API 请求体
type serperRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
}

// serperResponse Serper API 响应体中关心的部分
type serperResponse struct {
	Organic []serperOrganic `json:"organic"`
}

type serperOrganic struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// SearchResult 对模型暴露的单条搜索结果
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Execute 执行网络搜索
func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any) (*types.ToolResult, error) {
	query, ok := StringParam(params, "query")
	if !ok || strings.TrimSpace(query) == "" {
		return &types.ToolResult{
			IsError: true,
			Content: "缺少必填参数: query",
		}, nil
	}

	if t.apiKey == "" {
		return &types.ToolResult{
			IsError: true,
			Content: "未配置搜索 API Key",
		}, nil
	}

	num := defaultSearchResults
	if n, ok := IntParam(params, "num_results"); ok && n > 0 {
		num = n
	}
	if num > maxSearchResults {
		num = maxSearchResults
	}

	body, err := sonic.Marshal(&serperRequest{Query: strings.TrimSpace(query), Num: num})
	if err != nil {
		return nil, fmt.Errorf("序列化搜索请求失败: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(serperEndpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-API-KEY", t.apiKey)
	req.SetBody(body)

	if err := t.client.DoTimeout(req, resp, t.timeout); err != nil {
		// 传输层故障，交给调用通道重试
		return nil, fmt.Errorf("搜索请求失败: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		if resp.StatusCode() >= 500 {
			return nil, fmt.Errorf("搜索服务返回 %d", resp.StatusCode())
		}
		return &types.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("搜索服务返回 %d: %s", resp.StatusCode(), truncate(string(resp.Body()), 512)),
		}, nil
	}

	content, err := FormatSearchResponse(resp.Body())
	if err != nil {
		return &types.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("解析搜索响应失败: %v", err),
		}, nil
	}
	return &types.ToolResult{Content: content}, nil
}

// FormatSearchResponse 将 Serper 响应转换为提供给模型的 JSON 结果列表。
func FormatSearchResponse(body []byte) (string, error) {
	var parsed serperResponse
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return "", err
	}

	results := make([]SearchResult, 0, len(parsed.Organic))
	for _, item := range parsed.Organic {
		results = append(results, SearchResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}
	if len(results) == 0 {
		return `{"results": [], "note": "no results found"}`, nil
	}

	out, err := sonic.MarshalString(map[string]any{"results": results})
	if err != nil {
		return "", err
	}
	return out, nil
}

// truncate 截断超长字符串
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "...(已截断)"
}
