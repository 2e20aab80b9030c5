package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/net/html"

	"yqhp/crew-engine/pkg/types"
)

const (
	// defaultFetchTimeout 页面抓取默认超时时间
	defaultFetchTimeout = 30 * time.Second

	// maxFetchBodySize 抓取正文最大长度（字符），超过则截断
	maxFetchBodySize = 16 * 1024
)

// WebFetchTool 网页抓取工具，下载页面并提取可读文本。
type WebFetchTool struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// NewWebFetchTool 创建网页抓取工具。
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{
		client:  sharedHTTPClient(),
		timeout: defaultFetchTimeout,
	}
}

// Definition 返回网页抓取工具的定义信息
func (t *WebFetchTool) Definition() *types.ToolDefinition {
	return &types.ToolDefinition{
		Name:        "website_fetch",
		Description: "抓取指定 URL 的网页并提取标题和正文文本",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {
					"type": "string",
					"description": "要抓取的页面 URL"
				}
			},
			"required": ["url"]
		}`),
	}
}

// Cacheable 抓取是幂等查询，结果可缓存。
func (t *WebFetchTool) Cacheable() bool { return true }

// Execute 执行页面抓取
func (t *WebFetchTool) Execute(ctx context.Context, params map[string]any) (*types.ToolResult, error) {
	rawURL, ok := StringParam(params, "url")
	if !ok || strings.TrimSpace(rawURL) == "" {
		return &types.ToolResult{
			IsError: true,
			Content: "缺少必填参数: url",
		}, nil
	}
	rawURL = strings.TrimSpace(rawURL)
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return &types.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("仅支持 http/https URL: %s", rawURL),
		}, nil
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rawURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", "crew-engine/1.0")

	if err := t.client.DoRedirects(req, resp, 5); err != nil {
		return nil, fmt.Errorf("抓取页面失败: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		if resp.StatusCode() >= 500 {
			return nil, fmt.Errorf("页面返回 %d", resp.StatusCode())
		}
		return &types.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("页面返回 %d", resp.StatusCode()),
		}, nil
	}

	title, text, err := ExtractReadableText(string(resp.Body()))
	if err != nil {
		return &types.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("解析 HTML 失败: %v", err),
		}, nil
	}

	result := map[string]string{
		"url":   rawURL,
		"title": title,
		"text":  truncate(text, maxFetchBodySize),
	}
	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("序列化抓取结果失败: %w", err)
	}
	return &types.ToolResult{Content: string(out)}, nil
}

// ExtractReadableText 解析 HTML，返回页面标题与可读正文。
// 跳过 script/style/noscript 等不可见节点，文本块之间以换行分隔。
func ExtractReadableText(rawHTML string) (title, text string, err error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", "", err
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		case html.TextNode:
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, sb.String(), nil
}
