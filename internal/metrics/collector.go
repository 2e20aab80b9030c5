// Package metrics 收集单次运行的计数与延迟指标。
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"yqhp/crew-engine/pkg/types"
)

// Collector 运行级指标收集器，并发安全。
// 计数走原子变量，延迟分布走 HDR 直方图。
type Collector struct {
	toolCalls   atomic.Int64
	modelCalls  atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	totalTokens atomic.Int64

	mu      sync.Mutex
	latency *hdrhistogram.Histogram
}

// NewCollector 创建指标收集器。
// 延迟直方图量程 1ms ~ 10min，3 位有效数字。
func NewCollector() *Collector {
	return &Collector{
		latency: hdrhistogram.New(1, int64(10*time.Minute/time.Millisecond), 3),
	}
}

// RecordToolCall 记录一次实际发生的外部工具调用及其耗时。
func (c *Collector) RecordToolCall(d time.Duration) {
	c.toolCalls.Add(1)
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	c.mu.Lock()
	_ = c.latency.RecordValue(ms)
	c.mu.Unlock()
}

// RecordModelCall 记录一次模型调用及其 token 消耗。
func (c *Collector) RecordModelCall(totalTokens int) {
	c.modelCalls.Add(1)
	if totalTokens > 0 {
		c.totalTokens.Add(int64(totalTokens))
	}
}

// RecordCacheHit 记录缓存命中。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Add(1)
}

// RecordCacheMiss 记录缓存未命中。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Add(1)
}

// ToolCalls 返回工具调用总数。
func (c *Collector) ToolCalls() int64 {
	return c.toolCalls.Load()
}

// CacheHits 返回缓存命中总数。
func (c *Collector) CacheHits() int64 {
	return c.cacheHits.Load()
}

// Snapshot 导出当前指标快照。
func (c *Collector) Snapshot() types.RunMetricsSnapshot {
	snap := types.RunMetricsSnapshot{
		ToolCalls:   c.toolCalls.Load(),
		ModelCalls:  c.modelCalls.Load(),
		CacheHits:   c.cacheHits.Load(),
		CacheMisses: c.cacheMisses.Load(),
		TotalTokens: c.totalTokens.Load(),
	}
	c.mu.Lock()
	if c.latency.TotalCount() > 0 {
		snap.ToolLatencyP50Ms = float64(c.latency.ValueAtQuantile(50))
		snap.ToolLatencyP95Ms = float64(c.latency.ValueAtQuantile(95))
		snap.ToolLatencyMaxMs = float64(c.latency.Max())
	}
	c.mu.Unlock()
	return snap
}
