package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector()
	c.RecordToolCall(10 * time.Millisecond)
	c.RecordToolCall(20 * time.Millisecond)
	c.RecordModelCall(120)
	c.RecordModelCall(0)
	c.RecordCacheHit()
	c.RecordCacheMiss()
	c.RecordCacheMiss()

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.ToolCalls)
	assert.Equal(t, int64(2), snap.ModelCalls)
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, int64(2), snap.CacheMisses)
	assert.Equal(t, int64(120), snap.TotalTokens)
}

func TestCollector_LatencyQuantiles(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= 100; i++ {
		c.RecordToolCall(time.Duration(i) * time.Millisecond)
	}

	snap := c.Snapshot()
	// HDR histograms are approximate at 3 significant digits.
	assert.InDelta(t, 50, snap.ToolLatencyP50Ms, 2)
	assert.InDelta(t, 95, snap.ToolLatencyP95Ms, 2)
	assert.InDelta(t, 100, snap.ToolLatencyMaxMs, 2)
}

func TestCollector_EmptySnapshot(t *testing.T) {
	snap := NewCollector().Snapshot()
	assert.Zero(t, snap.ToolCalls)
	assert.Zero(t, snap.ToolLatencyP95Ms)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordToolCall(5 * time.Millisecond)
				c.RecordCacheMiss()
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(1000), snap.ToolCalls)
	assert.Equal(t, int64(1000), snap.CacheMisses)
}
