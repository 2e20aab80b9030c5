package tool

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/crew-engine/pkg/types"
)

// fakeTool 测试用工具实现
type fakeTool struct {
	name      string
	cacheable bool
	calls     atomic.Int64
	fn        func(ctx context.Context, params map[string]any) (*types.ToolResult, error)
}

func (f *fakeTool) Definition() *types.ToolDefinition {
	return &types.ToolDefinition{
		Name:        f.name,
		Description: "test tool",
		Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
	}
}

func (f *fakeTool) Cacheable() bool { return f.cacheable }

func (f *fakeTool) Execute(ctx context.Context, params map[string]any) (*types.ToolResult, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(ctx, params)
	}
	return &types.ToolResult{Content: "ok"}, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "alpha"}))
	assert.True(t, r.Has("alpha"))
	assert.Equal(t, 1, r.Count())

	got, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Definition().Name)
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "alpha"}))
	err := r.Register(&fakeTool{name: "alpha"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha")
}

func TestRegistry_RegisterNil(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(nil))
}

func TestRegistry_RegisterEmptyName(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(&fakeTool{name: ""}))
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&fakeTool{name: "alpha"})
	assert.Panics(t, func() {
		r.MustRegister(&fakeTool{name: "alpha"})
	})
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "charlie"}))
	require.NoError(t, r.Register(&fakeTool{name: "alpha"}))
	require.NoError(t, r.Register(&fakeTool{name: "bravo"}))

	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, r.Names())

	defs := r.List()
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "charlie", defs[2].Name)
}
