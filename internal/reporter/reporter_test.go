package reporter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/crew-engine/pkg/types"
)

type stubReporter struct {
	name     string
	reported int
	closed   bool
	err      error
}

func (s *stubReporter) Name() string { return s.name }

func (s *stubReporter) Report(ctx context.Context, run *types.PipelineRun) error {
	s.reported++
	return s.err
}

func (s *stubReporter) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

func sampleRun() *types.PipelineRun {
	return &types.PipelineRun{
		RunID:      "run-1",
		PipelineID: "market-research",
		Status:     types.RunStatusCompleted,
		Results:    map[string]*types.TaskResult{},
	}
}

func TestRegistry_RegisterAndCreate(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(TypeConsole, func(config map[string]any) (Reporter, error) {
		return &stubReporter{name: "console"}, nil
	}))

	assert.True(t, registry.HasType(TypeConsole))
	assert.False(t, registry.HasType(TypeJSON))

	r, err := registry.Create(TypeConsole, nil)
	require.NoError(t, err)
	assert.Equal(t, "console", r.Name())
}

func TestRegistry_DuplicateType(t *testing.T) {
	registry := NewRegistry()
	factory := func(config map[string]any) (Reporter, error) { return &stubReporter{}, nil }
	require.NoError(t, registry.Register(TypeJSON, factory))
	assert.Error(t, registry.Register(TypeJSON, factory))
}

func TestRegistry_UnknownType(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Create(Type("bogus"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "未知的报告器类型")
}

func TestDefaultRegistry_HasBuiltins(t *testing.T) {
	registry, err := NewDefaultRegistry()
	require.NoError(t, err)
	assert.ElementsMatch(t, []Type{TypeConsole, TypeJSON, TypeText}, registry.ListTypes())
}

func TestManager_ReportFansOut(t *testing.T) {
	m := NewManager(nil)
	a := &stubReporter{name: "a"}
	b := &stubReporter{name: "b"}
	m.AddReporter(a)
	m.AddReporter(b)

	m.Report(context.Background(), sampleRun())
	assert.Equal(t, 1, a.reported)
	assert.Equal(t, 1, b.reported)
}

func TestManager_FailureDoesNotStopOthers(t *testing.T) {
	m := NewManager(nil)
	failing := &stubReporter{name: "bad", err: errors.New("磁盘已满")}
	ok := &stubReporter{name: "ok"}
	m.AddReporter(failing)
	m.AddReporter(ok)

	// 失败只记日志，不应 panic 也不应阻止后续报告器
	m.Report(context.Background(), sampleRun())
	assert.Equal(t, 1, ok.reported)
}

func TestManager_AddFromConfig(t *testing.T) {
	registry, err := NewDefaultRegistry()
	require.NoError(t, err)
	m := NewManager(registry)

	require.NoError(t, m.AddFromConfig(&Config{Type: TypeConsole, Enabled: false}))
	assert.Empty(t, m.Reporters())

	require.NoError(t, m.AddFromConfig(&Config{Type: TypeConsole, Enabled: true}))
	assert.Len(t, m.Reporters(), 1)

	err = m.AddFromConfig(&Config{Type: Type("bogus"), Enabled: true})
	assert.Error(t, err)
}

func TestManager_Close(t *testing.T) {
	m := NewManager(nil)
	a := &stubReporter{name: "a"}
	m.AddReporter(a)

	require.NoError(t, m.Close(context.Background()))
	assert.True(t, a.closed)
	assert.Empty(t, m.Reporters())
}
