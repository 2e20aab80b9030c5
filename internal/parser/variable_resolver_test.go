package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Env(t *testing.T) {
	t.Setenv("CREW_TEST_VAR", "value-1")

	r := NewDefaultVariableResolver()
	v, err := r.Resolve("env:CREW_TEST_VAR")
	require.NoError(t, err)
	assert.Equal(t, "value-1", v)

	_, err = r.Resolve("env:CREW_TEST_MISSING")
	assert.Error(t, err)
}

func TestResolve_Input(t *testing.T) {
	r := NewDefaultVariableResolver().WithInputs(map[string]any{"market": "宠物保险", "year": 2026})

	v, err := r.Resolve("input:market")
	require.NoError(t, err)
	assert.Equal(t, "宠物保险", v)

	// 简写形式
	v, err = r.Resolve("year")
	require.NoError(t, err)
	assert.Equal(t, 2026, v)

	_, err = r.Resolve("input:missing")
	assert.Error(t, err)
}

func TestResolve_UnknownPrefix(t *testing.T) {
	r := NewDefaultVariableResolver()
	_, err := r.Resolve("vault:key")
	require.Error(t, err)
	var vErr *VariableResolutionError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "vault:key", vErr.Ref)
}

func TestMergeInputs_OverridesDefaults(t *testing.T) {
	r := NewDefaultVariableResolver().
		WithInputs(map[string]any{"market": "默认市场", "region": "华东"}).
		MergeInputs(map[string]any{"market": "宠物保险"})

	v, err := r.Resolve("market")
	require.NoError(t, err)
	assert.Equal(t, "宠物保险", v)

	v, err = r.Resolve("region")
	require.NoError(t, err)
	assert.Equal(t, "华东", v)
}

func TestResolveString(t *testing.T) {
	r := NewDefaultVariableResolver().WithInputs(map[string]any{"market": "宠物保险", "year": 2026})

	s, err := r.ResolveString("调研${input:market}在${year}年的机会")
	require.NoError(t, err)
	assert.Equal(t, "调研宠物保险在2026年的机会", s)

	// 无引用时原样返回
	s, err = r.ResolveString("没有变量")
	require.NoError(t, err)
	assert.Equal(t, "没有变量", s)

	_, err = r.ResolveString("${input:missing}")
	assert.Error(t, err)
}

func TestExtractVariableReferences(t *testing.T) {
	refs := ExtractVariableReferences("${env:KEY} 和 ${input:market}")
	assert.Equal(t, []string{"env:KEY", "input:market"}, refs)

	assert.True(t, HasVariableReferences("${x}"))
	assert.False(t, HasVariableReferences("plain"))
}
