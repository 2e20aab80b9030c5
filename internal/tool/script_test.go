package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/crew-engine/pkg/types"
)

func TestScriptTool_ReturnsLastExpression(t *testing.T) {
	st, err := NewScriptTool(types.ScriptToolSpec{
		Name:        "adder",
		Description: "adds two numbers",
		Script:      `params.a + params.b`,
	})
	require.NoError(t, err)

	result, err := st.Execute(context.Background(), map[string]any{"a": int64(2), "b": int64(3)})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "5", result.Content)
}

func TestScriptTool_ObjectResultIsJSON(t *testing.T) {
	st, err := NewScriptTool(types.ScriptToolSpec{
		Name:   "wrapper",
		Script: `({wrapped: params.value, ok: true})`,
	})
	require.NoError(t, err)

	result, err := st.Execute(context.Background(), map[string]any{"value": "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"wrapped": "x", "ok": true}`, result.Content)
}

func TestScriptTool_SyntaxErrorIsToolError(t *testing.T) {
	st, err := NewScriptTool(types.ScriptToolSpec{
		Name:   "broken",
		Script: `function {`,
	})
	require.NoError(t, err)

	result, err := st.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestScriptTool_EmptyScriptRejected(t *testing.T) {
	_, err := NewScriptTool(types.ScriptToolSpec{Name: "empty", Script: "   "})
	assert.Error(t, err)
}

func TestScriptTool_DefinitionFromParams(t *testing.T) {
	st, err := NewScriptTool(types.ScriptToolSpec{
		Name:        "greet",
		Description: "greets someone",
		Params:      map[string]any{"name": "who to greet"},
		Script:      `"hello " + params.name`,
	})
	require.NoError(t, err)

	def := st.Definition()
	assert.Equal(t, "greet", def.Name)
	assert.Contains(t, string(def.Parameters), `"name"`)
	assert.Contains(t, string(def.Parameters), "who to greet")
}

func TestScriptTool_ConsoleAvailable(t *testing.T) {
	st, err := NewScriptTool(types.ScriptToolSpec{
		Name:   "logger",
		Script: `console.log("debug line"); "done"`,
	})
	require.NoError(t, err)

	result, err := st.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", result.Content)
}
