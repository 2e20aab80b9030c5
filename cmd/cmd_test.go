package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInputs(t *testing.T) {
	inputs, err := parseInputs([]string{"market=宠物保险", "year=2026"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"market": "宠物保险", "year": "2026"}, inputs)

	inputs, err = parseInputs(nil)
	require.NoError(t, err)
	assert.Nil(t, inputs)

	_, err = parseInputs([]string{"no-equals"})
	assert.Error(t, err)

	_, err = parseInputs([]string{"=value"})
	assert.Error(t, err)
}

func writeValidPipeline(t *testing.T) string {
	t.Helper()
	content := `
id: demo
agents:
  - id: a
    role: 分析师
    model: {provider: openai, model: gpt-4o-mini}
tasks:
  - id: t1
    agent: a
    description: 做点分析
`
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateCommand(t *testing.T) {
	root := GetRootCmd()
	root.SetArgs([]string{"validate", writeValidPipeline(t)})
	assert.NoError(t, root.Execute())
}

func TestValidateCommand_BadPipeline(t *testing.T) {
	content := `
id: demo
agents:
  - id: a
    role: r
    model: {provider: openai, model: m}
tasks:
  - id: t1
    agent: ghost
    description: d
`
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	root := GetRootCmd()
	root.SetArgs([]string{"validate", path})
	root.SilenceErrors = true
	root.SilenceUsage = true
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent")
}
