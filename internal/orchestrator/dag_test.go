package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/crew-engine/pkg/types"
)

func validPipeline() *types.Pipeline {
	return &types.Pipeline{
		ID: "market-research",
		Agents: []types.AgentSpec{
			{ID: "researcher", Role: "市场研究员"},
			{ID: "analyst", Role: "分析师"},
		},
		Tasks: []types.TaskSpec{
			{ID: "research", AgentID: "researcher", Description: "调研市场"},
			{ID: "analysis", AgentID: "analyst", Description: "分析数据", DependsOn: []string{"research"}},
		},
	}
}

func TestValidatePipeline_Valid(t *testing.T) {
	assert.NoError(t, ValidatePipeline(validPipeline()))
}

func TestValidatePipeline_NilAndEmpty(t *testing.T) {
	assert.Error(t, ValidatePipeline(nil))

	p := validPipeline()
	p.Agents = nil
	assert.Error(t, ValidatePipeline(p))

	p = validPipeline()
	p.Tasks = nil
	assert.Error(t, ValidatePipeline(p))
}

func TestValidatePipeline_DuplicateIDs(t *testing.T) {
	p := validPipeline()
	p.Agents = append(p.Agents, types.AgentSpec{ID: "researcher", Role: "r"})
	err := ValidatePipeline(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate agent id")

	p = validPipeline()
	p.Tasks = append(p.Tasks, types.TaskSpec{ID: "research", AgentID: "analyst", Description: "x"})
	err = ValidatePipeline(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate task id")
}

func TestValidatePipeline_UnknownAgent(t *testing.T) {
	p := validPipeline()
	p.Tasks[1].AgentID = "ghost"
	err := ValidatePipeline(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent: ghost")
}

func TestValidatePipeline_UnknownDependency(t *testing.T) {
	p := validPipeline()
	p.Tasks[1].DependsOn = []string{"missing"}
	err := ValidatePipeline(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task: missing")
}

func TestValidatePipeline_SelfDependency(t *testing.T) {
	p := validPipeline()
	p.Tasks[0].DependsOn = []string{"research"}
	err := ValidatePipeline(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends on itself")
}

func TestValidatePipeline_DuplicateDependency(t *testing.T) {
	p := validPipeline()
	p.Tasks[1].DependsOn = []string{"research", "research"}
	err := ValidatePipeline(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate dependency")
}

func TestValidatePipeline_Cycle(t *testing.T) {
	p := validPipeline()
	p.Tasks[0].DependsOn = []string{"analysis"}

	err := ValidatePipeline(p)
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []string{"research", "analysis"}, cycleErr.Tasks)
}

func TestValidatePipeline_CycleNamesDownstreamToo(t *testing.T) {
	p := validPipeline()
	p.Agents = append(p.Agents, types.AgentSpec{ID: "writer", Role: "写手"})
	p.Tasks[0].DependsOn = []string{"analysis"}
	p.Tasks = append(p.Tasks, types.TaskSpec{
		ID: "report", AgentID: "writer", Description: "写报告",
		DependsOn: []string{"analysis"},
	})

	err := ValidatePipeline(p)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Tasks, "report")
}
