package orchestrator

import (
	"fmt"
	"sort"

	"yqhp/crew-engine/pkg/types"
)

// ValidatePipeline checks the pipeline definition before any task runs:
// unique IDs, resolvable agent and dependency references, and an acyclic
// task graph. The first problem found is returned.
func ValidatePipeline(p *types.Pipeline) error {
	if p == nil {
		return NewValidationError("", "pipeline is nil")
	}
	if len(p.Agents) == 0 {
		return NewValidationError("agents", "at least one agent is required")
	}
	if len(p.Tasks) == 0 {
		return NewValidationError("tasks", "at least one task is required")
	}

	agentIDs := make(map[string]bool, len(p.Agents))
	for i, a := range p.Agents {
		if a.ID == "" {
			return NewValidationError(fmt.Sprintf("agents[%d].id", i), "agent id is required")
		}
		if a.Role == "" {
			return NewValidationError(fmt.Sprintf("agents[%d].role", i), "agent role is required")
		}
		if agentIDs[a.ID] {
			return NewValidationError("agents", fmt.Sprintf("duplicate agent id: %s", a.ID))
		}
		agentIDs[a.ID] = true
	}

	taskIDs := make(map[string]bool, len(p.Tasks))
	for i, t := range p.Tasks {
		if t.ID == "" {
			return NewValidationError(fmt.Sprintf("tasks[%d].id", i), "task id is required")
		}
		if taskIDs[t.ID] {
			return NewValidationError("tasks", fmt.Sprintf("duplicate task id: %s", t.ID))
		}
		taskIDs[t.ID] = true
		if t.Description == "" {
			return NewValidationError(fmt.Sprintf("tasks[%d].description", i), "task description is required")
		}
		if !agentIDs[t.AgentID] {
			return NewValidationError(fmt.Sprintf("tasks[%d].agent", i),
				fmt.Sprintf("task %s references unknown agent: %s", t.ID, t.AgentID))
		}
	}

	for _, t := range p.Tasks {
		seen := make(map[string]bool, len(t.DependsOn))
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return NewValidationError("tasks",
					fmt.Sprintf("task %s depends on itself", t.ID))
			}
			if !taskIDs[dep] {
				return NewValidationError("tasks",
					fmt.Sprintf("task %s depends on unknown task: %s", t.ID, dep))
			}
			if seen[dep] {
				return NewValidationError("tasks",
					fmt.Sprintf("task %s declares duplicate dependency: %s", t.ID, dep))
			}
			seen[dep] = true
		}
	}

	return detectCycle(p.Tasks)
}

// detectCycle runs Kahn's algorithm; tasks left unprocessed are part of
// a cycle or downstream of one.
func detectCycle(tasks []types.TaskSpec) error {
	indeg := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		indeg[t.ID] = len(t.DependsOn)
		for _, dep := range t.DependsOn {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var queue []string
	for _, t := range tasks {
		if indeg[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, next := range dependents[id] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if processed == len(tasks) {
		return nil
	}

	var cyclic []string
	for id, d := range indeg {
		if d > 0 {
			cyclic = append(cyclic, id)
		}
	}
	sort.Strings(cyclic)
	return &CycleError{Tasks: cyclic}
}
