package engine

import (
	"fmt"

	"flowdag/runtime/flow"
)

// Scope is the resolution context at one point in the DAG: the task-id
// prefix in effect (empty at top level, "parentId[i]." inside a loop),
// the flow visible from here (outer merged with an enclosing loop's inner
// flow, per §4.4 step 2: "recursively stream every executable in the
// inner flow (merged with the outer flow for dependency lookup)"), and
// the variable map (user variables plus any loop-bound variable).
type Scope struct {
	Prefix TaskID
	Flow   *flow.FlowConfig
	Vars   map[string]any
}

// RootScope is the top-level scope: no prefix, the document's flow, the
// caller-supplied variables.
func RootScope(fc *flow.FlowConfig, vars map[string]any) Scope {
	if vars == nil {
		vars = map[string]any{}
	}
	return Scope{Flow: fc, Vars: vars}
}

// TaskID composes the scoped task id for an executable defined in this
// scope's flow.
func (s Scope) TaskID(id flow.ExecutableId) TaskID {
	return TaskID(string(s.Prefix) + string(id))
}

// ChildLoopScope returns the scope inside loop's inner flow at iteration
// index i, with forVar bound to item (§4.4 step 2).
func (s Scope) ChildLoopScope(loop *flow.Loop, loopTaskID TaskID, index int, item any) Scope {
	vars := make(map[string]any, len(s.Vars)+1)
	for k, v := range s.Vars {
		vars[k] = v
	}
	vars[string(loop.For)] = item
	return Scope{
		Prefix: TaskID(fmt.Sprintf("%s[%d].", loopTaskID, index)),
		Flow:   s.Flow.Merge(loop.Flow),
		Vars:   vars,
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
