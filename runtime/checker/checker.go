// Package checker is the static consistency checker (§4.5, Component G):
// before an engine ever runs an action, walk the dependency graph reachable
// from the target output and confirm every id an expression reads either
// names an executable in scope or a variable the caller declared.
package checker

import (
	"fmt"

	"flowdag/runtime/expr"
	"flowdag/runtime/flow"
)

// Diagnostic is one static-consistency violation.
type Diagnostic struct {
	Path string // dotted chain of executable ids from the target output down to the offending reference
	ID   string // the offending identifier or "<expr>" for a parse failure
	Kind string // "unknown_variable" | "invalid_expression"
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s %q", d.Path, d.Kind, d.ID)
}

// Check walks from config's target output (or its resolved default output
// when targetOutput is empty), recursing through every reachable
// dependency — including into a loop's inner flow with its bound variable
// added — and validates the default model's own expression dependencies
// the same way. varNames is the set of variable names the caller intends
// to supply at run time (§6.2: SetVars).
func Check(config *flow.ActionConfig, targetOutput string, varNames map[string]bool) ([]Diagnostic, error) {
	if targetOutput == "" {
		resolved, err := config.ResolveDefaultOutput()
		if err != nil {
			return nil, err
		}
		targetOutput = resolved
	}
	if varNames == nil {
		varNames = map[string]bool{}
	}

	var diags []Diagnostic
	visited := map[string]bool{}
	rootID := expr.RootOf(targetOutput)
	checkID(config.Flow, rootID, varNames, visited, &diags, "")

	if config.DefaultModel != nil {
		checkRaw(config.Flow, config.DefaultModel, varNames, visited, &diags, "default_model")
	}
	return diags, nil
}

func checkID(fc *flow.FlowConfig, id string, vars map[string]bool, visited map[string]bool, diags *[]Diagnostic, path string) {
	key := fmt.Sprintf("%p/%s", fc, id)
	if visited[key] {
		return
	}
	visited[key] = true

	exec, ok := fc.Get(flow.ExecutableId(id))
	if !ok {
		if !vars[id] {
			*diags = append(*diags, Diagnostic{Path: path, ID: id, Kind: "unknown_variable"})
		}
		return
	}

	newPath := id
	if path != "" {
		newPath = path + "." + id
	}

	switch {
	case exec.IsAction():
		if exec.Action.CacheKey != nil {
			checkRaw(fc, exec.Action.CacheKey, vars, visited, diags, newPath)
		}
		for _, raw := range exec.Action.Inputs {
			checkRaw(fc, raw, vars, visited, diags, newPath)
		}
	case exec.IsLoop():
		checkRaw(fc, exec.Loop.In, vars, visited, diags, newPath)
		innerVars := cloneVars(vars)
		innerVars[string(exec.Loop.For)] = true
		merged := fc.Merge(exec.Loop.Flow)
		for _, childID := range exec.Loop.Flow.Order {
			checkID(merged, string(childID), innerVars, visited, diags, newPath)
		}
	}
}

func checkRaw(fc *flow.FlowConfig, raw any, vars map[string]bool, visited map[string]bool, diags *[]Diagnostic, path string) {
	node, err := expr.Parse(raw)
	if err != nil {
		*diags = append(*diags, Diagnostic{Path: path, ID: "<expr>", Kind: "invalid_expression"})
		return
	}
	for _, d := range node.Dependencies() {
		checkID(fc, d.ID, vars, visited, diags, path)
	}
}

func cloneVars(vars map[string]bool) map[string]bool {
	out := make(map[string]bool, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	return out
}
