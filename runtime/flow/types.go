// Package flow holds the declarative data model of a flow graph: the
// mapping of executable ids to action invocations and loops, and the
// root action config that wraps a flow with a default model and timeout.
package flow

import "fmt"

// ExecutableId names a node in a FlowConfig. It never carries a loop-scope
// prefix; that is the job of engine.TaskID.
type ExecutableId string

// ActionName names a registered action type (action.Registry key).
type ActionName string

// VarName names a user-supplied variable or a loop's bound iteration name.
type VarName string

// FlowConfig maps executable ids to their definitions. Insertion order is
// preserved (via Order) because the last entry is the default output when
// ActionConfig.DefaultOutput is unset.
type FlowConfig struct {
	Order       []ExecutableId
	Executables map[ExecutableId]Executable
}

// NewFlowConfig returns an empty, initialized FlowConfig.
func NewFlowConfig() *FlowConfig {
	return &FlowConfig{Executables: make(map[ExecutableId]Executable)}
}

// Set inserts or replaces an executable, recording insertion order once.
func (f *FlowConfig) Set(id ExecutableId, e Executable) {
	if _, exists := f.Executables[id]; !exists {
		f.Order = append(f.Order, id)
	}
	f.Executables[id] = e
}

// Get returns the executable for id and whether it was found.
func (f *FlowConfig) Get(id ExecutableId) (Executable, bool) {
	e, ok := f.Executables[id]
	return e, ok
}

// Has reports whether id is defined in this flow scope.
func (f *FlowConfig) Has(id ExecutableId) bool {
	_, ok := f.Executables[id]
	return ok
}

// Merge returns a new FlowConfig containing this flow's executables
// overlaid with other's (other wins on id collision). Used when a loop's
// inner flow is merged with the outer flow for dependency lookups.
func (f *FlowConfig) Merge(other *FlowConfig) *FlowConfig {
	merged := NewFlowConfig()
	for _, id := range f.Order {
		merged.Set(id, f.Executables[id])
	}
	for _, id := range other.Order {
		merged.Set(id, other.Executables[id])
	}
	return merged
}

// LastId returns the id of the last-inserted executable, used to resolve
// ActionConfig.DefaultOutput when it is unset. Returns ("", false) when the
// flow is empty.
func (f *FlowConfig) LastId() (ExecutableId, bool) {
	if len(f.Order) == 0 {
		return "", false
	}
	return f.Order[len(f.Order)-1], true
}

// Executable is a tagged union over ActionInvocation and Loop. Exactly one
// of Action / Loop is non-nil after a successful parse.
type Executable struct {
	Action *ActionInvocation
	Loop   *Loop
}

// IsAction reports whether this executable is an action invocation.
func (e Executable) IsAction() bool { return e.Action != nil }

// IsLoop reports whether this executable is a loop.
func (e Executable) IsLoop() bool { return e.Loop != nil }

// ActionInvocation is `{ action, cache_key?, <input fields>: Expression }`.
// Inputs holds every key other than "action" and "cache_key", keyed by
// field name, value still in its raw (unparsed) form from the document.
type ActionInvocation struct {
	Action   ActionName
	CacheKey any // raw value spec, nil if unset
	Inputs   map[string]any
}

// Loop is `{ for, in, flow }`: a dynamic fan-out over an iterable, running
// its inner FlowConfig once per element with `for` bound to that element.
type Loop struct {
	For  VarName
	In   any // raw value spec for the iterable
	Flow *FlowConfig
}

// ActionConfig is the parsed root document: default model, action timeout,
// the top-level flow, and an optional default output path.
type ActionConfig struct {
	DefaultModel  map[string]any // raw value specs; the engine passes them to actions unrendered
	ActionTimeout int            // seconds, default 360
	Flow          *FlowConfig
	DefaultOutput string // dotted path; if empty, resolved from Flow.LastId()
}

const DefaultActionTimeoutSeconds = 360

// ResolveDefaultOutput returns the configured default output, or the id of
// the flow's last entry when none was configured.
func (c *ActionConfig) ResolveDefaultOutput() (string, error) {
	if c.DefaultOutput != "" {
		return c.DefaultOutput, nil
	}
	id, ok := c.Flow.LastId()
	if !ok {
		return "", fmt.Errorf("flow: empty flow has no default output")
	}
	return string(id), nil
}
