package flow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FromFile reads and parses a flow document from disk (§6.1).
func FromFile(path string) (*ActionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flow: read %s: %w", path, err)
	}
	return FromText(string(data))
}

// FromText parses a flow document: a mapping with top-level keys
// default_model, action_timeout, flow, default_output (§6.1). Parsed via
// yaml.Node rather than map[string]any so that a flow's id order survives
// (FlowConfig.Order / LastId depend on document order to resolve an unset
// default_output).
func FromText(text string) (*ActionConfig, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, fmt.Errorf("flow: invalid yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("flow: empty document")
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("flow: document must be a mapping")
	}

	config := &ActionConfig{ActionTimeout: DefaultActionTimeoutSeconds}

	var flowNode *yaml.Node
	for k, v := range pairs(doc) {
		switch k {
		case "default_model":
			var m map[string]any
			if err := v.Decode(&m); err != nil {
				return nil, fmt.Errorf("flow: default_model must be a mapping: %w", err)
			}
			config.DefaultModel = m
		case "action_timeout":
			var seconds int
			if err := v.Decode(&seconds); err != nil {
				return nil, fmt.Errorf("flow: action_timeout: %w", err)
			}
			config.ActionTimeout = seconds
		case "default_output":
			var s string
			if err := v.Decode(&s); err != nil {
				return nil, fmt.Errorf("flow: default_output must be a string: %w", err)
			}
			config.DefaultOutput = s
		case "flow":
			flowNode = v
		}
	}
	if flowNode == nil {
		return nil, fmt.Errorf("flow: document missing required 'flow' key")
	}

	parsedFlow, err := parseFlowConfig(flowNode)
	if err != nil {
		return nil, fmt.Errorf("flow: %w", err)
	}
	config.Flow = parsedFlow

	return config, nil
}

// pairs walks a yaml MappingNode's key/value pairs in document order.
func pairs(node *yaml.Node) func(func(string, *yaml.Node) bool) {
	return func(yield func(string, *yaml.Node) bool) {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if !yield(node.Content[i].Value, node.Content[i+1]) {
				return
			}
		}
	}
}

// fieldNodes indexes a mapping node's key/value pairs by key for lookup; the
// id→executable mapping one level up (parseFlowConfig) is the only place
// document order matters, so field-level lookups here can be a plain map.
func fieldNodes(node *yaml.Node) map[string]*yaml.Node {
	out := make(map[string]*yaml.Node, len(node.Content)/2)
	for k, v := range pairs(node) {
		out[k] = v
	}
	return out
}

// parseFlowConfig parses a mapping of ExecutableId -> Executable, preserving
// the document's key order (the last entry resolves ActionConfig.DefaultOutput
// when it is unset).
func parseFlowConfig(node *yaml.Node) (*FlowConfig, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("flow must be a mapping, got yaml node kind %d", node.Kind)
	}

	flowCfg := NewFlowConfig()
	for id, execNode := range pairs(node) {
		executable, err := parseExecutable(execNode)
		if err != nil {
			return nil, fmt.Errorf("executable %q: %w", id, err)
		}
		flowCfg.Set(ExecutableId(id), executable)
	}
	return flowCfg, nil
}

// parseExecutable discriminates an ActionInvocation from a Loop: a mapping
// with a "for" key is a Loop, otherwise one with an "action" key is an
// ActionInvocation.
func parseExecutable(node *yaml.Node) (Executable, error) {
	if node.Kind != yaml.MappingNode {
		return Executable{}, fmt.Errorf("must be a mapping, got yaml node kind %d", node.Kind)
	}
	fields := fieldNodes(node)

	if _, isLoop := fields["for"]; isLoop {
		return parseLoop(fields)
	}
	if _, hasAction := fields["action"]; hasAction {
		return parseActionInvocation(fields)
	}
	return Executable{}, fmt.Errorf("neither 'action' nor 'for' key present")
}

func parseLoop(fields map[string]*yaml.Node) (Executable, error) {
	var forName string
	if err := fields["for"].Decode(&forName); err != nil || forName == "" {
		return Executable{}, fmt.Errorf("loop 'for' must be a non-empty string")
	}
	inNode, ok := fields["in"]
	if !ok {
		return Executable{}, fmt.Errorf("loop missing 'in'")
	}
	var in any
	if err := inNode.Decode(&in); err != nil {
		return Executable{}, fmt.Errorf("loop 'in': %w", err)
	}
	innerNode, ok := fields["flow"]
	if !ok {
		return Executable{}, fmt.Errorf("loop missing 'flow'")
	}
	innerFlow, err := parseFlowConfig(innerNode)
	if err != nil {
		return Executable{}, fmt.Errorf("inner flow: %w", err)
	}

	return Executable{Loop: &Loop{
		For:  VarName(forName),
		In:   in,
		Flow: innerFlow,
	}}, nil
}

func parseActionInvocation(fields map[string]*yaml.Node) (Executable, error) {
	var actionName string
	if err := fields["action"].Decode(&actionName); err != nil || actionName == "" {
		return Executable{}, fmt.Errorf("'action' must be a non-empty string")
	}

	inv := &ActionInvocation{
		Action: ActionName(actionName),
		Inputs: make(map[string]any),
	}
	if ckNode, ok := fields["cache_key"]; ok {
		var ck any
		if err := ckNode.Decode(&ck); err != nil {
			return Executable{}, fmt.Errorf("cache_key: %w", err)
		}
		inv.CacheKey = ck
	}
	for k, vNode := range fields {
		if k == "action" || k == "cache_key" {
			continue
		}
		var v any
		if err := vNode.Decode(&v); err != nil {
			return Executable{}, fmt.Errorf("field %q: %w", k, err)
		}
		inv.Inputs[k] = v
	}
	return Executable{Action: inv}, nil
}
