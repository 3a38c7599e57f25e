package checker

import (
	"testing"

	"flowdag/runtime/flow"
)

func TestCheck_KnownVariableIsNotFlagged(t *testing.T) {
	fc := flow.NewFlowConfig()
	fc.Set("result", flow.Executable{Action: &flow.ActionInvocation{
		Action: "add",
		Inputs: map[string]any{"a": "{{ x }}", "b": 1},
	}})
	cfg := &flow.ActionConfig{Flow: fc}

	diags, err := Check(cfg, "result", map[string]bool{"x": true})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
}

func TestCheck_UnknownVariableIsFlagged(t *testing.T) {
	fc := flow.NewFlowConfig()
	fc.Set("result", flow.Executable{Action: &flow.ActionInvocation{
		Action: "add",
		Inputs: map[string]any{"a": "{{ missing }}"},
	}})
	cfg := &flow.ActionConfig{Flow: fc}

	diags, err := Check(cfg, "result", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 || diags[0].Kind != "unknown_variable" || diags[0].ID != "missing" {
		t.Fatalf("expected one unknown_variable diagnostic for %q, got %v", "missing", diags)
	}
}

func TestCheck_LoopBoundVariableIsVisibleInsideInnerFlow(t *testing.T) {
	inner := flow.NewFlowConfig()
	inner.Set("squared", flow.Executable{Action: &flow.ActionInvocation{
		Action: "square",
		Inputs: map[string]any{"n": "{{ item }}"},
	}})
	outer := flow.NewFlowConfig()
	outer.Set("loop1", flow.Executable{Loop: &flow.Loop{
		For:  "item",
		In:   []any{1, 2, 3},
		Flow: inner,
	}})
	cfg := &flow.ActionConfig{Flow: outer}

	diags, err := Check(cfg, "loop1", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("expected the loop's own `for` variable to satisfy `item`, got %v", diags)
	}
}

func TestCheck_ReferenceOutsideLoopScopeStillFlagged(t *testing.T) {
	inner := flow.NewFlowConfig()
	inner.Set("squared", flow.Executable{Action: &flow.ActionInvocation{
		Action: "square",
		Inputs: map[string]any{"n": "{{ other_loop_var }}"},
	}})
	outer := flow.NewFlowConfig()
	outer.Set("loop1", flow.Executable{Loop: &flow.Loop{
		For:  "item",
		In:   []any{1},
		Flow: inner,
	}})
	cfg := &flow.ActionConfig{Flow: outer}

	diags, err := Check(cfg, "loop1", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 || diags[0].ID != "other_loop_var" {
		t.Fatalf("expected other_loop_var to be flagged, got %v", diags)
	}
}

func TestCheck_InvalidExpressionIsFlagged(t *testing.T) {
	fc := flow.NewFlowConfig()
	fc.Set("result", flow.Executable{Action: &flow.ActionInvocation{
		Action: "add",
		Inputs: map[string]any{"a": map[string]any{"lambda": "os.Exit(1)"}},
	}})
	cfg := &flow.ActionConfig{Flow: fc}

	diags, err := Check(cfg, "result", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 || diags[0].Kind != "invalid_expression" {
		t.Fatalf("expected an invalid_expression diagnostic, got %v", diags)
	}
}
