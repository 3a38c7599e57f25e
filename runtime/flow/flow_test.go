package flow

import "testing"

func TestFromText_ParsesActionAndLoop(t *testing.T) {
	const doc = `
default_output: result
action_timeout: 30
flow:
  squares:
    for: item
    in: [1, 2, 3]
    flow:
      squared:
        action: square
        n: "{{ item }}"
  result:
    action: add
    a: 1
    b: 2
`
	cfg, err := FromText(doc)
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	if cfg.ActionTimeout != 30 {
		t.Fatalf("expected action_timeout 30, got %d", cfg.ActionTimeout)
	}
	if cfg.DefaultOutput != "result" {
		t.Fatalf("expected default_output %q, got %q", "result", cfg.DefaultOutput)
	}

	loopExec, ok := cfg.Flow.Get("squares")
	if !ok || !loopExec.IsLoop() {
		t.Fatalf("expected squares to be a loop")
	}
	if loopExec.Loop.For != "item" {
		t.Fatalf("expected for=item, got %q", loopExec.Loop.For)
	}
	if _, ok := loopExec.Loop.Flow.Get("squared"); !ok {
		t.Fatalf("expected inner flow to contain squared")
	}

	resultExec, ok := cfg.Flow.Get("result")
	if !ok || !resultExec.IsAction() {
		t.Fatalf("expected result to be an action")
	}
	if resultExec.Action.Action != "add" {
		t.Fatalf("expected action %q, got %q", "add", resultExec.Action.Action)
	}
}

func TestFromText_MissingFlowKeyErrors(t *testing.T) {
	if _, err := FromText("default_output: x\n"); err == nil {
		t.Fatalf("expected an error for a document missing the 'flow' key")
	}
}

func TestResolveDefaultOutput_FallsBackToLastInsertedID(t *testing.T) {
	cfg, err := FromText(`
flow:
  first:
    action: add
    a: 1
    b: 1
  second:
    action: add
    a: 2
    b: 2
`)
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	out, err := cfg.ResolveDefaultOutput()
	if err != nil {
		t.Fatalf("ResolveDefaultOutput: %v", err)
	}
	if out != "second" {
		t.Fatalf("expected the last-inserted id %q, got %q", "second", out)
	}
}

func TestFlowConfig_MergeOverlaysOtherOnCollision(t *testing.T) {
	base := NewFlowConfig()
	base.Set("a", Executable{Action: &ActionInvocation{Action: "base_a"}})
	base.Set("b", Executable{Action: &ActionInvocation{Action: "base_b"}})

	other := NewFlowConfig()
	other.Set("b", Executable{Action: &ActionInvocation{Action: "other_b"}})
	other.Set("c", Executable{Action: &ActionInvocation{Action: "other_c"}})

	merged := base.Merge(other)
	b, _ := merged.Get("b")
	if b.Action.Action != "other_b" {
		t.Fatalf("expected other's value to win on collision, got %q", b.Action.Action)
	}
	if !merged.Has("a") || !merged.Has("c") {
		t.Fatalf("expected merge to keep both non-colliding ids")
	}
}
