package flowdag

import (
	"context"
	"testing"

	"flowdag/runtime/action"
	"flowdag/runtime/blob"
	"flowdag/runtime/builtin"
	"flowdag/runtime/cache"
)

func newTestOptions() Options {
	reg := action.NewRegistry()
	builtin.RegisterArithmetic(reg)
	return Options{
		Registry: reg,
		Cache:    cache.NewMemory(),
		Blob:     blob.NewMemory(),
	}
}

const addFlowYAML = `
flow:
  result:
    action: add
    a: 2
    b: 3
`

func TestFlow_Run_ResolvesDefaultOutput(t *testing.T) {
	f, err := FromText(addFlowYAML, newTestOptions())
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	defer f.Close()

	out, err := f.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok || m["sum"] != 5.0 {
		t.Fatalf("unexpected output: %#v", out)
	}
}

func TestFlow_Run_FieldPathIntoOutput(t *testing.T) {
	f, err := FromText(addFlowYAML, newTestOptions())
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	defer f.Close()

	out, err := f.Run(context.Background(), "result.sum")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != 5.0 {
		t.Fatalf("expected 5.0, got %#v", out)
	}
}

func TestFlow_Check_FlagsUndeclaredVariable(t *testing.T) {
	const yamlDoc = `
flow:
  result:
    action: add
    a: "{{ missing_var }}"
    b: 1
`
	f, err := FromText(yamlDoc, newTestOptions())
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	defer f.Close()

	diags, err := f.Check("result")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %v", diags)
	}
}

func TestFlow_Run_WithDeclaredVariable(t *testing.T) {
	const yamlDoc = `
flow:
  result:
    action: add
    a: "{{ x }}"
    b: 1
`
	f, err := FromText(yamlDoc, newTestOptions())
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	defer f.Close()
	f.SetVars(map[string]any{"x": 4.0})

	out, err := f.Run(context.Background(), "result.sum")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != 5.0 {
		t.Fatalf("expected 5.0, got %#v", out)
	}
}

func TestFlow_Stream_YieldsEveryPartialOutput(t *testing.T) {
	const yamlDoc = `
flow:
  result:
    action: double_add
    a: 1
    b: 2
`
	f, err := FromText(yamlDoc, newTestOptions())
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	defer f.Close()

	ch, err := f.Stream(context.Background(), "result.sum")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var got []any
	for v := range ch {
		got = append(got, v)
	}
	if len(got) != 2 || got[0] != 3.0 || got[1] != 6.0 {
		t.Fatalf("expected [3 6], got %v", got)
	}
}
