package expr

import (
	"context"
	"os"
	"testing"
)

func TestParse_BareStringIsText(t *testing.T) {
	node, err := Parse("hello {{ name }}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := node.Render(context.Background(), map[string]any{"name": "world"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", out)
	}
}

func TestText_SingleBlockPreservesNativeType(t *testing.T) {
	node, err := Parse("{{ n }}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := node.Render(context.Background(), map[string]any{"n": 42})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != 42 {
		t.Fatalf("expected native int 42, got %#v", out)
	}
}

func TestVar_DottedPathNavigatesContext(t *testing.T) {
	node, err := Parse(map[string]any{"var": "a.b"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	deps := node.Dependencies()
	if len(deps) != 1 || deps[0].ID != "a" {
		t.Fatalf("expected a single dependency on %q, got %v", "a", deps)
	}
	out, err := node.Render(context.Background(), map[string]any{"a": map[string]any{"b": 7}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != 7 {
		t.Fatalf("expected 7, got %#v", out)
	}
}

func TestVar_UnknownRootErrors(t *testing.T) {
	node, err := Parse(map[string]any{"var": "missing"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := node.Render(context.Background(), map[string]any{}); err == nil {
		t.Fatalf("expected an error for an unresolved variable root")
	}
}

func TestEnv_ReadsProcessEnvironment(t *testing.T) {
	t.Setenv("FLOWDAG_TEST_ENV_VAR", "present")
	node, err := Parse(map[string]any{"env": "FLOWDAG_TEST_ENV_VAR"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if deps := node.Dependencies(); len(deps) != 0 {
		t.Fatalf("expected no upstream dependencies for Env, got %v", deps)
	}
	out, err := node.Render(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "present" {
		t.Fatalf("expected %q, got %#v", "present", out)
	}
}

func TestEnv_UnsetVariableErrors(t *testing.T) {
	os.Unsetenv("FLOWDAG_TEST_ENV_VAR_NOT_SET")
	node, err := Parse(map[string]any{"env": "FLOWDAG_TEST_ENV_VAR_NOT_SET"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := node.Render(context.Background(), map[string]any{}); err == nil {
		t.Fatalf("expected an error for an unset environment variable")
	}
}

func TestLambda_RejectsDisallowedCall(t *testing.T) {
	if _, err := NewLambda("os.Exit(1)", false); err == nil {
		t.Fatalf("expected the AST whitelist to reject a call outside lambdaSafeBuiltins")
	}
}

func TestLambda_AllowsWhitelistedBuiltinCall(t *testing.T) {
	lam, err := NewLambda("len(items)", false)
	if err != nil {
		t.Fatalf("NewLambda: %v", err)
	}
	out, err := lam.Render(context.Background(), map[string]any{"items": []any{1, 2, 3}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != 3 {
		t.Fatalf("expected 3, got %#v", out)
	}
}

func TestRootOf_StopsAtDotOrBracket(t *testing.T) {
	cases := map[string]string{
		"a.b.c":  "a",
		"a[0].b": "a",
		"a":      "a",
	}
	for path, want := range cases {
		if got := RootOf(path); got != want {
			t.Errorf("RootOf(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestResolveFieldPath_IndexesIntoList(t *testing.T) {
	out, err := ResolveFieldPath(map[string]any{"items": []any{10, 20, 30}}, "items[1]")
	if err != nil {
		t.Fatalf("ResolveFieldPath: %v", err)
	}
	if out != 20 {
		t.Fatalf("expected 20, got %#v", out)
	}
}
