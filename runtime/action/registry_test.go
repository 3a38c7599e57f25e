package action

import (
	"context"
	"testing"
)

type fakeAction struct {
	name    string
	cache   bool
	version *int
}

func (f *fakeAction) Name() string  { return f.name }
func (f *fakeAction) Cache() bool   { return f.cache }
func (f *fakeAction) Version() *int { return f.version }
func (f *fakeAction) NewInput() any { return &map[string]any{} }
func (f *fakeAction) Run(_ context.Context, _ any) (any, error) {
	return nil, nil
}

func TestRegistry_RegisterThenLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeAction{name: "echo", cache: true})

	got, ok := r.Lookup("echo")
	if !ok {
		t.Fatalf("expected to find registered action %q", "echo")
	}
	if got.Name() != "echo" {
		t.Fatalf("expected name %q, got %q", "echo", got.Name())
	}
}

func TestRegistry_LookupMissingIsNotFound(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("nonexistent"); ok {
		t.Fatalf("expected no action registered under %q", "nonexistent")
	}
}

func TestRegistry_RegisterDuplicateNamePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeAction{name: "dup"})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic registering a duplicate action name")
		}
	}()
	r.Register(&fakeAction{name: "dup"})
}

func TestRegistry_NamesListsEveryRegistration(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeAction{name: "a"})
	r.Register(&fakeAction{name: "b"})

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 registered names, got %d (%v)", len(names), names)
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("expected names to include both %q and %q, got %v", "a", "b", names)
	}
}
