package engine

import (
	"context"
	"testing"
	"time"

	"flowdag/runtime/action"
	"flowdag/runtime/blob"
	"flowdag/runtime/cache"
	"flowdag/runtime/expr"
	"flowdag/runtime/flow"
)

func TestStreamDependencies_NoDeps_YieldsOneEmptyMap(t *testing.T) {
	e := newTestEngine(t, action.NewRegistry())
	defer e.Close()
	sc := RootScope(flow.NewFlowConfig(), nil)

	ch := e.streamDependencies(context.Background(), sc, nil)
	var got []map[string]any
	for v := range ch {
		got = append(got, v)
	}
	if len(got) != 1 || len(got[0]) != 0 {
		t.Fatalf("expected exactly one empty context map, got %v", got)
	}
}

func TestStreamDependencies_VariableDependencyResolves(t *testing.T) {
	e := newTestEngine(t, action.NewRegistry())
	defer e.Close()
	sc := RootScope(flow.NewFlowConfig(), map[string]any{"x": 42})

	ch := e.streamDependencies(context.Background(), sc, []expr.Dep{{ID: "x"}})
	var got []map[string]any
	for v := range ch {
		got = append(got, v)
	}
	if len(got) != 1 || got[0]["x"] != 42 {
		t.Fatalf("expected a single context map with x=42, got %v", got)
	}
}

func TestStreamDependencies_UnknownIDSubstitutesNull(t *testing.T) {
	e := newTestEngine(t, action.NewRegistry())
	defer e.Close()
	sc := RootScope(flow.NewFlowConfig(), nil)

	ch := e.streamDependencies(context.Background(), sc, []expr.Dep{{ID: "nowhere"}})
	var got []map[string]any
	for v := range ch {
		got = append(got, v)
	}
	if len(got) != 1 {
		t.Fatalf("expected one context map, got %v", got)
	}
	if v, ok := got[0]["nowhere"]; !ok || v != nil {
		t.Fatalf("expected nowhere=nil, got %v (present=%v)", v, ok)
	}
}

// slowStreamAction streams one value after a delay, so a test can cancel
// the context while streamOneDependency is still draining its channel.
type slowStreamAction struct {
	name  string
	delay time.Duration
}

func (s *slowStreamAction) Name() string  { return s.name }
func (s *slowStreamAction) Cache() bool   { return false }
func (s *slowStreamAction) Version() *int { return nil }
func (s *slowStreamAction) NewInput() any { return &map[string]any{} }
func (s *slowStreamAction) Stream(ctx context.Context, _ any, emit func(any) error) error {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return emit(map[string]any{"v": 1.0})
}

func TestStreamDependencies_ContextCancelledMidDrainEndsWithoutHanging(t *testing.T) {
	reg := action.NewRegistry()
	reg.Register(&slowStreamAction{name: "slow", delay: 200 * time.Millisecond})

	fc := flow.NewFlowConfig()
	fc.Set("slow", flow.Executable{Action: &flow.ActionInvocation{Action: "slow", Inputs: map[string]any{}}})

	e := newTestEngine(t, reg)
	defer e.Close()
	sc := RootScope(fc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch := e.streamDependencies(ctx, sc, []expr.Dep{{ID: "slow", Stream: true}})
	cancel()

	// The merge goroutine must observe ctx.Done() and close out rather than
	// hang waiting for a dependency that will never arrive in time.
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatalf("streamDependencies did not close its channel after context cancellation")
		}
	}
}

func TestStreamDependencies_LoopDependencyDowngradesToFinalOnly(t *testing.T) {
	reg := action.NewRegistry()
	runs := 0
	reg.Register(&constAction{name: "body", cache: false, out: map[string]any{"v": 1.0}, runs: &runs})

	inner := flow.NewFlowConfig()
	inner.Set("v", flow.Executable{Action: &flow.ActionInvocation{Action: "body", Inputs: map[string]any{}}})

	outer := flow.NewFlowConfig()
	outer.Set("loopy", flow.Executable{Loop: &flow.Loop{For: "item", In: []any{1}, Flow: inner}})
	outer.Set("consumer", flow.Executable{Action: &flow.ActionInvocation{
		Action: "body",
		Inputs: map[string]any{"x": map[string]any{"var": "loopy", "stream": true}},
	}})

	e := New(reg, cache.NewMemory(), blob.NewMemory(), nil, 5*time.Second, nil, "")
	e.ProjectDir = t.TempDir()
	defer e.Close()

	sc := RootScope(outer, nil)
	// Exercised indirectly: requesting a streamed dependency on a loop id
	// must not hang or error — it is downgraded to final-only, with a
	// logged warning.
	out, err := e.RunTask(context.Background(), sc, "consumer")
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if out == nil {
		t.Fatalf("expected consumer to produce a value despite the loop dependency")
	}
}
