package engine

import (
	"context"
	"sync"

	"flowdag/runtime/expr"
	"flowdag/runtime/flow"
)

type depEvent struct {
	id    string
	value any
}

// mergedDeps collects the distinct dependency ids referenced across a set
// of expression nodes, unioning the stream flag: a dependency streams if
// any field that reads it asked to stream it (§4.1).
func mergedDeps(nodes map[string]expr.Node) []expr.Dep {
	stream := map[string]bool{}
	var order []string
	for _, n := range nodes {
		for _, d := range n.Dependencies() {
			if _, seen := stream[d.ID]; !seen {
				order = append(order, d.ID)
			}
			stream[d.ID] = stream[d.ID] || d.Stream
		}
	}
	deps := make([]expr.Dep, len(order))
	for i, id := range order {
		deps[i] = expr.Dep{ID: id, Stream: stream[id]}
	}
	return deps
}

// streamDependencies is §4.4's context-assembly step. Flow-scoped ids
// re-enter the scheduler (streamed or run-to-completion per their Stream
// flag); variable-scoped ids resolve once against sc.Vars; unknown ids are
// logged and substituted with nil (§7 UnknownDependency). A combined
// {id: value} map is emitted every time every id has contributed at least
// once, and again on every later partial from a streamed id. If the merge
// loop exits before every dependency ever contributed — context cancelled
// mid-drain, or every producer finished without reaching full contribution
// — a structured MergeStall diagnostic is logged (§4.4 "Merge semantics":
// "a downstream that can no longer make progress... logs a structured
// error and emits the sentinel", §7 MergeStall).
func (e *Engine) streamDependencies(ctx context.Context, sc Scope, deps []expr.Dep) <-chan map[string]any {
	out := make(chan map[string]any)
	if len(deps) == 0 {
		go func() {
			defer close(out)
			select {
			case out <- map[string]any{}:
			case <-ctx.Done():
			}
		}()
		return out
	}

	go func() {
		defer close(out)

		events := make(chan depEvent, 16)
		var wg sync.WaitGroup
		for _, d := range deps {
			wg.Add(1)
			go e.streamOneDependency(ctx, sc, d, events, &wg)
		}
		go func() {
			wg.Wait()
			close(events)
		}()

		current := map[string]any{}
		contributed := map[string]bool{}
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					if len(contributed) < len(deps) {
						e.Logger.ErrorContext(ctx, "merge ended before every dependency contributed, emitting sentinel",
							"kind", KindMergeStall.String(), "contributed", len(contributed), "expected", len(deps))
					}
					return
				}
				current[ev.id] = ev.value
				contributed[ev.id] = true
				if len(contributed) < len(deps) {
					continue
				}
				select {
				case out <- cloneMap(current):
				case <-ctx.Done():
					e.Logger.ErrorContext(ctx, "context cancelled emitting merged context, emitting sentinel",
						"kind", KindMergeStall.String())
					return
				}
			case <-ctx.Done():
				e.Logger.ErrorContext(ctx, "context cancelled draining dependency merge, emitting sentinel",
					"kind", KindMergeStall.String(), "contributed", len(contributed), "expected", len(deps))
				return
			}
		}
	}()
	return out
}

func (e *Engine) streamOneDependency(ctx context.Context, sc Scope, dep expr.Dep, events chan<- depEvent, wg *sync.WaitGroup) {
	defer wg.Done()

	if !sc.Flow.Has(flow.ExecutableId(dep.ID)) {
		if v, ok := sc.Vars[dep.ID]; ok {
			events <- depEvent{id: dep.ID, value: v}
			return
		}
		e.Logger.WarnContext(ctx, "unknown dependency, substituting null", "id", dep.ID)
		events <- depEvent{id: dep.ID, value: nil}
		return
	}

	streamRequested := dep.Stream
	if exec, ok := sc.Flow.Get(flow.ExecutableId(dep.ID)); ok && exec.IsLoop() && streamRequested {
		e.Logger.WarnContext(ctx, "partial streaming through a loop is not supported, downgrading to final-only",
			"kind", KindMergeStall.String(), "id", dep.ID)
		streamRequested = false
	}

	if !streamRequested {
		v, err := e.RunTask(ctx, sc, flow.ExecutableId(dep.ID))
		if err != nil {
			e.Logger.ErrorContext(ctx, "dependency failed, yielding null", "id", dep.ID, "error", err)
			events <- depEvent{id: dep.ID, value: nil}
			return
		}
		events <- depEvent{id: dep.ID, value: v}
		return
	}

	ch, err := e.StreamTask(ctx, sc, flow.ExecutableId(dep.ID))
	if err != nil {
		e.Logger.ErrorContext(ctx, "dependency failed, yielding null", "id", dep.ID, "error", err)
		events <- depEvent{id: dep.ID, value: nil}
		return
	}
	got := false
	for v := range ch {
		got = true
		select {
		case events <- depEvent{id: dep.ID, value: v}:
		case <-ctx.Done():
			e.Logger.ErrorContext(ctx, "context cancelled streaming dependency, abandoning contribution",
				"kind", KindMergeStall.String(), "id", dep.ID)
			return
		}
	}
	if !got {
		events <- depEvent{id: dep.ID, value: nil}
	}
}
