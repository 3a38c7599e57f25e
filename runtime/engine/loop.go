package engine

import (
	"context"
	"fmt"
	"sort"

	"flowdag/runtime/expr"
	"flowdag/runtime/flow"
)

// runLoopProducer implements the Loop producer protocol of §4.4 (4 steps):
// stream the loop's dependencies to render its `in` iterable, then for
// every index run the loop's inner flow (merged with the outer flow) with
// `for` bound to that index's item, collecting {executableId: output} per
// index, and finally broadcast the bare ordered list of per-index results
// once every index has completed (§8 seed scenario E4: a plain list, each
// entry keyed by its executable id within the loop body, not the scheduler's
// scoped task id and not wrapped in any envelope object). A child that
// produces no value at all aborts the whole merge (§7 MergeStall: "emit
// sentinel, listeners end cleanly" — no broadcast happens, so Engine.finish
// delivers only the sentinel).
func (e *Engine) runLoopProducer(ctx context.Context, sc Scope, taskID TaskID, loop *flow.Loop, timer *Timer) any {
	inNode, err := expr.Parse(loop.In)
	if err != nil {
		e.Logger.ErrorContext(ctx, "invalid `in` expression on loop, yielding sentinel", "task_id", taskID, "error", err)
		return nil
	}
	raw, err := e.renderOnce(ctx, sc, inNode)
	if err != nil {
		e.Logger.ErrorContext(ctx, "loop `in` render failed, yielding sentinel", "task_id", taskID, "error", err)
		return nil
	}
	items, err := toIterable(raw)
	if err != nil {
		e.Logger.ErrorContext(ctx, "loop `in` did not resolve to an iterable, yielding sentinel", "task_id", taskID, "error", err)
		return nil
	}

	results := make([]any, len(items))
	for i, item := range items {
		childScope := sc.ChildLoopScope(loop, taskID, i, item)
		perChild := make(map[string]any, len(loop.Flow.Order))
		for _, childID := range loop.Flow.Order {
			out, err := e.RunTask(ctx, childScope, childID)
			if err != nil {
				e.Logger.ErrorContext(ctx, "loop iteration child failed, aborting merge",
					"task_id", taskID, "index", i, "child", childID, "error", err)
				return nil
			}
			if out == nil {
				e.Logger.WarnContext(ctx, "loop iteration child produced no value, aborting merge",
					"kind", KindMergeStall.String(), "task_id", taskID, "index", i, "child", childID)
				return nil
			}
			perChild[string(childID)] = out
		}
		results[i] = perChild
	}

	e.broadcast(taskID, results)
	return results
}

// toIterable coerces a rendered `in` value to an ordered slice: a list
// passes through, a map iterates its keys in sorted order, nil is an empty
// loop.
func toIterable(raw any) ([]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]any, len(keys))
		for i, k := range keys {
			items[i] = k
		}
		return items, nil
	default:
		return nil, fmt.Errorf("loop `in` resolved to non-iterable value of type %T", raw)
	}
}
