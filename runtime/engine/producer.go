package engine

import (
	"context"
	"time"

	"flowdag/runtime/flow"
)

// StreamTask subscribes to taskID, launching its producer if none is
// already running or finished (§4.2 invariant: at most one producer per
// task id; §4.4 step 7: a task that has already finished replays its
// final value instead of re-running). The returned channel yields every
// broadcast outputs value in emission order and is closed once the
// sentinel is observed or ctx is done.
func (e *Engine) StreamTask(ctx context.Context, sc Scope, id flow.ExecutableId) (<-chan any, error) {
	taskID := sc.TaskID(id)

	if final, ok := e.finalReplay(taskID); ok {
		out := make(chan any, 1)
		out <- final
		close(out)
		return out, nil
	}

	exec, ok := sc.Flow.Get(id)
	if !ok {
		return nil, newError(KindUnknownDependency, taskID, errUnknownExecutable(id))
	}

	q := e.subscribe(taskID)
	handle, launched := e.launchOrJoin(taskID)
	if launched {
		pctx, cancel := context.WithCancel(context.Background())
		handle.cancel = cancel
		go e.runProducer(pctx, sc, taskID, exec, handle)
	}

	out := make(chan any)
	go func() {
		defer close(out)
		defer e.cleanupSubscriber(taskID, q, handle, launched)
		for {
			select {
			case item, ok := <-q.ch:
				if !ok {
					return
				}
				if item.value == sentinel {
					return
				}
				select {
				case out <- item.value:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RunTask streams taskID to completion and returns only its final output
// (the non-streaming dependency contract, §4.1: "stream=false consumes
// only the final value").
func (e *Engine) RunTask(ctx context.Context, sc Scope, id flow.ExecutableId) (any, error) {
	ch, err := e.StreamTask(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	var last any
	got := false
	for v := range ch {
		last = v
		got = true
	}
	if !got {
		return nil, nil
	}
	return last, nil
}

// cleanupSubscriber unsubscribes q. If this caller launched the producer
// and it has not finished, it waits up to 3 seconds of grace before
// cancelling it (§5 cancellation: "3-second grace period").
func (e *Engine) cleanupSubscriber(taskID TaskID, q *subscriberQueue, handle *taskHandle, launched bool) {
	e.unsubscribe(taskID, q)
	if !launched {
		return
	}
	select {
	case <-handle.done:
	case <-time.After(3 * time.Second):
		handle.cancel()
		<-handle.done
	}
}

// runProducer dispatches taskID's executable to its producer protocol and
// always finishes it afterward, regardless of how the protocol ended
// (§4.4: "sentinel + task cleanup" is unconditional).
func (e *Engine) runProducer(ctx context.Context, sc Scope, taskID TaskID, exec flow.Executable, handle *taskHandle) {
	timer := newTimer()
	var final any
	switch {
	case exec.IsAction():
		final = e.runActionProducer(ctx, sc, taskID, exec.Action, timer)
	case exec.IsLoop():
		final = e.runLoopProducer(ctx, sc, taskID, exec.Loop, timer)
	}
	e.Logger.InfoContext(ctx, "producer finished", "task_id", taskID, "wall", timer.Wall(), "blocking", timer.Blocking())
	e.finish(taskID, final)
	e.taskDone(taskID, handle)
}

func errUnknownExecutable(id flow.ExecutableId) error {
	return &unknownExecutableError{id: id}
}

type unknownExecutableError struct{ id flow.ExecutableId }

func (e *unknownExecutableError) Error() string {
	return "no executable named " + string(e.id) + " in scope"
}
