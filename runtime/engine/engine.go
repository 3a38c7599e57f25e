// Package engine is the scheduler (§4.2–4.4, Component F): lazy
// execution, dependency fan-in, streaming fan-out, pub/sub per task,
// caching, loops, cancellation, and timeouts.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"flowdag/runtime/action"
	"flowdag/runtime/blob"
	"flowdag/runtime/cache"
	"flowdag/runtime/flow"
)

// TaskID is the scoped identifier a producer and its subscribers are
// registered under: equal to the executable id at top level, and gaining
// a bracketed loop-index prefix inside a loop (§4.2 glossary: "Task id").
type TaskID string

// LoopChildID composes the task id of a loop's i-th inner executable
// (§4.2: "loops produce prefixes parentId[i].").
func LoopChildID(loop TaskID, index int, inner flow.ExecutableId) TaskID {
	return TaskID(fmt.Sprintf("%s[%d].%s", loop, index, inner))
}

// sentinel is the reserved in-band end-of-stream marker (§9 glossary).
type sentinelType struct{}

var sentinel = sentinelType{}

// streamItem is one value pushed through a subscriber queue: either an
// outputs record or the sentinel.
type streamItem struct {
	value any // an outputs value (possibly nil), or sentinel at end of stream
}

// subscriberQueue is one listener's view of a task's broadcast (§4.3).
type subscriberQueue struct {
	ch chan streamItem
}

func newSubscriberQueue() *subscriberQueue {
	return &subscriberQueue{ch: make(chan streamItem, 64)}
}

// taskHandle tracks an in-flight or completed producer (§4.2 "tasks").
type taskHandle struct {
	cancel context.CancelFunc
	done   chan struct{} // closed when the producer goroutine returns
}

// Engine holds everything scoped to one execution lifetime (§4.2, §6.2
// facade: "[holds] a parsed flow plus repositories and variables").
type Engine struct {
	Registry      *action.Registry
	Cache         cache.Repo
	Blob          blob.Repo
	Logger        *slog.Logger
	ActionTimeout time.Duration
	DefaultModel  map[string]any
	RedisURL      string
	// ProjectDir is scanned by cache.LatestMTime for an action whose
	// Version() is nil (§3.3, §6.3). Defaults to "." in New.
	ProjectDir string

	mu              sync.Mutex
	tasks           map[TaskID]*taskHandle
	subscribers     map[TaskID][]*subscriberQueue
	newListeners    map[TaskID]map[*subscriberQueue]bool
	actionInstances map[flow.ExecutableId]action.Action
	finalValues     map[TaskID]any
	finished        map[TaskID]bool
}

// New builds an engine. registry defaults to action.Default when nil.
func New(registry *action.Registry, cacheRepo cache.Repo, blobRepo blob.Repo, logger *slog.Logger, actionTimeout time.Duration, defaultModel map[string]any, redisURL string) *Engine {
	if registry == nil {
		registry = action.Default
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Registry:        registry,
		Cache:           cacheRepo,
		Blob:            blobRepo,
		Logger:          logger,
		ActionTimeout:   actionTimeout,
		DefaultModel:    defaultModel,
		RedisURL:        redisURL,
		ProjectDir:      ".",
		tasks:           make(map[TaskID]*taskHandle),
		subscribers:     make(map[TaskID][]*subscriberQueue),
		newListeners:    make(map[TaskID]map[*subscriberQueue]bool),
		actionInstances: make(map[flow.ExecutableId]action.Action),
		finalValues:     make(map[TaskID]any),
		finished:        make(map[TaskID]bool),
	}
}

// Close cancels every in-flight task and blocks (up to 3s plus the
// configured action timeout) for them to quiesce (§8 property 9).
func (e *Engine) Close() {
	e.mu.Lock()
	handles := make([]*taskHandle, 0, len(e.tasks))
	for _, h := range e.tasks {
		h.cancel()
		handles = append(handles, h)
	}
	e.mu.Unlock()

	deadline := time.After(3*time.Second + e.ActionTimeout)
	for _, h := range handles {
		select {
		case <-h.done:
		case <-deadline:
			return
		}
	}
}

func (e *Engine) lookupAction(id flow.ExecutableId, name flow.ActionName) (action.Action, error) {
	e.mu.Lock()
	if a, ok := e.actionInstances[id]; ok {
		e.mu.Unlock()
		return a, nil
	}
	e.mu.Unlock()

	a, ok := e.Registry.Lookup(string(name))
	if !ok {
		return nil, fmt.Errorf("%w: action %q", ErrUnknownDependency, name)
	}
	e.mu.Lock()
	e.actionInstances[id] = a
	e.mu.Unlock()
	return a, nil
}

// broadcast writes value to every current subscriber of taskID, clearing
// newListeners on first delivery to each (§4.3 broadcast semantics).
func (e *Engine) broadcast(taskID TaskID, value any) {
	e.mu.Lock()
	queues := append([]*subscriberQueue(nil), e.subscribers[taskID]...)
	listeners := e.newListeners[taskID]
	for _, q := range queues {
		delete(listeners, q)
	}
	e.mu.Unlock()

	for _, q := range queues {
		q.ch <- streamItem{value: value}
	}
}

// finish broadcasts the sentinel to every subscriber, including any
// new_listener that received nothing yet, then clears bookkeeping for
// taskID (§4.3: "guaranteeing every listener observes either at least one
// outputs value followed by sentinel, or a single sentinel"). final is
// recorded so a caller that subscribes after the producer has already
// finished gets a final replay instead of re-launching it (§4.4 step 7).
func (e *Engine) finish(taskID TaskID, final any) {
	e.mu.Lock()
	queues := append([]*subscriberQueue(nil), e.subscribers[taskID]...)
	delete(e.newListeners, taskID)
	e.finalValues[taskID] = final
	e.finished[taskID] = true
	e.mu.Unlock()

	for _, q := range queues {
		q.ch <- streamItem{value: sentinel}
	}
}

// finalReplay returns the last broadcast value for a task that has already
// finished, and whether one was recorded.
func (e *Engine) finalReplay(taskID TaskID) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.finished[taskID] {
		return nil, false
	}
	return e.finalValues[taskID], true
}

func (e *Engine) subscribe(taskID TaskID) *subscriberQueue {
	q := newSubscriberQueue()
	e.mu.Lock()
	e.subscribers[taskID] = append(e.subscribers[taskID], q)
	if e.newListeners[taskID] == nil {
		e.newListeners[taskID] = make(map[*subscriberQueue]bool)
	}
	e.newListeners[taskID][q] = true
	e.mu.Unlock()
	return q
}

func (e *Engine) unsubscribe(taskID TaskID, q *subscriberQueue) {
	e.mu.Lock()
	defer e.mu.Unlock()
	qs := e.subscribers[taskID]
	for i, c := range qs {
		if c == q {
			e.subscribers[taskID] = append(qs[:i], qs[i+1:]...)
			break
		}
	}
	delete(e.newListeners[taskID], q)
}

// launchOrJoin records a new producer under taskID if none is running,
// returning true if this caller is responsible for running it (§4.2
// invariant: "at most one producer task exists at a time").
func (e *Engine) launchOrJoin(taskID TaskID) (handle *taskHandle, launched bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.tasks[taskID]; ok {
		return h, false
	}
	h := &taskHandle{done: make(chan struct{})}
	e.tasks[taskID] = h
	return h, true
}

func (e *Engine) taskDone(taskID TaskID, handle *taskHandle) {
	close(handle.done)
}
