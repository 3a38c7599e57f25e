package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"flowdag/runtime/action"
	"flowdag/runtime/blob"
	"flowdag/runtime/cache"
	"flowdag/runtime/expr"
	"flowdag/runtime/flow"
	"flowdag/runtime/schema"
)

// runActionProducer implements the ActionInvocation producer protocol of
// §4.4 (8 steps): early cache-key resolution, a hard-key cache probe, then
// streaming the declared inputs and invoking (or cache-serving) the action
// once per assembled input set, a final-invocation callback, a cache
// store, and returning the last broadcast value for late-subscriber replay
// (step 7 is handled by the caller via Engine.finish).
func (e *Engine) runActionProducer(ctx context.Context, sc Scope, taskID TaskID, inv *flow.ActionInvocation, timer *Timer) any {
	act, err := e.lookupAction(flow.ExecutableId(taskID), inv.Action)
	if err != nil {
		e.Logger.ErrorContext(ctx, "unknown action, broadcasting null", "task_id", taskID, "action", inv.Action, "error", err)
		e.broadcast(taskID, nil)
		return nil
	}

	cacheable := act.Cache() && e.Cache != nil
	version := e.actionVersion(act)

	// Step 1: resolve an explicit cache_key early, against variables/flow
	// dependencies it references, before streaming the full input set.
	hardKey, hasHardKey := e.resolveHardCacheKey(ctx, sc, taskID, inv)

	// Step 2: hard-key cache probe, rejecting an entry with an expired blob.
	if hasHardKey && cacheable {
		if cached, hit := e.tryCache(ctx, string(inv.Action), hardKey, version); hit {
			e.broadcast(taskID, cached)
			return cached
		}
	}

	inputNodes, err := parseInputNodes(inv.Inputs)
	if err != nil {
		e.Logger.ErrorContext(ctx, "invalid expression in action inputs, broadcasting nothing", "task_id", taskID, "error", err)
		return nil
	}
	deps := mergedDeps(inputNodes)

	var lastFull, lastCacheable, lastInputValues map[string]any
	hasOutput := false
	lastWasCacheHit := false

	// Step 3-4: stream the assembled input context; per validated input
	// set, probe the soft cache key (when there is no hard key), else
	// invoke the action and broadcast every output it produces.
	for ctxMap := range e.streamDependencies(ctx, sc, deps) {
		values, ok := renderInputs(ctx, inputNodes, ctxMap, e.Logger, taskID)
		if !ok {
			continue
		}

		if cacheable && !hasHardKey {
			softKey := softCacheKeyFor(values)
			if cached, hit := e.tryCache(ctx, string(inv.Action), softKey, version); hit {
				e.broadcast(taskID, cached)
				lastFull, lastCacheable, lastInputValues = cached, cached, values
				hasOutput = true
				lastWasCacheHit = true
				continue
			}
		}

		err := e.invokeAction(ctx, act, values, timer, false, func(full, cache map[string]any) error {
			e.broadcast(taskID, full)
			lastFull, lastCacheable, lastInputValues = full, cache, values
			hasOutput = true
			lastWasCacheHit = false
			return nil
		})
		if err != nil {
			var engErr *Error
			if errors.As(err, &engErr) && engErr.Kind == KindInputValidation {
				e.Logger.WarnContext(ctx, "input validation failed, skipping iteration", "task_id", taskID, "error", err)
				continue
			}
			e.Logger.ErrorContext(ctx, "action exception, broadcasting null", "task_id", taskID, "error", err)
			e.broadcast(taskID, nil)
		}
	}

	// Step 5: final-invocation callback against the last input set, only
	// when the action's input opts in via the FinalInvocationReceiver
	// mix-in (§3.3, §4.4 step 5: "if the input type opts in").
	if hasOutput && wantsFinalInvocation(act) {
		err := e.invokeAction(ctx, act, lastInputValues, timer, true, func(full, cache map[string]any) error {
			e.broadcast(taskID, full)
			lastFull, lastCacheable = full, cache
			return nil
		})
		if err != nil {
			e.Logger.WarnContext(ctx, "final invocation failed", "task_id", taskID, "error", err)
		}
	}

	// Step 6: cache store, namespaced by action name, keyed by the hard key
	// if one was declared else the soft key of the last input set. Skipped
	// when the last contributing input set was itself a cache hit (§4.4
	// step 6: "the last inputs were not a cache hit").
	if cacheable && hasOutput && !lastWasCacheHit {
		key := hardKey
		if !hasHardKey {
			key = softCacheKeyFor(lastInputValues)
		}
		e.storeCache(ctx, string(inv.Action), key, version, lastCacheable)
	}

	return lastFull
}

// wantsFinalInvocation reports whether act's declared input type implements
// the final-invocation mix-in, by probing a throwaway instance from
// NewInput (the mix-in is checked by type, not by any runtime state).
func wantsFinalInvocation(act action.Action) bool {
	_, ok := act.NewInput().(action.FinalInvocationReceiver)
	return ok
}

func parseInputNodes(inputs map[string]any) (map[string]expr.Node, error) {
	nodes := make(map[string]expr.Node, len(inputs))
	for field, raw := range inputs {
		node, err := expr.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		nodes[field] = node
	}
	return nodes, nil
}

func renderInputs(ctx context.Context, nodes map[string]expr.Node, env map[string]any, logger interface {
	WarnContext(context.Context, string, ...any)
}, taskID TaskID) (map[string]any, bool) {
	values := make(map[string]any, len(nodes))
	for field, node := range nodes {
		v, err := node.Render(ctx, env)
		if err != nil {
			logger.WarnContext(ctx, "input render failed, skipping iteration", "task_id", taskID, "field", field, "error", err)
			return nil, false
		}
		values[field] = v
	}
	return values, true
}

// resolveHardCacheKey renders inv.CacheKey, if present, against its own
// dependencies run to completion. A render failure falls back to soft
// keying (hasHardKey=false) rather than failing the whole invocation.
func (e *Engine) resolveHardCacheKey(ctx context.Context, sc Scope, taskID TaskID, inv *flow.ActionInvocation) (string, bool) {
	if inv.CacheKey == nil {
		return "", false
	}
	node, err := expr.Parse(inv.CacheKey)
	if err != nil {
		e.Logger.WarnContext(ctx, "invalid cache_key expression, falling back to soft keying", "task_id", taskID, "error", err)
		return "", false
	}
	v, err := e.renderOnce(ctx, sc, node)
	if err != nil {
		e.Logger.WarnContext(ctx, "cache_key render failed, falling back to soft keying", "task_id", taskID, "error", err)
		return "", false
	}
	return fmt.Sprint(v), true
}

// renderOnce runs every dependency of node to completion (non-streaming)
// and renders node against the resulting context. Used for cache_key and a
// loop's `in` expression, neither of which participates in partial
// streaming.
func (e *Engine) renderOnce(ctx context.Context, sc Scope, node expr.Node) (any, error) {
	env := map[string]any{}
	for _, d := range node.Dependencies() {
		if !sc.Flow.Has(flow.ExecutableId(d.ID)) {
			if v, ok := sc.Vars[d.ID]; ok {
				env[d.ID] = v
				continue
			}
			e.Logger.WarnContext(ctx, "unknown dependency, substituting null", "id", d.ID)
			env[d.ID] = nil
			continue
		}
		v, err := e.RunTask(ctx, sc, flow.ExecutableId(d.ID))
		if err != nil {
			return nil, err
		}
		env[d.ID] = v
	}
	return node.Render(ctx, env)
}

func softCacheKeyFor(values map[string]any) string {
	b, err := json.Marshal(values)
	if err != nil {
		return fmt.Sprintf("%v", values)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (e *Engine) actionVersion(act action.Action) string {
	if v := act.Version(); v != nil {
		return strconv.Itoa(*v)
	}
	dir := e.ProjectDir
	if dir == "" {
		dir = "."
	}
	mtime, err := cache.LatestMTime(dir)
	if err != nil {
		return "0"
	}
	return mtime
}

// tryCache retrieves and decodes a cached outputs tree, treating a backend
// error, a decode failure, or an expired blob leaf as a miss (§7
// CacheBackendError / BlobBackendError).
func (e *Engine) tryCache(ctx context.Context, namespace, key, version string) (map[string]any, bool) {
	raw, ok, err := e.Cache.Retrieve(ctx, key, version, namespace)
	if err != nil {
		e.Logger.WarnContext(ctx, "cache retrieve failed, treating as miss", "namespace", namespace, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		e.Logger.WarnContext(ctx, "cache entry undecodable, treating as miss", "namespace", namespace, "error", err)
		return nil, false
	}
	if e.Blob != nil {
		expired, err := blob.ContainsExpired(ctx, e.Blob, tree)
		if err != nil {
			e.Logger.WarnContext(ctx, "blob existence check failed, treating entry as expired", "namespace", namespace, "error", err)
			return nil, false
		}
		if expired {
			return nil, false
		}
	}
	return tree, true
}

func (e *Engine) storeCache(ctx context.Context, namespace, key, version string, value map[string]any) {
	b, err := json.Marshal(value)
	if err != nil {
		e.Logger.WarnContext(ctx, "cache encode failed, skipping store", "namespace", namespace, "error", err)
		return
	}
	if err := e.Cache.Store(ctx, key, b, version, namespace, 0); err != nil {
		e.Logger.WarnContext(ctx, "cache store failed", "namespace", namespace, "error", err)
	}
}

// invokeAction decodes values into act's declared input, injects whichever
// mix-ins the input implements, and invokes Run or Stream, calling emit
// once per output with both its full broadcast form and the subset of it
// that should be cache-stored (§3.3 cache-control mix-in).
func (e *Engine) invokeAction(ctx context.Context, act action.Action, values map[string]any, timer *Timer, final bool, emit func(full, cacheable map[string]any) error) error {
	input := act.NewInput()
	if dmr, ok := input.(action.DefaultModelReceiver); ok {
		dmr.SetDefaultModel(e.DefaultModel)
	}
	if err := schema.DecodeInput(values, input); err != nil {
		return newError(KindInputValidation, "", err)
	}
	if brr, ok := input.(action.BlobRepoReceiver); ok && e.Blob != nil {
		brr.SetBlobRepo(blob.MixinAdapter{Repo: e.Blob})
	}
	if rur, ok := input.(action.RedisURLReceiver); ok {
		rur.SetRedisURL(e.RedisURL)
	}
	if fir, ok := input.(action.FinalInvocationReceiver); ok {
		fir.SetFinalInvocation(final)
	}

	runCtx := ctx
	if e.ActionTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.ActionTimeout)
		defer cancel()
	}

	timer.EnterAction()
	defer timer.ExitAction()

	switch a := act.(type) {
	case action.Streaming:
		return a.Stream(runCtx, input, func(v any) error {
			full, cacheable, err := splitCacheable(v)
			if err != nil {
				return err
			}
			return emit(full, cacheable)
		})
	case action.SingleShot:
		out, err := a.Run(runCtx, input)
		if err != nil {
			return err
		}
		full, cacheable, err := splitCacheable(out)
		if err != nil {
			return err
		}
		return emit(full, cacheable)
	default:
		return fmt.Errorf("action %q implements neither SingleShot nor Streaming", act.Name())
	}
}

// splitCacheable encodes an action's output into its full broadcast map and
// the subset of it eligible for cache storage: when the output implements
// the cache-control mix-in (schema.Record does), suppressed fields are
// dropped from the cacheable copy but kept in the broadcast copy.
func splitCacheable(out any) (full map[string]any, cacheable map[string]any, err error) {
	full, err = schema.EncodeOutput(out)
	if err != nil {
		return nil, nil, err
	}
	if cc, ok := out.(interface{ CacheableFields() map[string]any }); ok {
		return full, cc.CacheableFields(), nil
	}
	return full, full, nil
}
