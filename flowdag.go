// Package flowdag is the root facade (§6.2): parse a flow document, supply
// variables, and run or stream it to a target output, backed by a fresh
// scheduling engine per Flow.
package flowdag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"flowdag/runtime/action"
	"flowdag/runtime/blob"
	"flowdag/runtime/cache"
	"flowdag/runtime/checker"
	"flowdag/runtime/engine"
	"flowdag/runtime/expr"
	"flowdag/runtime/flow"
)

// Options configures the engine backing a Flow. Zero values are valid:
// a nil Registry falls back to action.Default, a nil Cache/Blob disables
// caching/blobs, a nil Logger falls back to slog.Default.
type Options struct {
	Registry   *action.Registry
	Cache      cache.Repo
	Blob       blob.Repo
	Logger     *slog.Logger
	RedisURL   string
	ProjectDir string
}

// Flow is one parsed, ready-to-run document (§6.2).
type Flow struct {
	config *flow.ActionConfig
	vars   map[string]any
	engine *engine.Engine
}

// FromText parses a flow document from a YAML string.
func FromText(text string, opts Options) (*Flow, error) {
	cfg, err := flow.FromText(text)
	if err != nil {
		return nil, err
	}
	return newFlow(cfg, opts), nil
}

// FromFile parses a flow document from disk.
func FromFile(path string, opts Options) (*Flow, error) {
	cfg, err := flow.FromFile(path)
	if err != nil {
		return nil, err
	}
	return newFlow(cfg, opts), nil
}

func newFlow(cfg *flow.ActionConfig, opts Options) *Flow {
	timeout := time.Duration(cfg.ActionTimeout) * time.Second
	e := engine.New(opts.Registry, opts.Cache, opts.Blob, opts.Logger, timeout, cfg.DefaultModel, opts.RedisURL)
	if opts.ProjectDir != "" {
		e.ProjectDir = opts.ProjectDir
	}
	return &Flow{config: cfg, vars: map[string]any{}, engine: e}
}

// SetVars replaces the caller-supplied variable set (§6.2). Every
// identifier a flow's expressions reference that is not itself an
// executable id must be declared here before Run/Stream/Check.
func (f *Flow) SetVars(vars map[string]any) {
	if vars == nil {
		vars = map[string]any{}
	}
	f.vars = vars
}

// Check runs the static consistency checker (§4.5) against targetOutput
// (or the document's resolved default output when targetOutput is empty),
// returning every unknown-variable / invalid-expression diagnostic found.
func (f *Flow) Check(targetOutput string) ([]checker.Diagnostic, error) {
	return checker.Check(f.config, targetOutput, f.varNames())
}

// Run resolves targetOutput to its final value (§4.1 "non-streaming
// dependency"), after a static check rejects before the engine ever runs
// an action (§4.5: "fail before execution").
func (f *Flow) Run(ctx context.Context, targetOutput string) (any, error) {
	path, rootID, err := f.resolveTarget(targetOutput)
	if err != nil {
		return nil, err
	}
	if err := f.staticCheck(path); err != nil {
		return nil, err
	}
	sc := engine.RootScope(f.config.Flow, f.vars)
	root, err := f.engine.RunTask(ctx, sc, rootID)
	if err != nil {
		return nil, err
	}
	return resolveOutputPath(root, path)
}

// Stream resolves targetOutput the same way Run does, but yields every
// partial value its root executable broadcasts in emission order (§4.3).
func (f *Flow) Stream(ctx context.Context, targetOutput string) (<-chan any, error) {
	path, rootID, err := f.resolveTarget(targetOutput)
	if err != nil {
		return nil, err
	}
	if err := f.staticCheck(path); err != nil {
		return nil, err
	}
	sc := engine.RootScope(f.config.Flow, f.vars)
	ch, err := f.engine.StreamTask(ctx, sc, rootID)
	if err != nil {
		return nil, err
	}

	out := make(chan any)
	go func() {
		defer close(out)
		for v := range ch {
			rendered, err := resolveOutputPath(v, path)
			if err != nil {
				continue
			}
			select {
			case out <- rendered:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close cancels every in-flight task on this Flow's engine (§5).
func (f *Flow) Close() { f.engine.Close() }

func (f *Flow) varNames() map[string]bool {
	names := make(map[string]bool, len(f.vars))
	for k := range f.vars {
		names[k] = true
	}
	return names
}

func (f *Flow) resolveTarget(targetOutput string) (path string, rootID flow.ExecutableId, err error) {
	if targetOutput == "" {
		targetOutput, err = f.config.ResolveDefaultOutput()
		if err != nil {
			return "", "", err
		}
	}
	return targetOutput, flow.ExecutableId(expr.RootOf(targetOutput)), nil
}

func (f *Flow) staticCheck(targetOutput string) error {
	diags, err := checker.Check(f.config, targetOutput, f.varNames())
	if err != nil {
		return err
	}
	if len(diags) > 0 {
		return fmt.Errorf("flowdag: static check failed: %v", diags)
	}
	return nil
}

// resolveOutputPath navigates path's remainder (after its root id) through
// root, the already-computed value of that root executable.
func resolveOutputPath(root any, path string) (any, error) {
	rootID := expr.RootOf(path)
	remainder := trimLeadingDot(path[len(rootID):])
	if remainder == "" {
		return expr.ApplyDefaultOutput(root)
	}
	return expr.ResolveFieldPath(root, remainder)
}

func trimLeadingDot(s string) string {
	if len(s) > 0 && s[0] == '.' {
		return s[1:]
	}
	return s
}
