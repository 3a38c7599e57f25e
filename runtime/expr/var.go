package expr

import (
	"context"
	"fmt"
)

// Var is a dotted path into the render context: a user-supplied variable or
// an upstream executable's output (§3.2).
type Var struct {
	Path   string
	Stream bool
}

func (v Var) Dependencies() []Dep {
	return []Dep{{ID: rootOf(v.Path), Stream: v.Stream}}
}

func (v Var) Render(_ context.Context, env map[string]any) (any, error) {
	root := rootOf(v.Path)
	base, ok := env[root]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, root)
	}
	if root == v.Path {
		return applyDefaultOutput(base)
	}
	return resolvePath(base, v.Path[len(root)+1:])
}

// Link is identical to Var at render time; it is a distinct expression kind
// so authoring tools can hint differently and the scheduler can record the
// reference as an explicit inter-task link (§3.2).
type Link struct {
	Path   string
	Stream bool
}

func (l Link) Dependencies() []Dep {
	return []Dep{{ID: rootOf(l.Path), Stream: l.Stream}}
}

func (l Link) Render(ctx context.Context, env map[string]any) (any, error) {
	return Var(l).Render(ctx, env)
}
