// Package expr is the expression layer (§4.1): it parses flow field values
// into a small tree of literal containers and typed expressions (Text, Var,
// Link, Env, Lambda), extracts the set of upstream dependencies any such
// tree references, and renders the tree against a context map at scheduling
// time.
package expr

import (
	"context"
	"fmt"
)

// Dep is a single dependency reference: the root identifier an expression
// reads from, and whether the scheduler should forward every partial
// output of that upstream (true) or only its final output (false).
type Dep struct {
	ID     string
	Stream bool
}

// Node is the parsed form of any flow field value: a literal, a container
// of nodes, or one of the five expression kinds.
type Node interface {
	// Dependencies returns the set of upstream ids (and their stream flags)
	// this node reads from, recursively through any container.
	Dependencies() []Dep
	// Render evaluates the node against a context mapping id/variable name
	// to its resolved value (either another executable's outputs or a
	// user-supplied variable).
	Render(ctx context.Context, env map[string]any) (any, error)
}

// Literal wraps a scalar or a value that needs no further evaluation
// (booleans, numbers, nil, or a container already fully literal).
type Literal struct{ Value any }

func (l Literal) Dependencies() []Dep { return nil }

func (l Literal) Render(_ context.Context, _ map[string]any) (any, error) {
	return l.Value, nil
}

// MapNode is a mapping whose values may themselves be expressions.
type MapNode struct{ Fields map[string]Node }

func (m MapNode) Dependencies() []Dep {
	var deps []Dep
	for _, v := range m.Fields {
		deps = append(deps, v.Dependencies()...)
	}
	return deps
}

func (m MapNode) Render(ctx context.Context, env map[string]any) (any, error) {
	out := make(map[string]any, len(m.Fields))
	for k, v := range m.Fields {
		rendered, err := v.Render(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = rendered
	}
	return out, nil
}

// ListNode is an ordered sequence whose elements may be expressions.
type ListNode struct{ Items []Node }

func (l ListNode) Dependencies() []Dep {
	var deps []Dep
	for _, v := range l.Items {
		deps = append(deps, v.Dependencies()...)
	}
	return deps
}

func (l ListNode) Render(ctx context.Context, env map[string]any) (any, error) {
	out := make([]any, len(l.Items))
	for i, v := range l.Items {
		rendered, err := v.Render(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = rendered
	}
	return out, nil
}

// Parse turns a raw value read from a flow document (or constructed in
// code) into a Node tree. A bare string is always a Text expression
// (§6.1); a tagged mapping (one of "text"/"var"/"link"/"env"/"lambda" as a
// key) becomes the matching expression node; any other mapping or slice is
// a container recursed into; everything else is a Literal.
func Parse(raw any) (Node, error) {
	switch v := raw.(type) {
	case nil:
		return Literal{Value: nil}, nil
	case string:
		return NewText(v, false), nil
	case Node:
		return v, nil
	case map[string]any:
		if tagged, ok, err := parseTagged(v); ok || err != nil {
			return tagged, err
		}
		fields := make(map[string]Node, len(v))
		for k, fv := range v {
			node, err := Parse(fv)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			fields[k] = node
		}
		return MapNode{Fields: fields}, nil
	case []any:
		items := make([]Node, len(v))
		for i, iv := range v {
			node, err := Parse(iv)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = node
		}
		return ListNode{Items: items}, nil
	default:
		return Literal{Value: v}, nil
	}
}

// parseTagged recognizes the discriminating keys of §6.1 and constructs the
// matching expression node. ok is false when none of the tag keys are
// present, in which case the caller treats the mapping as a plain literal
// container.
func parseTagged(m map[string]any) (Node, bool, error) {
	stream, _ := m["stream"].(bool)

	if raw, ok := m["text"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("text: expected string, got %T", raw)
		}
		return NewText(s, stream), true, nil
	}
	if raw, ok := m["var"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("var: expected string path, got %T", raw)
		}
		return Var{Path: s, Stream: stream}, true, nil
	}
	if raw, ok := m["link"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("link: expected string path, got %T", raw)
		}
		return Link{Path: s, Stream: stream}, true, nil
	}
	if raw, ok := m["env"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("env: expected string name, got %T", raw)
		}
		return Env{Name: s, Stream: stream}, true, nil
	}
	if raw, ok := m["lambda"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("lambda: expected string body, got %T", raw)
		}
		lam, err := NewLambda(s, stream)
		return lam, true, err
	}
	return nil, false, nil
}

// RootOf is the exported form of rootOf, for the checker to extract the
// root identifier of a target-output path.
func RootOf(path string) string {
	return rootOf(path)
}

// rootOf returns the first dotted path segment, up to the first '.' or '['.
func rootOf(path string) string {
	for i, r := range path {
		if r == '.' || r == '[' {
			return path[:i]
		}
	}
	return path
}
