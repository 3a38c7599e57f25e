package expr

import (
	"context"
	"fmt"
	"strings"
)

// Text is a Jinja-like string template (§3.2, §4.1): `{{ expr }}`
// interpolation, `{% if/elif/else/endif %}`, `{% for x in expr %}` /
// `{% endfor %}` with `{% break %}` / `{% continue %}`. A template that is
// exactly one `{{ }}` block and nothing else preserves the native type of
// its value; anything with surrounding text (or more than one block)
// concatenates to a string.
type Text struct {
	Source string
	Stream bool
	nodes  []tplNode
}

// NewText parses source into a Text expression. A source that fails to
// parse is not reported: neither NewText nor Render returns an error for
// it, and Render yields the source unchanged.
func NewText(source string, stream bool) Text {
	nodes, err := parseTemplate(source)
	if err != nil {
		// A malformed template still has to round-trip through Parse (flow
		// loading never fails on a bad template, matching the teacher's
		// lenient YAML loader). Keep the raw source as a single literal text
		// node; there is nothing to evaluate.
		nodes = []tplNode{tplText{raw: source}}
	}
	return Text{Source: source, Stream: stream, nodes: nodes}
}

func (t Text) Dependencies() []Dep {
	names := map[string]bool{}
	collectNodeIdents(t.nodes, map[string]bool{}, names)
	deps := make([]Dep, 0, len(names))
	for name := range names {
		deps = append(deps, Dep{ID: name, Stream: t.Stream})
	}
	return deps
}

func (t Text) Render(ctx context.Context, env map[string]any) (any, error) {
	if len(t.nodes) == 1 {
		if p, ok := t.nodes[0].(tplPrint); ok {
			return evalExpr(p.expr, env)
		}
	}
	var buf strings.Builder
	if err := execNodes(ctx, t.nodes, env, &buf); err != nil {
		return nil, err
	}
	return buf.String(), nil
}

// tplNode is one piece of a parsed template.
type tplNode interface{}

type tplText struct{ raw string }
type tplPrint struct{ expr string }

type ifBranch struct {
	cond string
	body []tplNode
}

type tplIf struct {
	branches []ifBranch
	elseBody []tplNode
}

type tplFor struct {
	varName  string
	iterExpr string
	body     []tplNode
}

type tplBreak struct{}
type tplContinue struct{}

// loopSignal is returned up the call stack by {% break %} / {% continue %}
// and caught by the nearest enclosing tplFor.
type loopSignal struct{ kind string }

func (s loopSignal) Error() string { return "loop " + s.kind }

func execNodes(ctx context.Context, nodes []tplNode, env map[string]any, buf *strings.Builder) error {
	for _, n := range nodes {
		if err := execNode(ctx, n, env, buf); err != nil {
			return err
		}
	}
	return nil
}

func execNode(ctx context.Context, node tplNode, env map[string]any, buf *strings.Builder) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	switch n := node.(type) {
	case tplText:
		buf.WriteString(n.raw)
		return nil

	case tplPrint:
		v, err := evalExpr(n.expr, env)
		if err != nil {
			return err
		}
		buf.WriteString(stringify(v))
		return nil

	case tplBreak:
		return loopSignal{kind: "break"}

	case tplContinue:
		return loopSignal{kind: "continue"}

	case tplIf:
		for _, b := range n.branches {
			cond, err := evalExpr(b.cond, env)
			if err != nil {
				return err
			}
			if truthy(cond) {
				return execNodes(ctx, b.body, env, buf)
			}
		}
		return execNodes(ctx, n.elseBody, env, buf)

	case tplFor:
		iter, err := evalExpr(n.iterExpr, env)
		if err != nil {
			return err
		}
		items, err := toIterable(iter)
		if err != nil {
			return err
		}
		loopEnv := cloneEnv(env)
		for _, item := range items {
			loopEnv[n.varName] = item
			err := execNodes(ctx, n.body, loopEnv, buf)
			if sig, ok := err.(loopSignal); ok {
				if sig.kind == "break" {
					break
				}
				continue // "continue": skip to next item
			}
			if err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown template node %T", ErrInvalidExpression, node)
	}
}

func cloneEnv(env map[string]any) map[string]any {
	out := make(map[string]any, len(env)+1)
	for k, v := range env {
		out[k] = v
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}

func toIterable(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case map[string]any:
		out := make([]any, 0, len(x))
		for k := range x {
			out = append(out, k)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("cannot iterate over value of type %T", v)
	}
}

// collectNodeIdents walks a parsed template collecting every free
// identifier referenced by its embedded expressions, excluding names bound
// by an enclosing {% for %}.
func collectNodeIdents(nodes []tplNode, bound map[string]bool, out map[string]bool) {
	for _, n := range nodes {
		switch x := n.(type) {
		case tplPrint:
			mergeIdents(identifiersIn(x.expr), bound, out)
		case tplIf:
			for _, b := range x.branches {
				mergeIdents(identifiersIn(b.cond), bound, out)
				collectNodeIdents(b.body, bound, out)
			}
			collectNodeIdents(x.elseBody, bound, out)
		case tplFor:
			mergeIdents(identifiersIn(x.iterExpr), bound, out)
			inner := cloneBound(bound)
			inner[x.varName] = true
			collectNodeIdents(x.body, inner, out)
		}
	}
}

func mergeIdents(names []string, bound map[string]bool, out map[string]bool) {
	for _, n := range names {
		if !bound[n] {
			out[n] = true
		}
	}
}

func cloneBound(b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}
