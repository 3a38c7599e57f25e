package expr

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// lambdaSafeBuiltins is the explicit safe set of callees a Lambda body may
// invoke (§4.1): comprehension-style builtins, len(), and range(). Nothing
// else. range passes the whitelist, but no range function is provided to
// the evaluator, so a call to it fails at render time.
var lambdaSafeBuiltins = map[string]bool{
	"range": true,
	"filter": true,
	"map":    true,
	"all":    true,
	"any":    true,
	"one":    true,
	"count":  true,
	"len":    true,
}

// Lambda is a restricted expression evaluated over the render context
// (§3.2, §4.1). The body is parsed at construction time and walked against
// an AST whitelist; anything outside it is rejected eagerly rather than at
// render time. Render compiles the source again on each call.
type Lambda struct {
	Source string
	Stream bool
	deps   []Dep
}

// NewLambda parses source, validates it against the restricted AST
// whitelist, and precomputes its dependency set.
func NewLambda(source string, stream bool) (Lambda, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return Lambda{}, fmt.Errorf("%w: %s: %v", ErrInvalidExpression, source, err)
	}

	w := &lambdaWalker{bound: map[string]bool{}}
	if err := w.check(tree.Node); err != nil {
		return Lambda{}, err
	}

	seen := map[Dep]bool{}
	var deps []Dep
	for name := range w.names {
		d := Dep{ID: name, Stream: stream}
		if !seen[d] {
			seen[d] = true
			deps = append(deps, d)
		}
	}
	return Lambda{Source: source, Stream: stream, deps: deps}, nil
}

func (l Lambda) Dependencies() []Dep { return l.deps }

func (l Lambda) Render(_ context.Context, env map[string]any) (any, error) {
	return evalExpr(l.Source, env)
}

// lambdaWalker enforces §4.1's whitelist and collects every free
// identifier referenced, excluding names bound by a comprehension/closure.
type lambdaWalker struct {
	bound map[string]bool
	names map[string]bool
}

func (w *lambdaWalker) record(name string) {
	if w.bound[name] || name == "#" {
		return
	}
	if w.names == nil {
		w.names = map[string]bool{}
	}
	w.names[name] = true
}

func (w *lambdaWalker) check(node ast.Node) error {
	if node == nil {
		return nil
	}
	switch n := node.(type) {
	case *ast.NilNode, *ast.BoolNode, *ast.IntegerNode, *ast.FloatNode, *ast.StringNode, *ast.ConstantNode:
		return nil

	case *ast.IdentifierNode:
		w.record(n.Value)
		return nil

	case *ast.PointerNode:
		return nil

	case *ast.UnaryNode:
		return w.check(n.Node)

	case *ast.BinaryNode:
		switch n.Operator {
		case "==", "!=":
			return w.checkAll(n.Left, n.Right)
		case "+":
			if !isLiteral(n.Left) || !isLiteral(n.Right) {
				return fmt.Errorf("%w: '+' only allowed between literals", ErrInvalidExpression)
			}
			return w.checkAll(n.Left, n.Right)
		default:
			return fmt.Errorf("%w: operator %q not permitted", ErrInvalidExpression, n.Operator)
		}

	case *ast.MemberNode:
		return w.checkAll(n.Node, n.Property)

	case *ast.SliceNode:
		return w.checkAll(n.Node, n.From, n.To)

	case *ast.ArrayNode:
		for _, e := range n.Nodes {
			if err := w.check(e); err != nil {
				return err
			}
		}
		return nil

	case *ast.MapNode:
		for _, e := range n.Pairs {
			if err := w.check(e); err != nil {
				return err
			}
		}
		return nil

	case *ast.PairNode:
		return w.checkAll(n.Key, n.Value)

	case *ast.ClosureNode:
		return w.check(n.Node)

	case *ast.VariableDeclaratorNode:
		w.bound[n.Name] = true
		return w.checkAll(n.Value, n.Expr)

	case *ast.BuiltinNode:
		if !lambdaSafeBuiltins[n.Name] {
			return fmt.Errorf("%w: call to %q not permitted", ErrInvalidExpression, n.Name)
		}
		for _, a := range n.Arguments {
			if err := w.check(a); err != nil {
				return err
			}
		}
		return nil

	case *ast.CallNode:
		ident, ok := n.Callee.(*ast.IdentifierNode)
		if !ok || !lambdaSafeBuiltins[ident.Value] {
			return fmt.Errorf("%w: call not permitted", ErrInvalidExpression)
		}
		for _, a := range n.Arguments {
			if err := w.check(a); err != nil {
				return err
			}
		}
		return nil

	case *ast.ConditionalNode:
		return w.checkAll(n.Cond, n.Exp1, n.Exp2)

	case *ast.SequenceNode:
		for _, e := range n.Nodes {
			if err := w.check(e); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: node type %T not permitted", ErrInvalidExpression, node)
	}
}

func (w *lambdaWalker) checkAll(nodes ...ast.Node) error {
	for _, n := range nodes {
		if err := w.check(n); err != nil {
			return err
		}
	}
	return nil
}

func isLiteral(node ast.Node) bool {
	switch node.(type) {
	case *ast.NilNode, *ast.BoolNode, *ast.IntegerNode, *ast.FloatNode, *ast.StringNode, *ast.ConstantNode:
		return true
	default:
		return false
	}
}
