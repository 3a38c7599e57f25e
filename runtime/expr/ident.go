package expr

import (
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// identifiersIn returns every free identifier referenced by an expr-lang
// expression, for dependency extraction out of Text's embedded `{{ }}` /
// `{% %}` blocks. Unlike Lambda, Text is not restricted to the §4.1
// whitelist (only Lambda bodies are AST-restricted); this just needs the
// set of root names the render will read from the context.
func identifiersIn(source string) []string {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil
	}
	c := &identCollector{bound: map[string]bool{}, seen: map[string]bool{}}
	c.walk(tree.Node)
	names := make([]string, 0, len(c.seen))
	for n := range c.seen {
		names = append(names, n)
	}
	return names
}

type identCollector struct {
	bound map[string]bool
	seen  map[string]bool
}

func (c *identCollector) walk(node ast.Node) {
	if node == nil {
		return
	}
	switch n := node.(type) {
	case *ast.IdentifierNode:
		if !c.bound[n.Value] && n.Value != "#" {
			c.seen[n.Value] = true
		}
	case *ast.UnaryNode:
		c.walk(n.Node)
	case *ast.BinaryNode:
		c.walk(n.Left)
		c.walk(n.Right)
	case *ast.MemberNode:
		c.walk(n.Node)
	case *ast.SliceNode:
		c.walk(n.Node)
		c.walk(n.From)
		c.walk(n.To)
	case *ast.ArrayNode:
		for _, e := range n.Nodes {
			c.walk(e)
		}
	case *ast.MapNode:
		for _, e := range n.Pairs {
			c.walk(e)
		}
	case *ast.PairNode:
		c.walk(n.Key)
		c.walk(n.Value)
	case *ast.ClosureNode:
		c.walk(n.Node)
	case *ast.VariableDeclaratorNode:
		c.walk(n.Value)
		c.bound[n.Name] = true
		c.walk(n.Expr)
	case *ast.BuiltinNode:
		for _, a := range n.Arguments {
			c.walk(a)
		}
	case *ast.CallNode:
		c.walk(n.Callee)
		for _, a := range n.Arguments {
			c.walk(a)
		}
	case *ast.ConditionalNode:
		c.walk(n.Cond)
		c.walk(n.Exp1)
		c.walk(n.Exp2)
	case *ast.SequenceNode:
		for _, e := range n.Nodes {
			c.walk(e)
		}
	}
}
