package extract

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// arity bounds per kind; -1 means unbounded.
var arity = map[pattern.Kind][2]int{
	pattern.KindLiteral:     {0, 0},
	pattern.KindIdent:       {0, 0},
	pattern.KindPlaceholder: {0, 0},
	pattern.KindCall:        {1, -1},
	pattern.KindNew:         {0, -1},
	pattern.KindField:       {1, 1},
	pattern.KindLambda:      {1, -1},
	pattern.KindMethodRef:   {1, 1},
	pattern.KindBlock:       {0, -1},
	pattern.KindConditional: {2, 3},
	pattern.KindBinary:      {2, 2},
	pattern.KindUnary:       {1, 1},
	pattern.KindArray:       {0, -1},
	pattern.KindCast:        {1, 1},
	pattern.KindReturn:      {0, -1},
	pattern.KindLet:         {1, 1},
	pattern.KindAssign:      {2, 2},
	pattern.KindIndex:       {2, 2},
	pattern.KindKeyValue:    {2, 2},
	pattern.KindOpaque:      {0, -1},
}

type generalizer struct {
	template string
	params   map[string]Param
}

func (g *generalizer) malformed(format string, args ...any) error {
	return &MalformedExampleError{Template: g.template, Reason: fmt.Sprintf(format, args...)}
}

// body generalizes one before or after body.
func (g *generalizer) body(body *pattern.Node, label string) (*pattern.Node, error) {
	if body == nil {
		return nil, g.malformed("%s is empty", label)
	}

	body = unwrap(body)

	if body.Kind == pattern.KindBlock && len(body.Children) == 0 {
		return nil, g.malformed("%s has no statements", label)
	}

	generalized, err := g.subst(body, nil)
	if err != nil {
		return nil, err
	}

	if generalized.IsPlaceholder() && generalized.Variadic {
		return nil, g.malformed("%s is a bare multiplicity placeholder", label)
	}

	err = g.wellFormed(generalized, label)
	if err != nil {
		return nil, err
	}

	return generalized, nil
}

// unwrap reduces a one-statement body to its statement and a return of a
// single value to the value, so an example written as a method body matches
// the expression it returns.
func unwrap(body *pattern.Node) *pattern.Node {
	for {
		switch {
		case body.Kind == pattern.KindBlock && len(body.Children) == 1 && body.Children[0] != nil:
			body = body.Children[0]
		case body.Kind == pattern.KindReturn && len(body.Children) == 1 && body.Children[0] != nil:
			body = body.Children[0]
		default:
			return body
		}
	}
}

// subst copies n, replacing references to free variables by placeholders.
// shadow holds names rebound by enclosing lambdas or earlier lets.
func (g *generalizer) subst(n *pattern.Node, shadow map[string]bool) (*pattern.Node, error) {
	if n == nil {
		return nil, g.malformed("nil node")
	}

	switch n.Kind {
	case pattern.KindIdent:
		if param, ok := g.params[n.Token]; ok && !shadow[n.Token] && (param.Ref == "" || n.Ref == "" || n.Ref == param.Ref) {
			return g.placeholder(param, n.Pos), nil
		}

		return copyNode(n), nil
	case pattern.KindPlaceholder:
		param, ok := g.params[n.Token]
		if !ok {
			return nil, g.malformed("placeholder %q is not a declared parameter", n.Token)
		}

		hole := g.placeholder(param, n.Pos)
		if !n.Constraint.IsTop() {
			// An explicit hole narrows the declared constraint; after
			// alternatives rely on it to demand different bound types.
			hole.Constraint = pattern.Constraint{Types: slices.Clone(n.Constraint.Types), Exact: n.Constraint.Exact}
		}

		return hole, nil
	case pattern.KindLambda:
		return g.substLambda(n, shadow)
	case pattern.KindBlock:
		return g.substBlock(n, shadow)
	default:
		return g.substChildren(n, shadow)
	}
}

func (g *generalizer) placeholder(param Param, pos *pattern.Span) *pattern.Node {
	hole := &pattern.Node{
		Kind:       pattern.KindPlaceholder,
		Token:      param.Name,
		Constraint: constraintOf(param),
		Variadic:   param.Variadic,
	}

	if pos != nil {
		span := *pos
		hole.Pos = &span
	}

	return hole
}

func (g *generalizer) substChildren(n *pattern.Node, shadow map[string]bool) (*pattern.Node, error) {
	copied := copyNode(n)

	for _, child := range n.Children {
		substituted, err := g.subst(child, shadow)
		if err != nil {
			return nil, err
		}

		copied.Children = append(copied.Children, substituted)
	}

	return copied, nil
}

func (g *generalizer) substLambda(n *pattern.Node, shadow map[string]bool) (*pattern.Node, error) {
	if len(n.Children) == 0 {
		return nil, g.malformed("lambda without body")
	}

	inner := maps.Clone(shadow)
	if inner == nil {
		inner = make(map[string]bool)
	}

	copied := copyNode(n)
	params := n.Children[:len(n.Children)-1]

	for _, param := range params {
		if param == nil || param.Kind != pattern.KindIdent {
			return nil, g.malformed("lambda parameter is not an identifier")
		}

		inner[param.Token] = true

		copied.Children = append(copied.Children, copyNode(param))
	}

	body, err := g.subst(n.Children[len(n.Children)-1], inner)
	if err != nil {
		return nil, err
	}

	copied.Children = append(copied.Children, body)

	return copied, nil
}

func (g *generalizer) substBlock(n *pattern.Node, shadow map[string]bool) (*pattern.Node, error) {
	copied := copyNode(n)
	scope := shadow

	for _, stmt := range n.Children {
		substituted, err := g.subst(stmt, scope)
		if err != nil {
			return nil, err
		}

		copied.Children = append(copied.Children, substituted)

		if stmt.Kind == pattern.KindLet {
			scope = maps.Clone(scope)
			if scope == nil {
				scope = make(map[string]bool)
			}

			scope[stmt.Token] = true
		}
	}

	return copied, nil
}

func copyNode(n *pattern.Node) *pattern.Node {
	copied := *n
	copied.Children = nil

	if n.Pos != nil {
		span := *n.Pos
		copied.Pos = &span
	}

	return &copied
}

// wellFormed checks arities and that multiplicity placeholders only sit in
// sibling lists.
func (g *generalizer) wellFormed(root *pattern.Node, label string) error {
	type frame struct {
		node   *pattern.Node
		parent *pattern.Node
		index  int
	}

	stack := []frame{{node: root, index: -1}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		bounds, known := arity[top.node.Kind]
		if !known {
			return g.malformed("%s contains node of kind %s", label, top.node.Kind)
		}

		count := len(top.node.Children)
		if count < bounds[0] || (bounds[1] >= 0 && count > bounds[1]) {
			return g.malformed("%s: %s node has %d children", label, top.node.Kind, count)
		}

		if top.node.IsPlaceholder() && top.node.Variadic && !inList(top.parent, top.index) {
			return g.malformed("%s: multiplicity placeholder %q outside an argument or statement list",
				label, top.node.Token)
		}

		for idx, child := range top.node.Children {
			stack = append(stack, frame{node: child, parent: top.node, index: idx})
		}
	}

	return nil
}

func inList(parent *pattern.Node, index int) bool {
	if parent == nil || !pattern.ListKind(parent.Kind) {
		return false
	}

	return parent.Kind != pattern.KindCall || index > 0
}
