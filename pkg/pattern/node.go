// Package pattern provides the language-agnostic tree model for templates:
// pattern nodes, placeholders, templates, and the bindings produced by a match.
package pattern

import (
	"slices"
	"strings"
)

// Span is the source region of a node. Start and End are byte offsets, Line and
// Col are 1-based and describe Start. Spans are meaningful only against the
// source the node was built from and are never persisted.
type Span struct {
	Start int
	End   int
	Line  int
	Col   int
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether the two spans share at least one byte.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Constraint is the set of type descriptors a placeholder accepts. An empty
// set is the top constraint. Exact pins the listed types instead of accepting
// their subtypes.
type Constraint struct {
	Types []string
	Exact bool
}

// IsTop reports whether the constraint accepts any type.
func (c Constraint) IsTop() bool {
	return len(c.Types) == 0
}

// Equal reports whether both constraints accept the same descriptors.
func (c Constraint) Equal(other Constraint) bool {
	return c.Exact == other.Exact && slices.Equal(c.Types, other.Types)
}

// Node is a pattern tree node. Each node exclusively owns its children.
//
// Fields:
//   - Kind: the variant tag.
//   - Token: operator, member name, literal text or identifier name depending on Kind.
//   - Ref: resolved symbol identity of an identifier, empty when unknown.
//   - Type: declared or inferred type descriptor, empty when unknown.
//   - Constraint, Variadic: placeholder metadata.
//   - Pos: optional source span.
//   - Children: ordered child nodes.
type Node struct {
	Kind       Kind
	Token      string
	Ref        string
	Type       string
	Constraint Constraint
	Variadic   bool
	Pos        *Span
	Children   []*Node
}

type transformFrame struct {
	node     *Node
	childIdx int
}

type equalFrame struct {
	left  *Node
	right *Node
}

// IsPlaceholder reports whether n is a placeholder node.
func (n *Node) IsPlaceholder() bool {
	return n != nil && n.Kind == KindPlaceholder
}

// IsStatement reports whether n is a statement.
func (n *Node) IsStatement() bool {
	return IsStatement(n.Kind, n.Token)
}

// Typed sets the type descriptor and returns n.
func (n *Node) Typed(typ string) *Node {
	n.Type = typ

	return n
}

// At sets the source span and returns n.
func (n *Node) At(start, end int) *Node {
	n.Pos = &Span{Start: start, End: end}

	return n
}

// Walk visits the tree in pre-order. Children of a node are skipped when fn
// returns false for it.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}

	stack := []*Node{n}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(current) {
			continue
		}

		pushReversedChildren(current, &stack)
	}
}

// Find returns every node, root included, for which predicate is true, in pre-order.
func (n *Node) Find(predicate func(*Node) bool) []*Node {
	var found []*Node

	n.Walk(func(current *Node) bool {
		if predicate(current) {
			found = append(found, current)
		}

		return true
	})

	return found
}

// Transform returns a deep copy of the tree where each node is replaced by
// fn applied to its copy, children first. Returns nil if n is nil.
func (n *Node) Transform(fn func(*Node) *Node) *Node {
	if n == nil {
		return nil
	}

	results := make(map[*Node]*Node)
	stack := []transformFrame{{node: n}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if top.childIdx < len(top.node.Children) {
			child := top.node.Children[top.childIdx]
			top.childIdx++

			if child != nil {
				stack = append(stack, transformFrame{node: child})
			}

			continue
		}

		nodeCopy := *top.node
		nodeCopy.Constraint.Types = slices.Clone(top.node.Constraint.Types)

		if top.node.Pos != nil {
			pos := *top.node.Pos
			nodeCopy.Pos = &pos
		}

		nodeCopy.Children = nil

		if len(top.node.Children) > 0 {
			nodeCopy.Children = make([]*Node, 0, len(top.node.Children))

			for _, child := range top.node.Children {
				if replaced := results[child]; replaced != nil {
					nodeCopy.Children = append(nodeCopy.Children, replaced)
				}
			}
		}

		results[top.node] = fn(&nodeCopy)
		stack = stack[:len(stack)-1]
	}

	return results[n]
}

// Clone returns a deep copy of the tree.
func (n *Node) Clone() *Node {
	return n.Transform(func(copied *Node) *Node { return copied })
}

// StripPositions returns a deep copy of the tree with every span removed.
func (n *Node) StripPositions() *Node {
	return n.Transform(func(copied *Node) *Node {
		copied.Pos = nil

		return copied
	})
}

// PlaceholderNames returns the distinct placeholder names in pre-order of
// first occurrence.
func (n *Node) PlaceholderNames() []string {
	var names []string

	seen := make(map[string]bool)

	n.Walk(func(current *Node) bool {
		if current.IsPlaceholder() && !seen[current.Token] {
			seen[current.Token] = true
			names = append(names, current.Token)
		}

		return true
	})

	return names
}

// Occurrences counts placeholder occurrences by name.
func (n *Node) Occurrences() map[string]int {
	counts := make(map[string]int)

	n.Walk(func(current *Node) bool {
		if current.IsPlaceholder() {
			counts[current.Token]++
		}

		return true
	})

	return counts
}

// Equal reports whether two trees are structurally equal. Spans are ignored.
func Equal(left, right *Node) bool {
	stack := []equalFrame{{left: left, right: right}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.left == nil || top.right == nil {
			if top.left != top.right {
				return false
			}

			continue
		}

		if !shallowEqual(top.left, top.right) {
			return false
		}

		for idx := range top.left.Children {
			stack = append(stack, equalFrame{left: top.left.Children[idx], right: top.right.Children[idx]})
		}
	}

	return true
}

func shallowEqual(left, right *Node) bool {
	return left.Kind == right.Kind &&
		left.Token == right.Token &&
		left.Ref == right.Ref &&
		left.Type == right.Type &&
		left.Variadic == right.Variadic &&
		left.Constraint.Equal(right.Constraint) &&
		len(left.Children) == len(right.Children)
}

// String renders the tree as an s-expression. Placeholders print as $name,
// multiplicity placeholders as $name...
func (n *Node) String() string {
	var buf strings.Builder

	writeNode(&buf, n)

	return buf.String()
}

func writeNode(buf *strings.Builder, n *Node) {
	if n == nil {
		buf.WriteString("nil")

		return
	}

	switch n.Kind {
	case KindPlaceholder:
		buf.WriteString("$" + n.Token)

		if n.Variadic {
			buf.WriteString("...")
		}

		return
	case KindIdent, KindLiteral:
		buf.WriteString(n.Token)

		return
	default:
	}

	buf.WriteString("(" + n.Kind.String())

	if n.Token != "" {
		buf.WriteString(" " + n.Token)
	}

	for _, child := range n.Children {
		buf.WriteByte(' ')
		writeNode(buf, child)
	}

	buf.WriteByte(')')
}

func pushReversedChildren(n *Node, stack *[]*Node) {
	for i := len(n.Children) - 1; i >= 0; i-- {
		if n.Children[i] != nil {
			*stack = append(*stack, n.Children[i])
		}
	}
}
