// Package tree is the read-only, arena-indexed view through which the engine
// consumes a host syntax tree. Nodes are addressed by stable integer ids; the
// engine never mutates or retains the host's own representation.
package tree

import (
	"fmt"

	"github.com/emirpasic/gods/stacks/arraystack"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// NodeID addresses a node of a Tree.
type NodeID = pattern.NodeID

// Tree is the traversal interface a host front end provides. Slices returned
// by Children must not be modified by callers.
type Tree interface {
	Root() NodeID
	Len() int
	Kind(id NodeID) pattern.Kind
	Token(id NodeID) string
	Ref(id NodeID) string
	Type(id NodeID) string
	Children(id NodeID) []NodeID
	Span(id NodeID) (pattern.Span, bool)
}

// SameSymbol compares two identifiers: by resolved ref when both have one,
// by name otherwise.
func SameSymbol(leftToken, leftRef, rightToken, rightRef string) bool {
	if leftRef != "" && rightRef != "" {
		return leftRef == rightRef
	}

	return leftToken == rightToken
}

// Validate checks that every node reachable from the root is reached exactly
// once and that every child id is in range.
func Validate(t Tree) error {
	_, err := Order(t, t.Root())

	return err
}

// Order returns the nodes of the subtree at root in pre-order. A node reached
// twice (a cycle or a shared child) or an out-of-range id is an
// [pattern.InvariantViolation].
func Order(t Tree, root NodeID) ([]NodeID, error) {
	var order []NodeID

	err := PreOrder(t, root, func(id NodeID) bool {
		order = append(order, id)

		return true
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// PreOrder visits the subtree at root in pre-order using an explicit stack.
// Children of a node are skipped when fn returns false for it.
func PreOrder(t Tree, root NodeID, fn func(NodeID) bool) error {
	size := t.Len()
	if !inRange(root, size) {
		return &pattern.InvariantViolation{Reason: fmt.Sprintf("root %d out of range", root)}
	}

	visited := make([]bool, size)
	stack := arraystack.New()
	stack.Push(root)

	for !stack.Empty() {
		value, _ := stack.Pop()
		id, _ := value.(NodeID)

		if visited[id] {
			return &pattern.InvariantViolation{Reason: fmt.Sprintf("node %d reached twice (cycle or shared child)", id)}
		}

		visited[id] = true

		if !fn(id) {
			continue
		}

		children := t.Children(id)

		for i := len(children) - 1; i >= 0; i-- {
			if !inRange(children[i], size) {
				return &pattern.InvariantViolation{Reason: fmt.Sprintf("node %d has dangling child %d", id, children[i])}
			}

			stack.Push(children[i])
		}
	}

	return nil
}

// Parents returns the parent of every node reachable from the root, NoNode for
// the root and unreachable nodes. The tree must be valid.
func Parents(t Tree) []NodeID {
	parents := make([]NodeID, t.Len())
	for i := range parents {
		parents[i] = pattern.NoNode
	}

	_ = PreOrder(t, t.Root(), func(id NodeID) bool {
		for _, child := range t.Children(id) {
			parents[child] = id
		}

		return true
	})

	return parents
}

// Equal reports whether the subtrees at left and right are structurally
// equal: same kinds, tokens and symbols, and pairwise equal children. Types
// and spans are not compared.
func Equal(t Tree, left, right NodeID) bool {
	type pair struct{ left, right NodeID }

	stack := arraystack.New()
	stack.Push(pair{left, right})

	for !stack.Empty() {
		value, _ := stack.Pop()
		top, _ := value.(pair)

		if top.left == top.right {
			continue
		}

		if t.Kind(top.left) != t.Kind(top.right) {
			return false
		}

		if !SameSymbol(t.Token(top.left), t.Ref(top.left), t.Token(top.right), t.Ref(top.right)) {
			return false
		}

		leftChildren, rightChildren := t.Children(top.left), t.Children(top.right)
		if len(leftChildren) != len(rightChildren) {
			return false
		}

		for idx := range leftChildren {
			stack.Push(pair{leftChildren[idx], rightChildren[idx]})
		}
	}

	return true
}

// Subtree copies the subtree at id into a pattern tree. Copied nodes keep
// their spans so a printer can reuse the original text.
func Subtree(t Tree, id NodeID) *pattern.Node {
	type frame struct {
		id   NodeID
		node *pattern.Node
	}

	root := shallowCopy(t, id)
	stack := arraystack.New()
	stack.Push(frame{id, root})

	for !stack.Empty() {
		value, _ := stack.Pop()
		top, _ := value.(frame)

		children := t.Children(top.id)
		if len(children) == 0 {
			continue
		}

		top.node.Children = make([]*pattern.Node, len(children))

		for idx, child := range children {
			copied := shallowCopy(t, child)
			top.node.Children[idx] = copied
			stack.Push(frame{child, copied})
		}
	}

	return root
}

func shallowCopy(t Tree, id NodeID) *pattern.Node {
	copied := &pattern.Node{
		Kind:  t.Kind(id),
		Token: t.Token(id),
		Ref:   t.Ref(id),
		Type:  t.Type(id),
	}

	if span, ok := t.Span(id); ok {
		copied.Pos = &span
	}

	return copied
}

func inRange(id NodeID, size int) bool {
	return id >= 0 && int(id) < size
}
