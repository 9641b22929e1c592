package tree

import (
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// Entry describes one node added to an [Arena].
type Entry struct {
	Kind     pattern.Kind
	Token    string
	Ref      string
	Type     string
	Span     *pattern.Span
	Children []NodeID
}

type arenaNode struct {
	kind     pattern.Kind
	token    string
	ref      string
	typ      string
	span     pattern.Span
	hasSpan  bool
	children []NodeID
}

// Arena is the Tree implementation built by front ends. It is written while a
// front end converts a unit and read-only afterwards.
type Arena struct {
	nodes []arenaNode
	root  NodeID
}

// NewArena creates an empty arena with capacity for sizeHint nodes.
func NewArena(sizeHint int) *Arena {
	return &Arena{nodes: make([]arenaNode, 0, sizeHint), root: pattern.NoNode}
}

// Add appends a node and returns its id. The first node added becomes the
// root unless SetRoot says otherwise.
func (a *Arena) Add(entry Entry) NodeID {
	node := arenaNode{
		kind:     entry.Kind,
		token:    entry.Token,
		ref:      entry.Ref,
		typ:      entry.Type,
		children: entry.Children,
	}

	if entry.Span != nil {
		node.span = *entry.Span
		node.hasSpan = true
	}

	id := NodeID(len(a.nodes)) //nolint:gosec // arenas never approach 2^31 nodes.
	a.nodes = append(a.nodes, node)

	if a.root == pattern.NoNode {
		a.root = id
	}

	return id
}

// SetChildren replaces the children of id, allowing parent-first construction.
func (a *Arena) SetChildren(id NodeID, children []NodeID) {
	a.nodes[id].children = children
}

// SetType replaces the type descriptor of id.
func (a *Arena) SetType(id NodeID, typ string) {
	a.nodes[id].typ = typ
}

// SetRoot marks id as the root.
func (a *Arena) SetRoot(id NodeID) {
	a.root = id
}

// Root returns the root id, NoNode for an empty arena.
func (a *Arena) Root() NodeID {
	return a.root
}

// Len returns the number of nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// Kind returns the kind of id.
func (a *Arena) Kind(id NodeID) pattern.Kind {
	if !a.has(id) {
		return pattern.KindInvalid
	}

	return a.nodes[id].kind
}

// Token returns the token of id.
func (a *Arena) Token(id NodeID) string {
	if !a.has(id) {
		return ""
	}

	return a.nodes[id].token
}

// Ref returns the resolved symbol of id.
func (a *Arena) Ref(id NodeID) string {
	if !a.has(id) {
		return ""
	}

	return a.nodes[id].ref
}

// Type returns the type descriptor of id.
func (a *Arena) Type(id NodeID) string {
	if !a.has(id) {
		return ""
	}

	return a.nodes[id].typ
}

// Children returns the child ids of id.
func (a *Arena) Children(id NodeID) []NodeID {
	if !a.has(id) {
		return nil
	}

	return a.nodes[id].children
}

// Span returns the source span of id.
func (a *Arena) Span(id NodeID) (pattern.Span, bool) {
	if !a.has(id) {
		return pattern.Span{}, false
	}

	return a.nodes[id].span, a.nodes[id].hasSpan
}

func (a *Arena) has(id NodeID) bool {
	return inRange(id, len(a.nodes))
}

// FromPattern builds an arena from a pattern tree. The root gets id 0 and the
// children of a node get consecutive ids.
func FromPattern(root *pattern.Node) *Arena {
	arena := NewArena(0)
	if root == nil {
		return arena
	}

	type frame struct {
		node *pattern.Node
		id   NodeID
	}

	stack := []frame{{node: root, id: arena.Add(entryOf(root))}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children := make([]NodeID, 0, len(top.node.Children))
		pending := make([]frame, 0, len(top.node.Children))

		for _, child := range top.node.Children {
			if child == nil {
				continue
			}

			pending = append(pending, frame{node: child})
		}

		for idx := range pending {
			pending[idx].id = arena.Add(entryOf(pending[idx].node))
			children = append(children, pending[idx].id)
		}

		arena.SetChildren(top.id, children)

		for i := len(pending) - 1; i >= 0; i-- {
			stack = append(stack, pending[i])
		}
	}

	return arena
}

func entryOf(node *pattern.Node) Entry {
	entry := Entry{Kind: node.Kind, Token: node.Token, Ref: node.Ref, Type: node.Type}

	if node.Pos != nil {
		span := *node.Pos
		entry.Span = &span
	}

	return entry
}
