package pattern

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// NodeID indexes a node in a target arena.
type NodeID int32

// NoNode is the absent node id.
const NoNode NodeID = -1

// Binding is what one placeholder bound to during a match.
type Binding struct {
	Name string
	// Nodes holds one id for a single placeholder and the ordered run for a
	// multiplicity placeholder (possibly empty).
	Nodes    []NodeID
	Variadic bool
	// Types holds the resolved type of each bound node.
	Types []string
	// Seq is the pre-order rank of the first bound node, -1 for an empty run.
	Seq int
}

// Node returns the single bound node, or NoNode for an empty run.
func (b Binding) Node() NodeID {
	if len(b.Nodes) == 0 {
		return NoNode
	}

	return b.Nodes[0]
}

// Type returns the resolved type of the single bound node.
func (b Binding) Type() string {
	if len(b.Types) == 0 {
		return ""
	}

	return b.Types[0]
}

// Bindings maps placeholder names to their bindings. The zero value is empty
// and ready to use. Bindings values are never mutated: With returns a copy, so
// partial bindings can be shared across backtracking branches.
type Bindings struct {
	entries map[string]Binding
}

// Lookup returns the binding for name.
func (b Bindings) Lookup(name string) (Binding, bool) {
	binding, ok := b.entries[name]

	return binding, ok
}

// With returns a copy of b extended with binding. It reports false when the
// name is already bound.
func (b Bindings) With(binding Binding) (Bindings, bool) {
	if _, bound := b.entries[binding.Name]; bound {
		return b, false
	}

	next := make(map[string]Binding, len(b.entries)+1)
	maps.Copy(next, b.entries)
	next[binding.Name] = binding

	return Bindings{entries: next}, true
}

// Len returns the number of bound placeholders.
func (b Bindings) Len() int {
	return len(b.entries)
}

// Names returns the bound names in sorted order.
func (b Bindings) Names() []string {
	return slices.Sorted(maps.Keys(b.entries))
}

// Key returns a canonical string identifying the binding set.
func (b Bindings) Key() string {
	var buf strings.Builder

	for _, name := range b.Names() {
		buf.WriteString(name)
		buf.WriteByte('=')

		for idx, id := range b.entries[name].Nodes {
			if idx > 0 {
				buf.WriteByte(',')
			}

			buf.WriteString(strconv.Itoa(int(id)))
		}

		buf.WriteByte(';')
	}

	return buf.String()
}

// Window selects the statements [From, To) of a block match root.
type Window struct {
	From int
	To   int
}

// IsSet reports whether the window selects at least one statement.
func (w Window) IsSet() bool {
	return w.To > w.From
}

// MatchResult is one successful match of a template.
type MatchResult struct {
	Template    string
	Alternative int
	Root        NodeID
	Window      Window
	Bindings    Bindings
}
