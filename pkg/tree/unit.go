package tree

import (
	"slices"
	"sync"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// Unit is one compilation unit handed to the engine: its tree, the source the
// spans refer to, and the imports already present.
type Unit struct {
	Name     string
	Language string
	Tree     Tree
	Source   []byte
	Imports  []string

	parentsOnce sync.Once
	parents     []NodeID
}

// Parent returns the parent of id, or NoNode for the root and for ids outside
// the tree. The parent table is built on first use.
func (u *Unit) Parent(id NodeID) NodeID {
	u.parentsOnce.Do(func() {
		u.parents = Parents(u.Tree)
	})

	if id < 0 || int(id) >= len(u.parents) {
		return pattern.NoNode
	}

	return u.parents[id]
}

// Text returns the source text of id, or "" when it has no span.
func (u *Unit) Text(id NodeID) string {
	span, ok := u.Tree.Span(id)
	if !ok || span.Start < 0 || span.End > len(u.Source) || span.Start > span.End {
		return ""
	}

	return string(u.Source[span.Start:span.End])
}

// HasImport reports whether path is already imported.
func (u *Unit) HasImport(path string) bool {
	return slices.Contains(u.Imports, path)
}

// SpanOf returns the span covering the statements [w.From, w.To) of block
// root, or the span of root itself when w is unset.
func (u *Unit) SpanOf(root NodeID, w pattern.Window) (pattern.Span, bool) {
	if !w.IsSet() {
		return u.Tree.Span(root)
	}

	children := u.Tree.Children(root)
	if w.From < 0 || w.To > len(children) {
		return pattern.Span{}, false
	}

	first, ok := u.Tree.Span(children[w.From])
	if !ok {
		return pattern.Span{}, false
	}

	last, ok := u.Tree.Span(children[w.To-1])
	if !ok {
		return pattern.Span{}, false
	}

	first.End = last.End

	return first, true
}
