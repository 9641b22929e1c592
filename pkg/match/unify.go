package match

import (
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
)

// unifier carries the read-only state of one matching call.
type unifier struct {
	m    *Matcher
	t    tree.Tree
	rank []int
}

// Continuations return false to stop the enumeration; every enumerating
// method returns false once stopped.
type (
	yieldFunc       func(pattern.Bindings) bool
	yieldPrefixFunc func(pattern.Bindings, int) bool
)

type rootMatch struct {
	window   pattern.Window
	bindings pattern.Bindings
}

// matchRoot collects the distinct matches of p at id. A block pattern matched
// against a block may cover any contiguous run of its statements.
func (u *unifier) matchRoot(p *pattern.Node, id tree.NodeID) []rootMatch {
	var found []rootMatch

	seen := make(map[string]bool)
	record := func(w pattern.Window, b pattern.Bindings) {
		key := b.Key()
		if w.IsSet() {
			key = fmt.Sprintf("%s@%d:%d", key, w.From, w.To)
		}

		if !seen[key] {
			seen[key] = true
			found = append(found, rootMatch{window: w, bindings: b})
		}
	}

	if p.Kind == pattern.KindBlock && u.t.Kind(id) == pattern.KindBlock {
		stmts := u.t.Children(id)

		for start := range stmts {
			u.prefix(p.Children, stmts[start:], pattern.Bindings{}, true, func(b pattern.Bindings, consumed int) bool {
				if consumed > 0 {
					record(pattern.Window{From: start, To: start + consumed}, b)
				}

				return true
			})
		}

		return found
	}

	u.unify(p, id, pattern.Bindings{}, func(b pattern.Bindings) bool {
		record(pattern.Window{}, b)

		return true
	})

	return found
}

// unify enumerates the binding sets under which p matches the node id.
func (u *unifier) unify(p *pattern.Node, id tree.NodeID, b pattern.Bindings, yield yieldFunc) bool {
	if p.IsPlaceholder() {
		return u.bindOne(p, id, b, yield)
	}

	if p.Kind != u.t.Kind(id) || !u.sameToken(p, id) {
		return true
	}

	children := u.t.Children(id)

	if p.Kind == pattern.KindBinary && len(children) == 2 && len(p.Children) == 2 && u.m.commutes(u.t, id) {
		if !u.seq(p.Children, children, b, false, yield) {
			return false
		}

		return u.seq(p.Children, []tree.NodeID{children[1], children[0]}, b, false, yield)
	}

	return u.seq(p.Children, children, b, p.Kind == pattern.KindBlock, yield)
}

func (u *unifier) sameToken(p *pattern.Node, id tree.NodeID) bool {
	if p.Kind == pattern.KindIdent {
		return tree.SameSymbol(p.Token, p.Ref, u.t.Token(id), u.t.Ref(id))
	}

	return p.Token == u.t.Token(id)
}

// bindOne binds a single placeholder to id, or checks a repeated occurrence
// against its first binding.
func (u *unifier) bindOne(p *pattern.Node, id tree.NodeID, b pattern.Bindings, yield yieldFunc) bool {
	if bound, ok := b.Lookup(p.Token); ok {
		if len(bound.Nodes) == 1 && tree.Equal(u.t, bound.Nodes[0], id) {
			return yield(b)
		}

		return true
	}

	if !u.bindable(p, id, false) {
		return true
	}

	next, _ := b.With(pattern.Binding{
		Name:  p.Token,
		Nodes: []tree.NodeID{id},
		Types: []string{u.t.Type(id)},
		Seq:   u.rank[id],
	})

	return yield(next)
}

// bindable reports whether placeholder p may bind node id.
func (u *unifier) bindable(p *pattern.Node, id tree.NodeID, allowStmts bool) bool {
	if !allowStmts && pattern.IsStatement(u.t.Kind(id), u.t.Token(id)) {
		return false
	}

	return u.m.satisfies(u.t.Type(id), p.Constraint)
}

// seq enumerates binding sets under which ps matches all of ts.
func (u *unifier) seq(ps []*pattern.Node, ts []tree.NodeID, b pattern.Bindings, allowStmts bool, yield yieldFunc) bool {
	return u.prefix(ps, ts, b, allowStmts, func(next pattern.Bindings, consumed int) bool {
		if consumed != len(ts) {
			return true
		}

		return yield(next)
	})
}

// prefix enumerates binding sets under which ps matches a prefix of ts,
// reporting how many nodes were consumed. Multiplicity placeholders try the
// longest run first.
func (u *unifier) prefix(ps []*pattern.Node, ts []tree.NodeID, b pattern.Bindings, allowStmts bool, yield yieldPrefixFunc) bool {
	if len(ps) == 0 {
		return yield(b, 0)
	}

	head, rest := ps[0], ps[1:]

	shift := func(n int) yieldPrefixFunc {
		return func(next pattern.Bindings, consumed int) bool {
			return yield(next, n+consumed)
		}
	}

	if head.IsPlaceholder() && head.Variadic {
		return u.prefixRun(head, rest, ts, b, allowStmts, shift)
	}

	if len(ts) == 0 {
		return true
	}

	return u.unify(head, ts[0], b, func(next pattern.Bindings) bool {
		return u.prefix(rest, ts[1:], next, allowStmts, shift(1))
	})
}

func (u *unifier) prefixRun(
	head *pattern.Node,
	rest []*pattern.Node,
	ts []tree.NodeID,
	b pattern.Bindings,
	allowStmts bool,
	shift func(int) yieldPrefixFunc,
) bool {
	if bound, ok := b.Lookup(head.Token); ok {
		if len(bound.Nodes) > len(ts) {
			return true
		}

		for idx, id := range bound.Nodes {
			if !tree.Equal(u.t, id, ts[idx]) {
				return true
			}
		}

		return u.prefix(rest, ts[len(bound.Nodes):], b, allowStmts, shift(len(bound.Nodes)))
	}

	longest := len(ts) - minWidth(rest)

	for idx := range max(longest, 0) {
		if !u.bindable(head, ts[idx], allowStmts) {
			longest = idx

			break
		}
	}

	for n := longest; n >= 0; n-- {
		run := slices.Clone(ts[:n])
		types := make([]string, len(run))

		for idx, id := range run {
			types[idx] = u.t.Type(id)
		}

		seq := -1
		if n > 0 {
			seq = u.rank[run[0]]
		}

		next, _ := b.With(pattern.Binding{Name: head.Token, Nodes: run, Types: types, Variadic: true, Seq: seq})

		if !u.prefix(rest, ts[n:], next, allowStmts, shift(n)) {
			return false
		}
	}

	return true
}

// minWidth is the fewest target nodes ps can consume.
func minWidth(ps []*pattern.Node) int {
	width := 0

	for _, p := range ps {
		if !p.IsPlaceholder() || !p.Variadic {
			width++
		}
	}

	return width
}
