// Package match unifies patterns against target trees.
//
// Unification is recursive over the pattern and enumerates every binding set
// through continuation callbacks, so backtracking into a multiplicity run or
// a commutative swap needs no explicit undo: bindings are immutable values
// and each branch extends its own copy. Recursion depth is bounded by the
// pattern depth; walks over target subtrees use explicit stacks.
package match

import (
	"fmt"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
	"github.com/Sumatoshi-tech/exfang/pkg/typesys"
)

// Operators whose operands may be swapped. The numeric ones only commute when
// the operation's type is numeric.
var (
	defaultCommutative = []string{"==", "!=", "&&", "||", "+", "*"}
	defaultNumericOnly = []string{"+", "*"}
)

// Matcher unifies patterns with targets. It holds no per-call state and is
// safe for concurrent use.
type Matcher struct {
	types       typesys.Hierarchy
	commutative map[string]bool
	numericOnly map[string]bool
	lenient     bool
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithHierarchy sets the type hierarchy used for placeholder constraints and
// numeric checks.
func WithHierarchy(h typesys.Hierarchy) Option {
	return func(m *Matcher) {
		m.types = h
	}
}

// WithCommutative replaces the set of commutative operators. numericOnly
// lists the subset that commutes only over numeric types.
func WithCommutative(ops, numericOnly []string) Option {
	return func(m *Matcher) {
		m.commutative = toSet(ops)
		m.numericOnly = toSet(numericOnly)
	}
}

// WithLenientTypes lets untyped target nodes satisfy any constraint. Use it
// with front ends that cannot resolve every expression type.
func WithLenientTypes() Option {
	return func(m *Matcher) {
		m.lenient = true
	}
}

// New creates a Matcher. The default hierarchy is [typesys.DefaultLattice].
func New(opts ...Option) *Matcher {
	m := &Matcher{
		types:       typesys.DefaultLattice(),
		commutative: toSet(defaultCommutative),
		numericOnly: toSet(defaultNumericOnly),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}

	return set
}

// Match unifies p with the subtree of t at root and returns every binding set,
// most specific first. No match is an empty result, not an error; a cyclic
// subtree or nil pattern is a [pattern.InvariantViolation].
func (m *Matcher) Match(p *pattern.Node, t tree.Tree, root tree.NodeID) ([]pattern.Bindings, error) {
	if p == nil {
		return nil, &pattern.InvariantViolation{Reason: "nil pattern"}
	}

	order, err := tree.Order(t, root)
	if err != nil {
		return nil, err
	}

	u := m.newUnifier(t, order)

	var found []pattern.Bindings

	seen := make(map[string]bool)

	u.unify(p, root, pattern.Bindings{}, func(b pattern.Bindings) bool {
		key := b.Key()
		if !seen[key] {
			seen[key] = true
			found = append(found, b)
		}

		return true
	})

	return found, nil
}

// MatchTemplate tries every node of t, in pre-order, as a match root against
// the before alternatives of tmpl. At each root the first alternative that
// unifies wins and all of its binding sets are reported. Overlapping matches
// are all reported.
func (m *Matcher) MatchTemplate(tmpl *pattern.Template, t tree.Tree) ([]pattern.MatchResult, error) {
	err := CheckTemplate(tmpl)
	if err != nil {
		return nil, err
	}

	order, err := tree.Order(t, t.Root())
	if err != nil {
		return nil, err
	}

	u := m.newUnifier(t, order)

	var results []pattern.MatchResult

	for _, id := range order {
		for alt, before := range tmpl.Befores {
			found := u.matchRoot(before, id)
			if len(found) == 0 {
				continue
			}

			for _, match := range found {
				results = append(results, pattern.MatchResult{
					Template:    tmpl.Name,
					Alternative: alt,
					Root:        id,
					Window:      match.window,
					Bindings:    match.bindings,
				})
			}

			break
		}
	}

	return results, nil
}

// CheckTemplate reports templates the matcher cannot run.
func CheckTemplate(tmpl *pattern.Template) error {
	if tmpl == nil {
		return &pattern.InvariantViolation{Reason: "nil template"}
	}

	if len(tmpl.Befores) == 0 {
		return &pattern.InvariantViolation{Reason: fmt.Sprintf("template %s has no before alternatives", tmpl.Name)}
	}

	for idx, before := range tmpl.Befores {
		if before == nil {
			return &pattern.InvariantViolation{
				Reason: fmt.Sprintf("template %s: before alternative %d is missing", tmpl.Name, idx),
			}
		}
	}

	return nil
}

func (m *Matcher) newUnifier(t tree.Tree, order []tree.NodeID) *unifier {
	rank := make([]int, t.Len())
	for i := range rank {
		rank[i] = -1
	}

	for i, id := range order {
		rank[id] = i
	}

	return &unifier{m: m, t: t, rank: rank}
}

func (m *Matcher) satisfies(typ string, c pattern.Constraint) bool {
	if typ == "" && m.lenient {
		return true
	}

	return typesys.Satisfies(m.types, typ, c)
}

// commutes reports whether the binary node id may have its operands swapped.
func (m *Matcher) commutes(t tree.Tree, id tree.NodeID) bool {
	op := t.Token(id)
	if !m.commutative[op] {
		return false
	}

	if m.numericOnly[op] {
		return m.types.Numeric(t.Type(id))
	}

	return true
}
