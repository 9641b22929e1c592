// Package typesys answers the type questions the matcher and rewriter ask
// about type descriptors: assignability for placeholder constraints and
// numeric-ness for commutative arithmetic.
package typesys

import (
	"slices"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// Hierarchy relates type descriptors. Implementations must be safe for
// concurrent use once shared.
type Hierarchy interface {
	// Assignable reports whether a value of type from may stand where type to
	// is expected.
	Assignable(from, to string) bool
	// Numeric reports whether typ is a numeric type.
	Numeric(typ string) bool
}

// Satisfies reports whether a node of type typ meets constraint c under h.
// An unknown type satisfies only the top constraint.
func Satisfies(h Hierarchy, typ string, c pattern.Constraint) bool {
	if c.IsTop() {
		return true
	}

	if typ == "" {
		return false
	}

	if c.Exact {
		return slices.Contains(c.Types, typ)
	}

	for _, want := range c.Types {
		if typ == want || h.Assignable(typ, want) {
			return true
		}
	}

	return false
}

// Chain consults each hierarchy in order and accepts the first positive answer.
func Chain(hierarchies ...Hierarchy) Hierarchy {
	return chain(hierarchies)
}

type chain []Hierarchy

func (c chain) Assignable(from, to string) bool {
	for _, h := range c {
		if h.Assignable(from, to) {
			return true
		}
	}

	return false
}

func (c chain) Numeric(typ string) bool {
	for _, h := range c {
		if h.Numeric(typ) {
			return true
		}
	}

	return false
}
