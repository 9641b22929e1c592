package pattern

import "slices"

// Placeholder declares a free variable of a template.
type Placeholder struct {
	Name       string
	Constraint Constraint
	Variadic   bool
}

// Template is a named set of before alternatives and ordered after
// alternatives sharing one placeholder set. Templates are immutable once built.
type Template struct {
	Name          string
	Befores       []*Node
	Afters        []*Node
	Placeholders  []Placeholder
	Imports       []string
	NonIdempotent bool
}

// Placeholder returns the declaration for name.
func (t *Template) Placeholder(name string) (Placeholder, bool) {
	for _, decl := range t.Placeholders {
		if decl.Name == name {
			return decl, true
		}
	}

	return Placeholder{}, false
}

// Equal reports whether both templates are structurally equal.
func (t *Template) Equal(other *Template) bool {
	if t == nil || other == nil {
		return t == other
	}

	if t.Name != other.Name || t.NonIdempotent != other.NonIdempotent ||
		!slices.Equal(t.Imports, other.Imports) ||
		len(t.Befores) != len(other.Befores) || len(t.Afters) != len(other.Afters) ||
		len(t.Placeholders) != len(other.Placeholders) {
		return false
	}

	for idx, decl := range t.Placeholders {
		peer := other.Placeholders[idx]
		if decl.Name != peer.Name || decl.Variadic != peer.Variadic || !decl.Constraint.Equal(peer.Constraint) {
			return false
		}
	}

	for idx := range t.Befores {
		if !Equal(t.Befores[idx], other.Befores[idx]) {
			return false
		}
	}

	for idx := range t.Afters {
		if !Equal(t.Afters[idx], other.Afters[idx]) {
			return false
		}
	}

	return true
}
