package rewrite

import (
	"slices"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
)

// SideEffecting reports whether the subtree at id may change program state
// when evaluated: it contains a call, a construction, an assignment or an
// increment outside a lambda body.
func SideEffecting(t tree.Tree, id tree.NodeID) bool {
	found := false

	_ = tree.PreOrder(t, id, func(current tree.NodeID) bool {
		if found {
			return false
		}

		switch t.Kind(current) {
		case pattern.KindLambda:
			return false
		case pattern.KindCall, pattern.KindNew, pattern.KindAssign:
			found = true
		case pattern.KindUnary:
			switch t.Token(current) {
			case "++", "--", pattern.PostInc, pattern.PostDec, "<-":
				found = true
			}
		default:
		}

		return !found
	})

	return found
}

// checkSideEffects compares how the after alternative evaluates the
// side-effecting bindings against how the target did. The target evaluated
// each binding once per occurrence in the matched before alternative; the
// after must evaluate it the same number of times.
func checkSideEffects(tmpl string, before, after *pattern.Node, b pattern.Bindings, t tree.Tree) error {
	var effectful []pattern.Binding

	for _, name := range b.Names() {
		binding, _ := b.Lookup(name)
		if slices.ContainsFunc(binding.Nodes, func(id tree.NodeID) bool { return SideEffecting(t, id) }) {
			effectful = append(effectful, binding)
		}
	}

	if len(effectful) == 0 {
		return nil
	}

	evaluated := map[string]int{}
	if before != nil {
		evaluated = before.Occurrences()
	}

	counts := after.Occurrences()

	for _, binding := range effectful {
		want := max(evaluated[binding.Name], 1)

		switch {
		case counts[binding.Name] < want:
			return &SideEffectError{Template: tmpl, Placeholder: binding.Name, Kind: SideEffectDropped}
		case counts[binding.Name] > want:
			return &SideEffectError{Template: tmpl, Placeholder: binding.Name, Kind: SideEffectDuplicated}
		}
	}

	// Pre-order of the after tree approximates evaluation order: receivers
	// before arguments, left operands before right ones.
	slices.SortFunc(effectful, func(x, y pattern.Binding) int { return x.Seq - y.Seq })

	var used []string

	for _, name := range after.PlaceholderNames() {
		if slices.ContainsFunc(effectful, func(binding pattern.Binding) bool { return binding.Name == name }) {
			used = append(used, name)
		}
	}

	for idx, binding := range effectful {
		if used[idx] != binding.Name {
			return &SideEffectError{Template: tmpl, Placeholder: binding.Name, Kind: SideEffectReordered}
		}
	}

	return nil
}
