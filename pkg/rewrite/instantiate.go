package rewrite

import (
	"fmt"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
)

// Instantiate substitutes every placeholder of p with a copy of its bound
// subtree of t. Multiplicity placeholders splice their runs into the parent's
// children. Template nodes lose their spans; substituted nodes keep theirs so
// a printer can reuse the original text. Neither p nor t is modified.
func Instantiate(p *pattern.Node, b pattern.Bindings, t tree.Tree) (*pattern.Node, error) {
	if p == nil {
		return nil, &pattern.InvariantViolation{Reason: "nil pattern"}
	}

	nodes, err := instantiate(p, b, t)
	if err != nil {
		return nil, err
	}

	if len(nodes) != 1 {
		return nil, fmt.Errorf("%w: %s expands to %d nodes at the root", ErrUnbound, p, len(nodes))
	}

	return nodes[0], nil
}

func instantiate(p *pattern.Node, b pattern.Bindings, t tree.Tree) ([]*pattern.Node, error) {
	if p.IsPlaceholder() {
		binding, ok := b.Lookup(p.Token)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnbound, p.Token)
		}

		copies := make([]*pattern.Node, 0, len(binding.Nodes))
		for _, id := range binding.Nodes {
			copies = append(copies, tree.Subtree(t, id))
		}

		return copies, nil
	}

	copied := &pattern.Node{Kind: p.Kind, Token: p.Token, Ref: p.Ref, Type: p.Type}

	for _, child := range p.Children {
		if child == nil {
			continue
		}

		expanded, err := instantiate(child, b, t)
		if err != nil {
			return nil, err
		}

		copied.Children = append(copied.Children, expanded...)
	}

	return []*pattern.Node{copied}, nil
}
