// Package rewrite turns a match into a source edit: it picks the first after
// alternative the bound types accept, checks that the side-effecting bound
// expressions keep their evaluation count and order, instantiates the
// alternative, prints it in the unit's dialect and diffs it against the
// matched text.
package rewrite

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
	"github.com/Sumatoshi-tech/exfang/pkg/typesys"
)

// Edit is the rewrite of one match.
type Edit struct {
	Template string `json:"template"`
	// Alternative is the index of the after alternative used.
	Alternative int          `json:"alternative"`
	Span        pattern.Span `json:"span"`
	Original    string       `json:"original"`
	Replacement string       `json:"replacement"`
	// TextEdits is the minimal set of changes inside Span.
	TextEdits []TextEdit `json:"textEdits"`
	// Imports lists template imports the unit does not have yet.
	Imports []string `json:"imports,omitempty"`
}

// Rewriter produces edits for matches. It holds no per-call state and is safe
// for concurrent use.
type Rewriter struct {
	types typesys.Hierarchy
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithHierarchy sets the hierarchy used to check after alternatives.
func WithHierarchy(h typesys.Hierarchy) Option {
	return func(r *Rewriter) {
		r.types = h
	}
}

// New creates a Rewriter. The default hierarchy is [typesys.DefaultLattice].
func New(opts ...Option) *Rewriter {
	r := &Rewriter{types: typesys.DefaultLattice()}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Rewrite builds the edit for result, a match of tmpl in unit.
func (r *Rewriter) Rewrite(unit *tree.Unit, tmpl *pattern.Template, result pattern.MatchResult) (*Edit, error) {
	dialect, err := DialectFor(unit.Language)
	if err != nil {
		return nil, err
	}

	alt, err := r.SelectAfter(tmpl, result.Bindings)
	if err != nil {
		return nil, err
	}

	after := tmpl.Afters[alt]

	var before *pattern.Node
	if result.Alternative >= 0 && result.Alternative < len(tmpl.Befores) {
		before = tmpl.Befores[result.Alternative]
	}

	err = checkSideEffects(tmpl.Name, before, after, result.Bindings, unit.Tree)
	if err != nil {
		return nil, err
	}

	instance, err := Instantiate(after, result.Bindings, unit.Tree)
	if err != nil {
		return nil, err
	}

	printer := NewPrinter(dialect, unit.Source)

	printed, err := printer.PrintAt(instance, enclosingPrec(printer, unit, result))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", tmpl.Name, err)
	}

	span, ok := unit.SpanOf(result.Root, result.Window)
	if !ok || span.Start < 0 || span.End > len(unit.Source) || span.Start > span.End {
		return nil, fmt.Errorf("%w: node %d", ErrNoSpan, result.Root)
	}

	original := string(unit.Source[span.Start:span.End])
	replacement := fitReplacement(printed, unit.Source, span)

	edit := &Edit{
		Template:    tmpl.Name,
		Alternative: alt,
		Span:        span,
		Original:    original,
		Replacement: replacement,
		TextEdits:   minimalEdits(span.Start, original, replacement),
	}

	for _, path := range tmpl.Imports {
		if !unit.HasImport(path) {
			edit.Imports = append(edit.Imports, path)
		}
	}

	return edit, nil
}

// enclosingPrec is the precedence the replacement needs to keep the grouping
// of the operand slot the match root occupies in its parent.
func enclosingPrec(p *Printer, unit *tree.Unit, result pattern.MatchResult) int {
	if result.Window.IsSet() {
		return precAssign
	}

	parent := unit.Parent(result.Root)
	if parent == pattern.NoNode {
		return precAssign
	}

	index := slices.Index(unit.Tree.Children(parent), result.Root)
	if index < 0 {
		return precAssign
	}

	return p.slotPrec(unit.Tree.Kind(parent), unit.Tree.Token(parent), index)
}

// SelectAfter returns the index of the first after alternative whose
// placeholders are all bound to types their constraints accept.
func (r *Rewriter) SelectAfter(tmpl *pattern.Template, b pattern.Bindings) (int, error) {
	var reasons []string

	for idx, after := range tmpl.Afters {
		if after == nil {
			reasons = append(reasons, fmt.Sprintf("alternative %d is missing", idx))

			continue
		}

		reason := r.rejects(after, b)
		if reason == "" {
			return idx, nil
		}

		reasons = append(reasons, fmt.Sprintf("alternative %d: %s", idx, reason))
	}

	return -1, &NoApplicableAfterError{Template: tmpl.Name, Reasons: reasons}
}

// rejects explains why after cannot take b, or returns "". Bound nodes without
// a type already passed the matcher and are not re-checked.
func (r *Rewriter) rejects(after *pattern.Node, b pattern.Bindings) string {
	var reason string

	after.Walk(func(n *pattern.Node) bool {
		if reason != "" || !n.IsPlaceholder() {
			return reason == ""
		}

		binding, ok := b.Lookup(n.Token)
		if !ok {
			reason = fmt.Sprintf("placeholder %s is unbound", n.Token)

			return false
		}

		for _, typ := range binding.Types {
			if typ != "" && !typesys.Satisfies(r.types, typ, n.Constraint) {
				reason = fmt.Sprintf("%s has type %s, want %v", n.Token, typ, n.Constraint.Types)

				return false
			}
		}

		return true
	})

	return reason
}

// fitReplacement indents continuation lines like the first replaced line and
// drops a statement terminator the source already carries after the span.
func fitReplacement(printed string, source []byte, span pattern.Span) string {
	if strings.HasSuffix(printed, ";") && span.End < len(source) && source[span.End] == ';' {
		printed = strings.TrimSuffix(printed, ";")
	}

	if !strings.Contains(printed, "\n") {
		return printed
	}

	lineStart := span.Start
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}

	indent := lineStart
	for indent < span.Start && (source[indent] == ' ' || source[indent] == '\t') {
		indent++
	}

	return strings.ReplaceAll(printed, "\n", "\n"+string(source[lineStart:indent]))
}
