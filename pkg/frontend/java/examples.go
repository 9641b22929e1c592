package java

import (
	"context"
	"fmt"
	"maps"
	"slices"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/exfang/pkg/extract"
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// Annotations recognized on template classes, methods and parameters.
const (
	annotationBefore        = "BeforeTemplate"
	annotationAfter         = "AfterTemplate"
	annotationExact         = "Exact"
	annotationRepeated      = "Repeated"
	annotationNonIdempotent = "NonIdempotent"
)

// LoadExamples reads the template classes of one Java file. A template class
// has at least one @BeforeTemplate method; its @AfterTemplate methods are the
// after alternatives in declaration order. Parameters of the first before
// method declare the placeholders; @Exact pins a type and varargs or
// @Repeated parameters match runs of arguments.
func (p *Parser) LoadExamples(ctx context.Context, name string, src []byte) ([]extract.Example, error) {
	var examples []extract.Example

	err := p.parse(ctx, name, src, func(root sitter.Node) error {
		c := newConverter(src, p.Hierarchy)
		c.positions = false
		c.collectImports(root)
		c.declareClasses(root)

		examples = c.examples(root, nil)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return examples, nil
}

// CompileExamples loads the examples of one file and extracts their templates.
func (p *Parser) CompileExamples(ctx context.Context, name string, src []byte) ([]*pattern.Template, error) {
	examples, err := p.LoadExamples(ctx, name, src)
	if err != nil {
		return nil, err
	}

	templates := make([]*pattern.Template, 0, len(examples))

	for _, ex := range examples {
		tmpl, extractErr := extract.Extract(ex)
		if extractErr != nil {
			return nil, fmt.Errorf("%s: %w", name, extractErr)
		}

		templates = append(templates, tmpl)
	}

	return templates, nil
}

func (c *converter) examples(n sitter.Node, found []extract.Example) []extract.Example {
	if slices.Contains(classKinds, n.Type()) {
		if ex, ok := c.example(n); ok {
			found = append(found, ex)
		}
	}

	for _, child := range namedChildren(n) {
		found = c.examples(child, found)
	}

	return found
}

type templateMethod struct {
	node  sitter.Node
	after bool
}

func (c *converter) example(class sitter.Node) (extract.Example, bool) {
	var methods []templateMethod

	hasBefore := false

	for _, member := range namedChildren(class.ChildByFieldName("body")) {
		if member.Type() != "method_declaration" {
			continue
		}

		annotations := c.annotations(member)

		switch {
		case slices.Contains(annotations, annotationBefore):
			methods = append(methods, templateMethod{node: member})
			hasBefore = true
		case slices.Contains(annotations, annotationAfter):
			methods = append(methods, templateMethod{node: member, after: true})
		}
	}

	if !hasBefore {
		return extract.Example{}, false
	}

	ex := extract.Example{
		Name:          c.text(class.ChildByFieldName("name")),
		NonIdempotent: slices.Contains(c.annotations(class), annotationNonIdempotent),
	}

	declared := make(map[string]param)

	for _, m := range methods {
		if m.after {
			continue
		}

		for _, p := range c.params(m.node) {
			p.variadic = p.variadic || slices.Contains(p.annotations, annotationRepeated)
			declared[p.name] = p

			ex.Params = append(ex.Params, extract.Param{
				Name:     p.name,
				Type:     p.typ,
				Exact:    slices.Contains(p.annotations, annotationExact),
				Variadic: p.variadic,
			})
		}

		break
	}

	var imports []string

	for _, m := range methods {
		c.used = make(map[string]bool)
		c.holes = c.exampleHoles(m.node, declared)

		body := c.method(m.node)
		if body == nil || len(body.Children) == 0 {
			continue
		}

		if m.after {
			ex.Afters = append(ex.Afters, body.Children[0])
			imports = append(imports, slices.Collect(maps.Keys(c.used))...)
		} else {
			ex.Befores = append(ex.Befores, body.Children[0])
		}
	}

	c.holes = nil

	slices.Sort(imports)
	ex.Imports = slices.Compact(imports)

	return ex, true
}

// exampleHoles maps the parameters of one template method that are typed
// differently from the declaration to explicit placeholders.
func (c *converter) exampleHoles(method sitter.Node, declared map[string]param) map[string]*pattern.Node {
	holes := make(map[string]*pattern.Node)

	for _, p := range c.params(method) {
		want, ok := declared[p.name]
		if !ok || p.typ == want.typ {
			continue
		}

		switch {
		case want.variadic:
			holes[p.name] = pattern.Holes(p.name, p.typ)
		case slices.Contains(want.annotations, annotationExact):
			holes[p.name] = pattern.ExactHole(p.name, p.typ)
		default:
			holes[p.name] = pattern.Hole(p.name, p.typ)
		}
	}

	return holes
}
