package golang

import (
	"errors"
	"fmt"
	"go/ast"
	"go/types"
	"maps"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/exfang/pkg/extract"
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// Example functions are marked with directives in their doc comment:
//
//	//exfang:before NAME     the body is a before alternative of template NAME
//	//exfang:after NAME      the body is an after alternative of template NAME
//	//exfang:exact PARAM     PARAM only matches its declared type exactly
//	//exfang:import PATH     the rewrite needs PATH imported
//	//exfang:nonidempotent   the after may match the before again
//
// Functions of one template share their parameter names; the first before
// function declares the parameter types. An after function that declares a
// parameter with a different type demands that type of the bound code.
const directivePrefix = "//exfang:"

// ErrDirective is returned for an unknown or incomplete directive.
var ErrDirective = errors.New("invalid exfang directive")

type exampleFunc struct {
	decl  *ast.FuncDecl
	after bool
}

type exampleGroup struct {
	name          string
	funcs         []exampleFunc
	exact         map[string]bool
	imports       []string
	nonIdempotent bool
}

// LoadExamples reads the template examples of one Go file, in the order their
// templates first appear.
func (p *Parser) LoadExamples(name string, src []byte) ([]extract.Example, error) {
	c, err := p.check(name, src)
	if err != nil {
		return nil, err
	}

	groups, err := collectGroups(c.file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	examples := make([]extract.Example, 0, len(groups))

	for _, group := range groups {
		examples = append(examples, p.example(c, group))
	}

	return examples, nil
}

// CompileExamples loads the examples of one file and extracts their templates.
func (p *Parser) CompileExamples(name string, src []byte) ([]*pattern.Template, error) {
	examples, err := p.LoadExamples(name, src)
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

func collectGroups(file *ast.File) ([]*exampleGroup, error) {
	var order []*exampleGroup

	byName := make(map[string]*exampleGroup)

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Doc == nil || fn.Body == nil {
			continue
		}

		d, err := parseDirectives(fn.Doc)
		if err != nil {
			return nil, fmt.Errorf("func %s: %w", fn.Name.Name, err)
		}

		if d.template == "" {
			continue
		}

		group := byName[d.template]
		if group == nil {
			group = &exampleGroup{name: d.template, exact: make(map[string]bool)}
			byName[d.template] = group
			order = append(order, group)
		}

		group.funcs = append(group.funcs, exampleFunc{decl: fn, after: d.after})
		group.imports = append(group.imports, d.imports...)
		group.nonIdempotent = group.nonIdempotent || d.nonIdempotent

		for _, param := range d.exact {
			group.exact[param] = true
		}
	}

	return order, nil
}

type directives struct {
	template      string
	after         bool
	exact         []string
	imports       []string
	nonIdempotent bool
}

func parseDirectives(doc *ast.CommentGroup) (directives, error) {
	var d directives

	for _, comment := range doc.List {
		text, ok := strings.CutPrefix(comment.Text, directivePrefix)
		if !ok {
			continue
		}

		verb, arg, _ := strings.Cut(strings.TrimSpace(text), " ")
		arg = strings.TrimSpace(arg)

		switch verb {
		case "before", "after":
			if arg == "" || (d.template != "" && d.template != arg) {
				return d, fmt.Errorf("%w: %q", ErrDirective, comment.Text)
			}

			d.template, d.after = arg, verb == "after"
		case "exact":
			d.exact = append(d.exact, strings.Fields(arg)...)
		case "import":
			d.imports = append(d.imports, strings.Fields(arg)...)
		case "nonidempotent":
			d.nonIdempotent = true
		default:
			return d, fmt.Errorf("%w: %q", ErrDirective, comment.Text)
		}
	}

	if d.template == "" && (len(d.exact) > 0 || len(d.imports) > 0 || d.nonIdempotent) {
		return d, fmt.Errorf("%w: no before or after directive", ErrDirective)
	}

	return d, nil
}

func (p *Parser) signature(c *checked, fn *ast.FuncDecl) *types.Signature {
	obj := c.info.Defs[fn.Name]
	if obj == nil {
		return nil
	}

	sig, _ := obj.Type().(*types.Signature)

	return sig
}

// paramType returns the declared type of parameter idx; variadic parameters
// report their element type.
func paramType(sig *types.Signature, idx int) (types.Type, bool) {
	v := sig.Params().At(idx)
	if sig.Variadic() && idx == sig.Params().Len()-1 {
		if slice, ok := v.Type().(*types.Slice); ok {
			return slice.Elem(), true
		}
	}

	return v.Type(), false
}

func (p *Parser) example(c *checked, group *exampleGroup) extract.Example {
	ex := extract.Example{Name: group.name, NonIdempotent: group.nonIdempotent}

	declared := make(map[string]string)

	for _, fn := range group.funcs {
		if fn.after {
			continue
		}

		if sig := p.signature(c, fn.decl); sig != nil {
			ex.Params = p.params(sig, group.exact, declared)
		}

		break
	}

	imports := slices.Clone(group.imports)

	for _, fn := range group.funcs {
		conv := newConverter(p.fset, c.file, c.info, p.Hierarchy)
		conv.positions = false
		conv.holes, conv.variadic = p.holes(conv, p.signature(c, fn.decl), group.exact, declared)

		body := conv.block(fn.decl.Body)

		if fn.after {
			ex.Afters = append(ex.Afters, body)
			imports = append(imports, slices.Collect(maps.Keys(conv.packages))...)
		} else {
			ex.Befores = append(ex.Befores, body)
		}
	}

	slices.Sort(imports)
	ex.Imports = slices.Compact(imports)

	return ex
}

func (p *Parser) params(sig *types.Signature, exact map[string]bool, declared map[string]string) []extract.Param {
	var params []extract.Param

	for idx := range sig.Params().Len() {
		name := sig.Params().At(idx).Name()
		if name == "" || name == "_" {
			continue
		}

		t, variadic := paramType(sig, idx)
		typ := types.TypeString(t, func(pkg *types.Package) string { return pkg.Name() })
		p.Hierarchy.record(typ, t)
		declared[name] = typ

		params = append(params, extract.Param{Name: name, Type: typ, Exact: exact[name], Variadic: variadic})
	}

	return params
}

// holes maps the parameters of one example function that are typed
// differently from the template declaration to explicit placeholders.
func (p *Parser) holes(
	conv *converter, sig *types.Signature, exact map[string]bool, declared map[string]string,
) (map[types.Object]*pattern.Node, map[types.Object]bool) {
	holes := make(map[types.Object]*pattern.Node)
	variadic := make(map[types.Object]bool)

	if sig == nil {
		return holes, variadic
	}

	for idx := range sig.Params().Len() {
		v := sig.Params().At(idx)

		t, isVariadic := paramType(sig, idx)
		if isVariadic {
			variadic[v] = true
		}

		want, ok := declared[v.Name()]
		typ := conv.typeString(t)

		if !ok || typ == want {
			continue
		}

		switch {
		case isVariadic:
			holes[v] = pattern.Holes(v.Name(), typ)
		case exact[v.Name()]:
			holes[v] = pattern.ExactHole(v.Name(), typ)
		default:
			holes[v] = pattern.Hole(v.Name(), typ)
		}
	}

	return holes, variadic
}
