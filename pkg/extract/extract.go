// Package extract turns typed example code into templates. Free variables of
// the example become placeholders; everything else is copied as concrete
// pattern structure.
package extract

import (
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// Param declares one free variable of an example.
type Param struct {
	Name string
	// Type is the declared parameter type; empty means top.
	Type string
	// Ref is the symbol identity the front end gave references to this
	// parameter. When set, only identifiers carrying it are free.
	Ref string
	// Exact pins Type instead of accepting subtypes.
	Exact bool
	// Variadic makes the placeholder absorb a run of siblings.
	Variadic bool
}

// Example is the typed input for one template: before bodies (alternatives),
// after bodies (ordered by preference) and the shared free variables.
type Example struct {
	Name          string
	Befores       []*pattern.Node
	Afters        []*pattern.Node
	Params        []Param
	Imports       []string
	NonIdempotent bool
}

// Extract builds a template from ex.
func Extract(ex Example) (*pattern.Template, error) {
	if ex.Name == "" {
		return nil, &MalformedExampleError{Template: "<unnamed>", Reason: "template has no name"}
	}

	if len(ex.Befores) == 0 {
		return nil, &MalformedExampleError{Template: ex.Name, Reason: "no before body"}
	}

	if len(ex.Afters) == 0 {
		return nil, &MalformedExampleError{Template: ex.Name, Reason: "no after body"}
	}

	params, err := indexParams(ex)
	if err != nil {
		return nil, err
	}

	gen := &generalizer{template: ex.Name, params: params}

	befores := make([]*pattern.Node, 0, len(ex.Befores))

	for idx, body := range ex.Befores {
		generalized, genErr := gen.body(body, fmt.Sprintf("before %d", idx))
		if genErr != nil {
			return nil, genErr
		}

		befores = append(befores, generalized)
	}

	err = checkPlaceholderSets(ex, befores)
	if err != nil {
		return nil, err
	}

	afters := make([]*pattern.Node, 0, len(ex.Afters))

	for idx, body := range ex.Afters {
		generalized, genErr := gen.body(body, fmt.Sprintf("after %d", idx))
		if genErr != nil {
			return nil, genErr
		}

		if opaque := findOpaque(generalized); opaque != nil {
			return nil, &MalformedExampleError{
				Template: ex.Name,
				Reason:   fmt.Sprintf("after %d contains an unprintable construct %q", idx, opaque.Token),
			}
		}

		afters = append(afters, generalized)
	}

	imports := slices.Clone(ex.Imports)
	slices.Sort(imports)

	return &pattern.Template{
		Name:          ex.Name,
		Befores:       befores,
		Afters:        afters,
		Placeholders:  declarations(ex.Params),
		Imports:       slices.Compact(imports),
		NonIdempotent: ex.NonIdempotent,
	}, nil
}

func indexParams(ex Example) (map[string]Param, error) {
	params := make(map[string]Param, len(ex.Params))

	for _, param := range ex.Params {
		if param.Name == "" {
			return nil, &MalformedExampleError{Template: ex.Name, Reason: "parameter without a name"}
		}

		if _, dup := params[param.Name]; dup {
			return nil, &MalformedExampleError{Template: ex.Name, Reason: "duplicate parameter " + param.Name}
		}

		params[param.Name] = param
	}

	return params, nil
}

func declarations(params []Param) []pattern.Placeholder {
	decls := make([]pattern.Placeholder, 0, len(params))

	for _, param := range params {
		decls = append(decls, pattern.Placeholder{
			Name:       param.Name,
			Constraint: constraintOf(param),
			Variadic:   param.Variadic,
		})
	}

	return decls
}

func constraintOf(param Param) pattern.Constraint {
	if param.Type == "" {
		return pattern.Constraint{}
	}

	return pattern.Constraint{Types: []string{param.Type}, Exact: param.Exact}
}

// checkPlaceholderSets rejects parameters no alternative uses, then
// alternatives that miss a parameter another alternative uses.
func checkPlaceholderSets(ex Example, befores []*pattern.Node) error {
	used := make([]map[string]bool, len(befores))
	union := make(map[string]bool)

	for idx, before := range befores {
		used[idx] = make(map[string]bool)

		for _, name := range before.PlaceholderNames() {
			used[idx][name] = true
			union[name] = true
		}
	}

	for _, param := range ex.Params {
		if !union[param.Name] {
			return &UnusedPlaceholderError{Template: ex.Name, Placeholder: param.Name}
		}
	}

	for idx := range befores {
		var missing []string

		for _, param := range ex.Params {
			if !used[idx][param.Name] {
				missing = append(missing, param.Name)
			}
		}

		if len(missing) > 0 {
			return &InconsistentAlternativesError{Template: ex.Name, Alternative: idx, Missing: missing}
		}
	}

	return nil
}

func findOpaque(root *pattern.Node) *pattern.Node {
	found := root.Find(func(n *pattern.Node) bool { return n.Kind == pattern.KindOpaque })
	if len(found) == 0 {
		return nil
	}

	return found[0]
}
