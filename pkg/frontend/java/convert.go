package java

import (
	"slices"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/safeconv"
)

type binding struct {
	typ   string
	param bool
}

// converter turns a tree-sitter Java tree into pattern nodes, tracking the
// declared types of locals, parameters and fields as it descends.
type converter struct {
	src       []byte
	hierarchy *Hierarchy

	// positions controls whether nodes carry spans; example bodies do not.
	positions bool

	// imports maps simple names to single-type imports.
	imports    map[string]string
	importList []string

	scopes  []map[string]binding
	methods map[string]string
	class   string

	// holes replaces example parameters by explicit typed placeholders.
	holes map[string]*pattern.Node
	// used collects the single-type imports the converted code refers to.
	used map[string]bool
}

func newConverter(src []byte, h *Hierarchy) *converter {
	return &converter{
		src:       src,
		hierarchy: h,
		positions: true,
		imports:   make(map[string]string),
		methods:   make(map[string]string),
		used:      make(map[string]bool),
	}
}

func (c *converter) text(n sitter.Node) string {
	if n.IsNull() {
		return ""
	}

	start, end := safeconv.MustUintToInt(n.StartByte()), safeconv.MustUintToInt(n.EndByte())
	if end > len(c.src) || start > end {
		return ""
	}

	return string(c.src[start:end])
}

// typeText is the source spelling of a type with whitespace collapsed.
func (c *converter) typeText(n sitter.Node) string {
	return strings.Join(strings.Fields(c.text(n)), " ")
}

func (c *converter) at(p *pattern.Node, n sitter.Node) *pattern.Node {
	return c.span(p, n.StartByte(), n.EndByte())
}

func (c *converter) span(p *pattern.Node, start, end uint) *pattern.Node {
	if !c.positions || p == nil {
		return p
	}

	return p.At(safeconv.MustUintToInt(start), safeconv.MustUintToInt(end))
}

func namedChildren(n sitter.Node) []sitter.Node {
	children := make([]sitter.Node, 0, n.NamedChildCount())

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if isComment(child) {
			continue
		}

		children = append(children, child)
	}

	return children
}

func childOfType(n sitter.Node, typ string) sitter.Node {
	for _, child := range namedChildren(n) {
		if child.Type() == typ {
			return child
		}
	}

	return sitter.Node{}
}

func isComment(n sitter.Node) bool {
	return n.Type() == "line_comment" || n.Type() == "block_comment"
}

func (c *converter) push() {
	c.scopes = append(c.scopes, make(map[string]binding))
}

func (c *converter) pop() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *converter) declare(name string, b binding) {
	if len(c.scopes) == 0 {
		c.push()
	}

	c.scopes[len(c.scopes)-1][name] = b
}

func (c *converter) lookup(name string) (binding, bool) {
	for idx := len(c.scopes) - 1; idx >= 0; idx-- {
		if b, ok := c.scopes[idx][name]; ok {
			return b, true
		}
	}

	return binding{}, false
}

// collectImports records the import declarations of a compilation unit.
func (c *converter) collectImports(root sitter.Node) {
	for _, decl := range namedChildren(root) {
		if decl.Type() != "import_declaration" {
			continue
		}

		var path string

		wildcard := false

		for _, part := range namedChildren(decl) {
			switch part.Type() {
			case "scoped_identifier", "identifier":
				path = c.text(part)
			case "asterisk":
				wildcard = true
			}
		}

		if path == "" {
			continue
		}

		if wildcard {
			c.importList = append(c.importList, path+".*")

			continue
		}

		c.importList = append(c.importList, path)
		c.imports[path[strings.LastIndex(path, ".")+1:]] = path
	}
}

var classKinds = []string{"class_declaration", "interface_declaration", "enum_declaration", "record_declaration"}

// declareClasses adds every class declared in the tree to the hierarchy.
func (c *converter) declareClasses(n sitter.Node) {
	if slices.Contains(classKinds, n.Type()) {
		var supers []string

		if superclass := n.ChildByFieldName("superclass"); !superclass.IsNull() {
			for _, typ := range namedChildren(superclass) {
				supers = append(supers, eraseType(c.text(typ)))
			}
		}

		for _, list := range []string{"super_interfaces", "extends_interfaces"} {
			if types := childOfType(childOfType(n, list), "type_list"); !types.IsNull() {
				for _, typ := range namedChildren(types) {
					supers = append(supers, eraseType(c.text(typ)))
				}
			}
		}

		c.hierarchy.declare(c.text(n.ChildByFieldName("name")), supers...)
	}

	for _, child := range namedChildren(n) {
		c.declareClasses(child)
	}
}

// program builds the unit root: an opaque "file" node over the type
// declarations.
func (c *converter) program(root sitter.Node) *pattern.Node {
	file := &pattern.Node{Kind: pattern.KindOpaque, Token: "file"}

	for _, decl := range namedChildren(root) {
		if slices.Contains(classKinds, decl.Type()) {
			file.Children = append(file.Children, c.classDecl(decl))
		}
	}

	return c.at(file, root)
}

func (c *converter) classDecl(n sitter.Node) *pattern.Node {
	name := c.text(n.ChildByFieldName("name"))

	outerClass, outerMethods := c.class, c.methods
	c.class = name
	c.methods = make(map[string]string, len(outerMethods))

	for method, typ := range outerMethods {
		c.methods[method] = typ
	}

	defer func() { c.class, c.methods = outerClass, outerMethods }()

	body := n.ChildByFieldName("body")

	c.push()
	defer c.pop()

	// Members are visible throughout the class body.
	for _, member := range namedChildren(body) {
		switch member.Type() {
		case "field_declaration", "constant_declaration":
			typ := eraseType(c.text(member.ChildByFieldName("type")))
			for _, decl := range namedChildren(member) {
				if decl.Type() == "variable_declarator" {
					c.declare(c.text(decl.ChildByFieldName("name")), binding{typ: typ})
				}
			}
		case "method_declaration":
			c.methods[c.text(member.ChildByFieldName("name"))] = eraseType(c.text(member.ChildByFieldName("type")))
		}
	}

	class := &pattern.Node{Kind: pattern.KindOpaque, Token: pattern.OpaqueStmtPrefix + "class " + name}

	for _, member := range namedChildren(body) {
		if converted := c.member(member); converted != nil {
			class.Children = append(class.Children, converted)
		}
	}

	return c.at(class, n)
}

func (c *converter) member(n sitter.Node) *pattern.Node {
	switch n.Type() {
	case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
		return c.method(n)
	case "field_declaration", "constant_declaration":
		field := &pattern.Node{Kind: pattern.KindOpaque, Token: pattern.OpaqueStmtPrefix + "field"}

		for _, decl := range namedChildren(n) {
			if value := decl.ChildByFieldName("value"); decl.Type() == "variable_declarator" && !value.IsNull() {
				field.Children = append(field.Children, c.expr(value))
			}
		}

		return c.at(field, n)
	case "static_initializer", "block":
		return c.stmt(childOrSelf(n, "block"))
	default:
		if slices.Contains(classKinds, n.Type()) {
			return c.classDecl(n)
		}

		return nil
	}
}

func childOrSelf(n sitter.Node, typ string) sitter.Node {
	if n.Type() == typ {
		return n
	}

	return childOfType(n, typ)
}

type param struct {
	name        string
	typ         string
	variadic    bool
	annotations []string
}

// params lists the formal parameters of a method. Varargs report their
// element type.
func (c *converter) params(method sitter.Node) []param {
	var params []param

	for _, p := range namedChildren(method.ChildByFieldName("parameters")) {
		switch p.Type() {
		case "formal_parameter":
			params = append(params, param{
				name:        c.text(p.ChildByFieldName("name")),
				typ:         eraseType(c.text(p.ChildByFieldName("type"))),
				annotations: c.annotations(p),
			})
		case "spread_parameter":
			sp := param{variadic: true, annotations: c.annotations(p)}

			for _, part := range namedChildren(p) {
				switch part.Type() {
				case "modifiers":
				case "variable_declarator":
					sp.name = c.text(part.ChildByFieldName("name"))
				case "identifier":
					sp.name = c.text(part)
				default:
					if sp.typ == "" {
						sp.typ = eraseType(c.text(part))
					}
				}
			}

			params = append(params, sp)
		}
	}

	return params
}

// annotations returns the simple names of the annotations on a declaration.
func (c *converter) annotations(n sitter.Node) []string {
	var names []string

	for _, annotation := range namedChildren(childOfType(n, "modifiers")) {
		if annotation.Type() != "marker_annotation" && annotation.Type() != "annotation" {
			continue
		}

		name := c.text(annotation.ChildByFieldName("name"))
		names = append(names, name[strings.LastIndex(name, ".")+1:])
	}

	return names
}

func (c *converter) method(n sitter.Node) *pattern.Node {
	body := n.ChildByFieldName("body")
	if body.IsNull() {
		return nil
	}

	c.push()
	defer c.pop()

	for _, p := range c.params(n) {
		typ := p.typ
		if p.variadic {
			typ += "[]"
		}

		c.declare(p.name, binding{typ: typ, param: true})
	}

	method := &pattern.Node{
		Kind:     pattern.KindOpaque,
		Token:    pattern.OpaqueStmtPrefix + "method " + c.text(n.ChildByFieldName("name")),
		Children: []*pattern.Node{c.block(body)},
	}

	return c.at(method, n)
}

func (c *converter) block(n sitter.Node) *pattern.Node {
	c.push()
	defer c.pop()

	block := pattern.Block()

	for _, stmt := range namedChildren(n) {
		if converted := c.stmt(stmt); converted != nil {
			block.Children = append(block.Children, converted)
		}
	}

	return c.at(block, n)
}

var statementKinds = map[string]bool{
	"block":                           true,
	"constructor_body":                true,
	"expression_statement":            true,
	"local_variable_declaration":      true,
	"return_statement":                true,
	"if_statement":                    true,
	"for_statement":                   true,
	"enhanced_for_statement":          true,
	"while_statement":                 true,
	"do_statement":                    true,
	"try_statement":                   true,
	"try_with_resources_statement":    true,
	"switch_statement":                true,
	"throw_statement":                 true,
	"break_statement":                 true,
	"continue_statement":              true,
	"labeled_statement":               true,
	"synchronized_statement":          true,
	"assert_statement":                true,
	"yield_statement":                 true,
	"explicit_constructor_invocation": true,
	"local_class_declaration":         true,
	"class_declaration":               true,
}

func (c *converter) stmt(n sitter.Node) *pattern.Node {
	switch n.Type() {
	case "block", "constructor_body":
		return c.block(n)
	case "expression_statement":
		children := namedChildren(n)
		if len(children) == 0 {
			return nil
		}

		return c.expr(children[0])
	case "local_variable_declaration":
		return c.local(n)
	case "return_statement":
		ret := pattern.Return(nil)
		for _, value := range namedChildren(n) {
			ret.Children = append(ret.Children, c.expr(value))
		}

		return c.at(ret, n)
	case "if_statement":
		var otherwise *pattern.Node
		if alt := n.ChildByFieldName("alternative"); !alt.IsNull() {
			otherwise = c.stmt(alt)
		}

		cond := c.expr(n.ChildByFieldName("condition"))

		return c.at(pattern.If(cond, c.stmt(n.ChildByFieldName("consequence")), otherwise), n)
	case "enhanced_for_statement":
		c.push()
		defer c.pop()

		value := c.expr(n.ChildByFieldName("value"))
		c.declare(c.text(n.ChildByFieldName("name")), binding{typ: eraseType(c.text(n.ChildByFieldName("type")))})

		loop := &pattern.Node{Kind: pattern.KindOpaque, Token: pattern.OpaqueStmtPrefix + "foreach"}
		loop.Children = []*pattern.Node{value, c.stmt(n.ChildByFieldName("body"))}

		return c.at(loop, n)
	case "class_declaration", "local_class_declaration":
		return c.classDecl(n)
	case "line_comment", "block_comment":
		return nil
	default:
		c.push()
		defer c.pop()

		return c.at(c.container(pattern.OpaqueStmtPrefix+n.Type(), n), n)
	}
}

// container is an opaque node whose converted parts stay searchable.
func (c *converter) container(token string, n sitter.Node) *pattern.Node {
	node := &pattern.Node{Kind: pattern.KindOpaque, Token: token}

	for _, child := range namedChildren(n) {
		if converted := c.part(child); converted != nil {
			node.Children = append(node.Children, converted)
		}
	}

	return node
}

func (c *converter) part(n sitter.Node) *pattern.Node {
	switch {
	case statementKinds[n.Type()]:
		return c.stmt(n)
	case n.Type() == "catch_formal_parameter", n.Type() == "formal_parameter":
		c.declare(c.text(n.ChildByFieldName("name")), binding{typ: eraseType(c.text(n.ChildByFieldName("type")))})

		return nil
	case n.Type() == "resource":
		if name := n.ChildByFieldName("name"); !name.IsNull() {
			c.declare(c.text(name), binding{typ: eraseType(c.text(n.ChildByFieldName("type")))})

			return c.expr(n.ChildByFieldName("value"))
		}

		return c.container("resource", n)
	default:
		return c.expr(n)
	}
}

func (c *converter) local(n sitter.Node) *pattern.Node {
	typeNode := n.ChildByFieldName("type")
	declared := c.typeText(typeNode)
	erased := eraseType(c.text(typeNode))

	var declarators []sitter.Node

	for _, child := range namedChildren(n) {
		if child.Type() == "variable_declarator" {
			declarators = append(declarators, child)
		}
	}

	if len(declarators) == 1 {
		if value := declarators[0].ChildByFieldName("value"); !value.IsNull() {
			name := c.text(declarators[0].ChildByFieldName("name"))
			converted := c.expr(value)

			let := pattern.Let(name, converted)
			let.Type = declared

			typ := erased
			if declared == "var" {
				typ = converted.Type
			}

			c.declare(name, binding{typ: typ})

			return c.at(let, n)
		}
	}

	local := &pattern.Node{Kind: pattern.KindOpaque, Token: pattern.OpaqueStmtPrefix + "local"}

	for _, decl := range declarators {
		if value := decl.ChildByFieldName("value"); !value.IsNull() {
			local.Children = append(local.Children, c.expr(value))
		}

		c.declare(c.text(decl.ChildByFieldName("name")), binding{typ: erased})
	}

	return c.at(local, n)
}
