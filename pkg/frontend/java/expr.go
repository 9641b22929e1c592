package java

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// Result types of the String and Object methods templates most often
// rewrite.
var (
	stringMethods = map[string]string{
		"length":           "int",
		"isEmpty":          "boolean",
		"isBlank":          "boolean",
		"startsWith":       "boolean",
		"endsWith":         "boolean",
		"contains":         "boolean",
		"equalsIgnoreCase": "boolean",
		"matches":          "boolean",
		"charAt":           "char",
		"indexOf":          "int",
		"lastIndexOf":      "int",
		"compareTo":        "int",
		"substring":        "String",
		"trim":             "String",
		"strip":            "String",
		"toLowerCase":      "String",
		"toUpperCase":      "String",
		"replace":          "String",
		"replaceAll":       "String",
		"concat":           "String",
		"repeat":           "String",
		"intern":           "String",
		"formatted":        "String",
		"split":            "String[]",
		"toCharArray":      "char[]",
		"getBytes":         "byte[]",
	}

	objectMethods = map[string]string{
		"equals":   "boolean",
		"hashCode": "int",
		"toString": "String",
		"getClass": "Class",
	}
)

var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true, "&&": true, "||": true,
}

func literalType(n sitter.Node, text string) string {
	switch n.Type() {
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		if strings.HasSuffix(text, "l") || strings.HasSuffix(text, "L") {
			return "long"
		}

		return "int"
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		if strings.HasSuffix(text, "f") || strings.HasSuffix(text, "F") {
			return "float"
		}

		return "double"
	case "string_literal", "text_block":
		return "String"
	case "character_literal":
		return "char"
	case "true", "false":
		return "boolean"
	default:
		return ""
	}
}

func (c *converter) expr(n sitter.Node) *pattern.Node {
	if n.IsNull() {
		return &pattern.Node{Kind: pattern.KindOpaque, Token: "missing"}
	}

	if n.Type() == "parenthesized_expression" {
		if inner := namedChildren(n); len(inner) == 1 {
			return c.expr(inner[0])
		}
	}

	return c.at(c.exprNode(n), n)
}

//nolint:cyclop,funlen,gocognit // one case per expression form
func (c *converter) exprNode(n sitter.Node) *pattern.Node {
	text := c.text(n)

	switch n.Type() {
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal",
		"decimal_floating_point_literal", "hex_floating_point_literal",
		"string_literal", "text_block", "character_literal", "true", "false":
		return pattern.Lit(text, literalType(n, text))
	case "null_literal":
		return pattern.Lit("null", "")
	case "this":
		return pattern.Ident("this").Typed(c.class)
	case "super":
		return pattern.Ident("super")
	case "identifier":
		return c.identifier(text)
	case "scoped_identifier":
		return pattern.Symbol(text, text)
	case "type_identifier", "scoped_type_identifier", "generic_type", "integral_type",
		"floating_point_type", "boolean_type", "array_type", "void_type":
		return pattern.Ident(c.typeText(n))
	case "field_access":
		return c.fieldAccess(n)
	case "method_invocation":
		return c.invocation(n)
	case "object_creation_expression":
		return c.creation(n)
	case "array_creation_expression":
		typ := eraseType(c.text(n.ChildByFieldName("type")))
		if value := n.ChildByFieldName("value"); !value.IsNull() {
			return pattern.Array(typ, c.elements(value)...).Typed(typ + "[]")
		}

		return c.container("new-array", n).Typed(typ + "[]")
	case "array_initializer":
		return pattern.Array("", c.elements(n)...)
	case "binary_expression":
		return c.binary(n)
	case "unary_expression":
		op := c.text(n.ChildByFieldName("operator"))
		operand := c.expr(n.ChildByFieldName("operand"))

		typ := promote(operand.Type, "int")
		if op == "!" {
			typ = "boolean"
		}

		return pattern.Un(op, operand).Typed(typ)
	case "update_expression":
		return c.update(n, text)
	case "ternary_expression":
		then := c.expr(n.ChildByFieldName("consequence"))
		otherwise := c.expr(n.ChildByFieldName("alternative"))

		cond := pattern.Cond(c.expr(n.ChildByFieldName("condition")), then, otherwise)
		if then.Type == otherwise.Type {
			cond.Type = then.Type
		}

		return cond
	case "cast_expression":
		typeNode := n.ChildByFieldName("type")

		cast := pattern.Cast(c.typeText(typeNode), c.expr(n.ChildByFieldName("value")))
		cast.Type = eraseType(c.text(typeNode))

		return cast
	case "lambda_expression":
		return c.lambda(n)
	case "method_reference":
		parts := namedChildren(n)
		if len(parts) == 0 {
			return c.container("method_reference", n)
		}

		name := "new"
		if len(parts) > 1 {
			name = c.text(parts[len(parts)-1])
		}

		return pattern.MethodRef(c.expr(parts[0]), name)
	case "array_access":
		array := c.expr(n.ChildByFieldName("array"))

		return pattern.Index(array, c.expr(n.ChildByFieldName("index"))).Typed(elementType(array.Type))
	case "assignment_expression":
		left := c.expr(n.ChildByFieldName("left"))

		return pattern.Assign(c.text(n.ChildByFieldName("operator")), left, c.expr(n.ChildByFieldName("right"))).Typed(left.Type)
	case "instanceof_expression":
		return (&pattern.Node{
			Kind:     pattern.KindOpaque,
			Token:    "instanceof",
			Children: []*pattern.Node{c.expr(n.ChildByFieldName("left"))},
		}).Typed("boolean")
	case "class_literal":
		parts := namedChildren(n)
		if len(parts) == 1 {
			return pattern.Field(c.expr(parts[0]), "class").Typed("Class")
		}

		return c.container("class_literal", n)
	default:
		return c.container(n.Type(), n)
	}
}

// identifier resolves a name: locals, parameters and fields carry their
// declared type; single-type imports give class names a qualified identity.
func (c *converter) identifier(name string) *pattern.Node {
	if b, ok := c.lookup(name); ok {
		if hole := c.holes[name]; b.param && hole != nil {
			return hole.Clone()
		}

		return pattern.Ident(name).Typed(b.typ)
	}

	if qualified, ok := c.imports[name]; ok {
		c.used[qualified] = true

		return pattern.Symbol(name, qualified)
	}

	return pattern.Ident(name)
}

func (c *converter) fieldAccess(n sitter.Node) *pattern.Node {
	object := c.expr(n.ChildByFieldName("object"))
	name := c.text(n.ChildByFieldName("field"))

	field := pattern.Field(object, name)
	if name == "length" && elementType(object.Type) != "" {
		field.Type = "int"
	}

	return field
}

func (c *converter) arguments(n sitter.Node) []*pattern.Node {
	var args []*pattern.Node

	for _, arg := range namedChildren(n) {
		args = append(args, c.expr(arg))
	}

	return args
}

func (c *converter) elements(n sitter.Node) []*pattern.Node {
	return c.arguments(n)
}

func (c *converter) invocation(n sitter.Node) *pattern.Node {
	nameNode := n.ChildByFieldName("name")
	name := c.text(nameNode)
	args := c.arguments(n.ChildByFieldName("arguments"))

	objectNode := n.ChildByFieldName("object")
	if objectNode.IsNull() {
		callee := c.span(c.identifier(name), nameNode.StartByte(), nameNode.EndByte())

		return pattern.Call(callee, args...).Typed(c.methods[name])
	}

	object := c.expr(objectNode)
	callee := c.span(pattern.Field(object, name), objectNode.StartByte(), nameNode.EndByte())
	call := pattern.Call(callee, args...)

	switch {
	case object.Kind == pattern.KindIdent && object.Token == "this":
		call.Type = c.methods[name]
	case isString(object.Type) && stringMethods[name] != "":
		call.Type = stringMethods[name]
	default:
		call.Type = objectMethods[name]
	}

	return call
}

// creation converts "new T(args)". Generic arguments are normalized to the
// diamond so that "new ArrayList<String>()" and "new ArrayList<>()" agree.
func (c *converter) creation(n sitter.Node) *pattern.Node {
	typeNode := n.ChildByFieldName("type")
	erased := eraseType(c.text(typeNode))
	args := c.arguments(n.ChildByFieldName("arguments"))

	if body := childOfType(n, "class_body"); !body.IsNull() {
		anonymous := &pattern.Node{Kind: pattern.KindOpaque, Token: "new " + erased, Children: args}

		return anonymous.Typed(erased)
	}

	token := erased
	if typeNode.Type() == "generic_type" {
		token += "<>"
	}

	created := pattern.New(token, args...)
	created.Type = erased

	return created
}

func (c *converter) binary(n sitter.Node) *pattern.Node {
	op := c.text(n.ChildByFieldName("operator"))
	left := c.expr(n.ChildByFieldName("left"))
	right := c.expr(n.ChildByFieldName("right"))

	var typ string

	switch {
	case comparisonOps[op]:
		typ = "boolean"
	case op == "+" && (isString(left.Type) || isString(right.Type)):
		typ = "String"
	case (op == "&" || op == "|" || op == "^") && left.Type == "boolean" && right.Type == "boolean":
		typ = "boolean"
	case op == "<<" || op == ">>" || op == ">>>":
		typ = promote(left.Type, "int")
	default:
		typ = promote(left.Type, right.Type)
	}

	return pattern.Bin(op, left, right).Typed(typ)
}

func (c *converter) update(n sitter.Node, text string) *pattern.Node {
	parts := namedChildren(n)
	if len(parts) != 1 {
		return c.container("update", n)
	}

	operand := c.expr(parts[0])
	increment := strings.Contains(text, "++")

	if parts[0].StartByte() == n.StartByte() {
		op := pattern.PostDec
		if increment {
			op = pattern.PostInc
		}

		return pattern.Un(op, operand).Typed(operand.Type)
	}

	op := "--"
	if increment {
		op = "++"
	}

	return pattern.Un(op, operand).Typed(operand.Type)
}

func (c *converter) lambda(n sitter.Node) *pattern.Node {
	c.push()
	defer c.pop()

	var names []string

	params := n.ChildByFieldName("parameters")

	switch params.Type() {
	case "identifier":
		names = append(names, c.text(params))
	default:
		for _, p := range namedChildren(params) {
			name := p
			if p.Type() == "formal_parameter" {
				name = p.ChildByFieldName("name")
			}

			names = append(names, c.text(name))
		}
	}

	for _, name := range names {
		c.declare(name, binding{})
	}

	body := n.ChildByFieldName("body")

	var converted *pattern.Node
	if body.Type() == "block" {
		converted = c.block(body)
	} else {
		converted = c.expr(body)
	}

	return pattern.Lambda(names, converted)
}
