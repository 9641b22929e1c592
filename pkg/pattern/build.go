package pattern

// Constructors for hand-built patterns. Front ends and tests use them; the
// extractor produces the same shapes.

// Lit returns a literal node.
func Lit(token, typ string) *Node {
	return &Node{Kind: KindLiteral, Token: token, Type: typ}
}

// Ident returns an identifier reference.
func Ident(name string) *Node {
	return &Node{Kind: KindIdent, Token: name}
}

// Symbol returns an identifier reference resolved to a qualified symbol.
func Symbol(name, ref string) *Node {
	return &Node{Kind: KindIdent, Token: name, Ref: ref}
}

// Hole returns a single placeholder accepting the given types (top when none).
func Hole(name string, types ...string) *Node {
	return &Node{Kind: KindPlaceholder, Token: name, Constraint: Constraint{Types: types}}
}

// ExactHole returns a placeholder pinned to exactly the given types.
func ExactHole(name string, types ...string) *Node {
	return &Node{Kind: KindPlaceholder, Token: name, Constraint: Constraint{Types: types, Exact: true}}
}

// Holes returns a multiplicity placeholder whose elements accept the given types.
func Holes(name string, types ...string) *Node {
	return &Node{Kind: KindPlaceholder, Token: name, Variadic: true, Constraint: Constraint{Types: types}}
}

// Call returns a call of callee with args.
func Call(callee *Node, args ...*Node) *Node {
	return &Node{Kind: KindCall, Children: append([]*Node{callee}, args...)}
}

// Method returns a call of the member name on recv.
func Method(recv *Node, name string, args ...*Node) *Node {
	return Call(Field(recv, name), args...)
}

// Field returns a member access.
func Field(recv *Node, name string) *Node {
	return &Node{Kind: KindField, Token: name, Children: []*Node{recv}}
}

// New returns a constructor invocation of typ.
func New(typ string, args ...*Node) *Node {
	return &Node{Kind: KindNew, Token: typ, Type: typ, Children: args}
}

// Lambda returns a lambda with the given parameter names and body.
func Lambda(params []string, body *Node) *Node {
	children := make([]*Node, 0, len(params)+1)

	for _, param := range params {
		children = append(children, Ident(param))
	}

	return &Node{Kind: KindLambda, Children: append(children, body)}
}

// MethodRef returns a method reference qualifier::name.
func MethodRef(qualifier *Node, name string) *Node {
	return &Node{Kind: KindMethodRef, Token: name, Children: []*Node{qualifier}}
}

// Block returns a statement block.
func Block(stmts ...*Node) *Node {
	return &Node{Kind: KindBlock, Children: stmts}
}

// Cond returns a conditional expression.
func Cond(cond, then, otherwise *Node) *Node {
	return &Node{Kind: KindConditional, Token: CondExpr, Children: []*Node{cond, then, otherwise}}
}

// If returns an if statement. otherwise may be nil.
func If(cond, then, otherwise *Node) *Node {
	children := []*Node{cond, then}
	if otherwise != nil {
		children = append(children, otherwise)
	}

	return &Node{Kind: KindConditional, Token: CondStmt, Children: children}
}

// Bin returns a binary operation.
func Bin(op string, left, right *Node) *Node {
	return &Node{Kind: KindBinary, Token: op, Children: []*Node{left, right}}
}

// Un returns a unary operation.
func Un(op string, operand *Node) *Node {
	return &Node{Kind: KindUnary, Token: op, Children: []*Node{operand}}
}

// Array returns an array or collection literal.
func Array(elemType string, elems ...*Node) *Node {
	return &Node{Kind: KindArray, Token: elemType, Children: elems}
}

// Cast returns a conversion of operand to typ.
func Cast(typ string, operand *Node) *Node {
	return &Node{Kind: KindCast, Token: typ, Type: typ, Children: []*Node{operand}}
}

// Return returns a return statement. value may be nil.
func Return(value *Node) *Node {
	if value == nil {
		return &Node{Kind: KindReturn}
	}

	return &Node{Kind: KindReturn, Children: []*Node{value}}
}

// Let returns a local binding of name to value.
func Let(name string, value *Node) *Node {
	return &Node{Kind: KindLet, Token: name, Children: []*Node{value}}
}

// Assign returns an assignment with operator op.
func Assign(op string, target, value *Node) *Node {
	return &Node{Kind: KindAssign, Token: op, Children: []*Node{target, value}}
}

// Index returns an index expression.
func Index(container, index *Node) *Node {
	return &Node{Kind: KindIndex, Children: []*Node{container, index}}
}

// KeyValue returns a key/value element.
func KeyValue(key, value *Node) *Node {
	return &Node{Kind: KindKeyValue, Children: []*Node{key, value}}
}
