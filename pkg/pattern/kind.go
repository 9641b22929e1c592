package pattern

import (
	"strconv"
	"strings"
)

// Kind tags the variant of a [Node]. Every consumer switches over the full
// set, so adding a kind means updating the matcher, the rewriter's printer and
// the artifact codec together.
type Kind uint8

// Node kinds.
const (
	KindInvalid Kind = iota
	KindLiteral
	KindIdent
	KindPlaceholder
	KindCall
	KindNew
	KindField
	KindLambda
	KindMethodRef
	KindBlock
	KindConditional
	KindBinary
	KindUnary
	KindArray
	KindCast
	KindReturn
	KindLet
	KindAssign
	KindIndex
	KindKeyValue
	KindOpaque

	kindCount
)

// Token conventions shared by front ends, the matcher and the printer.
const (
	// CondStmt is the token of an if statement.
	CondStmt = "if"
	// CondExpr is the token of a ternary conditional expression.
	CondExpr = "?"
	// PostInc is the token of a postfix increment.
	PostInc = "post++"
	// PostDec is the token of a postfix decrement.
	PostDec = "post--"
	// OpaqueStmtPrefix marks opaque nodes that stand for statements.
	OpaqueStmtPrefix = "stmt:"
)

var kindNames = [kindCount]string{
	KindInvalid:     "Invalid",
	KindLiteral:     "Literal",
	KindIdent:       "Ident",
	KindPlaceholder: "Placeholder",
	KindCall:        "Call",
	KindNew:         "New",
	KindField:       "Field",
	KindLambda:      "Lambda",
	KindMethodRef:   "MethodRef",
	KindBlock:       "Block",
	KindConditional: "Conditional",
	KindBinary:      "Binary",
	KindUnary:       "Unary",
	KindArray:       "Array",
	KindCast:        "Cast",
	KindReturn:      "Return",
	KindLet:         "Let",
	KindAssign:      "Assign",
	KindIndex:       "Index",
	KindKeyValue:    "KeyValue",
	KindOpaque:      "Opaque",
}

// String returns the kind name.
func (k Kind) String() string {
	if !k.Valid() {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}

	return kindNames[k]
}

// Valid reports whether k is a known kind other than [KindInvalid].
func (k Kind) Valid() bool {
	return k > KindInvalid && k < kindCount
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k := KindLiteral; k < kindCount; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}

	return KindInvalid, false
}

// IsStatement reports whether a node with the given kind and token is a
// statement rather than an expression.
func IsStatement(kind Kind, token string) bool {
	switch kind {
	case KindBlock, KindReturn, KindLet:
		return true
	case KindConditional:
		return token == CondStmt
	case KindOpaque:
		return strings.HasPrefix(token, OpaqueStmtPrefix)
	case KindInvalid, KindLiteral, KindIdent, KindPlaceholder, KindCall, KindNew, KindField,
		KindLambda, KindMethodRef, KindBinary, KindUnary, KindArray, KindCast, KindAssign,
		KindIndex, KindKeyValue, kindCount:
		return false
	}

	return false
}

// ListKind reports whether the children of kind form a sibling list in which
// a multiplicity placeholder may absorb a run. For calls the callee at index 0
// is excluded by the caller.
func ListKind(kind Kind) bool {
	switch kind {
	case KindCall, KindNew, KindArray, KindBlock:
		return true
	case KindInvalid, KindLiteral, KindIdent, KindPlaceholder, KindField, KindLambda,
		KindMethodRef, KindConditional, KindBinary, KindUnary, KindCast, KindReturn,
		KindLet, KindAssign, KindIndex, KindKeyValue, KindOpaque, kindCount:
		return false
	}

	return false
}
