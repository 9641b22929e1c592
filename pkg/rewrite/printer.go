package rewrite

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// Dialect selects the surface syntax a Printer emits.
type Dialect uint8

// Supported dialects.
const (
	DialectGo Dialect = iota + 1
	DialectJava
)

// DialectFor returns the dialect of a unit language.
func DialectFor(language string) (Dialect, error) {
	switch strings.ToLower(language) {
	case "go", "golang":
		return DialectGo, nil
	case "java":
		return DialectJava, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownDialect, language)
	}
}

func (d Dialect) String() string {
	switch d {
	case DialectGo:
		return "go"
	case DialectJava:
		return "java"
	default:
		return "unknown"
	}
}

// Precedence levels shared by both dialects. Binary operators sit between
// precLambda and precUnary.
const (
	precAssign  = 0
	precLambda  = 1
	precCond    = 2
	precUnary   = 20
	precPostfix = 21
	precPrimary = 22
)

var goBinary = map[string]int{
	"||": 3, "&&": 4,
	"==": 5, "!=": 5, "<": 5, "<=": 5, ">": 5, ">=": 5,
	"+": 6, "-": 6, "|": 6, "^": 6,
	"*": 7, "/": 7, "%": 7, "<<": 7, ">>": 7, "&": 7, "&^": 7,
}

var javaBinary = map[string]int{
	"||": 3, "&&": 4, "|": 5, "^": 6, "&": 7,
	"==": 8, "!=": 8,
	"<": 9, ">": 9, "<=": 9, ">=": 9, "instanceof": 9,
	"<<": 10, ">>": 10, ">>>": 10,
	"+": 11, "-": 11,
	"*": 12, "/": 12, "%": 12,
}

// Printer renders instantiated patterns as source text. Nodes carrying a span
// are copied verbatim from source; parentheses are added only where operator
// precedence requires them.
type Printer struct {
	dialect Dialect
	source  []byte
	indent  string
}

// NewPrinter creates a printer for d. source is the text spans refer to and
// may be nil when no node has a span.
func NewPrinter(d Dialect, source []byte) *Printer {
	indent := "\t"
	if d == DialectJava {
		indent = "    "
	}

	return &Printer{dialect: d, source: source, indent: indent}
}

// Print renders n. A block renders as its statements separated by newlines,
// without braces.
func (p *Printer) Print(n *pattern.Node) (string, error) {
	return p.PrintAt(n, precAssign)
}

// PrintAt renders n for an operand slot that binds at least as tightly as
// minPrec; an expression root below it is parenthesized. Statements ignore
// minPrec.
func (p *Printer) PrintAt(n *pattern.Node, minPrec int) (string, error) {
	var buf strings.Builder

	var err error

	switch {
	case n == nil:
		return "", fmt.Errorf("%w: nil node", ErrUnprintable)
	case n.Kind == pattern.KindBlock && !p.hasText(n):
		err = p.statements(&buf, n.Children, 0)
	case n.IsStatement():
		err = p.stmt(&buf, n, 0)
	default:
		err = p.expr(&buf, n, minPrec)
	}

	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

// slotPrec is the minimum precedence of child index of a parent with the
// given kind and token, mirroring how the printer itself parenthesizes
// operands.
func (p *Printer) slotPrec(kind pattern.Kind, token string, index int) int {
	switch kind {
	case pattern.KindBinary:
		level := p.prec(&pattern.Node{Kind: kind, Token: token})
		if index == 0 {
			return level
		}

		return level + 1
	case pattern.KindUnary:
		if token == pattern.PostInc || token == pattern.PostDec {
			return precPostfix
		}

		return precUnary
	case pattern.KindCall, pattern.KindIndex:
		if index == 0 {
			return precPrimary
		}
	case pattern.KindField, pattern.KindMethodRef:
		return precPrimary
	case pattern.KindCast:
		if p.dialect == DialectJava {
			return precUnary
		}
	case pattern.KindConditional:
		if token != pattern.CondExpr {
			return precAssign
		}

		if index < 2 {
			return precCond + 1
		}

		return precCond
	case pattern.KindLambda:
		return precLambda
	case pattern.KindAssign, pattern.KindKeyValue:
		if index == 0 {
			return precAssign + 1
		}
	default:
	}

	return precAssign
}

func (p *Printer) hasText(n *pattern.Node) bool {
	return n.Pos != nil && n.Pos.Start >= 0 && n.Pos.Start <= n.Pos.End && n.Pos.End <= len(p.source)
}

func (p *Printer) text(n *pattern.Node) string {
	return string(p.source[n.Pos.Start:n.Pos.End])
}

func (p *Printer) unprintable(n *pattern.Node) error {
	return fmt.Errorf("%w: %s in %s", ErrUnprintable, n.Kind, p.dialect)
}

func (p *Printer) prec(n *pattern.Node) int {
	switch n.Kind {
	case pattern.KindBinary:
		table := goBinary
		if p.dialect == DialectJava {
			table = javaBinary
		}

		if level, ok := table[n.Token]; ok {
			return level
		}

		return precCond + 1
	case pattern.KindUnary:
		if n.Token == pattern.PostInc || n.Token == pattern.PostDec {
			return precPostfix
		}

		return precUnary
	case pattern.KindCast:
		if p.dialect == DialectJava {
			return precUnary
		}

		return precPrimary
	case pattern.KindConditional:
		return precCond
	case pattern.KindLambda:
		return precLambda
	case pattern.KindAssign, pattern.KindKeyValue:
		return precAssign
	default:
		return precPrimary
	}
}

// expr writes n, parenthesized when its precedence is below minPrec.
func (p *Printer) expr(buf *strings.Builder, n *pattern.Node, minPrec int) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrUnprintable)
	}

	wrap := p.prec(n) < minPrec
	if wrap {
		buf.WriteByte('(')
	}

	var err error
	if p.hasText(n) {
		buf.WriteString(p.text(n))
	} else {
		err = p.exprBody(buf, n)
	}

	if wrap {
		buf.WriteByte(')')
	}

	return err
}

func (p *Printer) exprBody(buf *strings.Builder, n *pattern.Node) error {
	switch n.Kind {
	case pattern.KindLiteral, pattern.KindIdent:
		buf.WriteString(n.Token)

		return nil
	case pattern.KindPlaceholder:
		return fmt.Errorf("%w: %s", ErrUnbound, n.Token)
	case pattern.KindCall:
		if len(n.Children) == 0 {
			return p.unprintable(n)
		}

		err := p.expr(buf, n.Children[0], precPrimary)
		if err != nil {
			return err
		}

		return p.list(buf, "(", n.Children[1:], ")")
	case pattern.KindField:
		err := p.expr(buf, n.Children[0], precPrimary)
		if err != nil {
			return err
		}

		buf.WriteString("." + n.Token)

		return nil
	case pattern.KindIndex:
		err := p.expr(buf, n.Children[0], precPrimary)
		if err != nil {
			return err
		}

		return p.list(buf, "[", n.Children[1:], "]")
	case pattern.KindNew:
		if p.dialect == DialectJava {
			buf.WriteString("new " + n.Token)

			return p.list(buf, "(", n.Children, ")")
		}

		buf.WriteString(n.Token)

		return p.list(buf, "{", n.Children, "}")
	case pattern.KindArray:
		return p.array(buf, n)
	case pattern.KindBinary:
		return p.binary(buf, n)
	case pattern.KindUnary:
		return p.unary(buf, n)
	case pattern.KindCast:
		return p.cast(buf, n)
	case pattern.KindConditional:
		return p.ternary(buf, n)
	case pattern.KindLambda:
		return p.lambda(buf, n)
	case pattern.KindMethodRef:
		if p.dialect != DialectJava {
			return p.unprintable(n)
		}

		err := p.expr(buf, n.Children[0], precPrimary)
		if err != nil {
			return err
		}

		buf.WriteString("::" + n.Token)

		return nil
	case pattern.KindAssign:
		return p.pair(buf, n, " "+n.Token+" ")
	case pattern.KindKeyValue:
		if p.dialect != DialectGo {
			return p.unprintable(n)
		}

		return p.pair(buf, n, ": ")
	default:
		return p.unprintable(n)
	}
}

func (p *Printer) list(buf *strings.Builder, open string, items []*pattern.Node, closing string) error {
	buf.WriteString(open)

	for idx, item := range items {
		if idx > 0 {
			buf.WriteString(", ")
		}

		err := p.expr(buf, item, precAssign)
		if err != nil {
			return err
		}
	}

	buf.WriteString(closing)

	return nil
}

func (p *Printer) array(buf *strings.Builder, n *pattern.Node) error {
	switch {
	case p.dialect == DialectGo:
		buf.WriteString("[]" + n.Token)
	case n.Token != "":
		buf.WriteString("new " + n.Token + "[]")
	}

	return p.list(buf, "{", n.Children, "}")
}

func (p *Printer) binary(buf *strings.Builder, n *pattern.Node) error {
	level := p.prec(n)

	err := p.expr(buf, n.Children[0], level)
	if err != nil {
		return err
	}

	buf.WriteString(" " + n.Token + " ")

	// Left associative: an equal-precedence right operand needs parentheses.
	return p.expr(buf, n.Children[1], level+1)
}

func (p *Printer) unary(buf *strings.Builder, n *pattern.Node) error {
	switch n.Token {
	case pattern.PostInc, pattern.PostDec:
		err := p.expr(buf, n.Children[0], precPostfix)
		if err != nil {
			return err
		}

		buf.WriteString(strings.TrimPrefix(n.Token, "post"))

		return nil
	default:
	}

	var operand strings.Builder

	err := p.expr(&operand, n.Children[0], precUnary)
	if err != nil {
		return err
	}

	buf.WriteString(n.Token)

	// Keep "- -x" from printing as "--x".
	for _, sign := range []string{"-", "+"} {
		if strings.HasSuffix(n.Token, sign) && strings.HasPrefix(operand.String(), sign) {
			buf.WriteByte(' ')
		}
	}

	buf.WriteString(operand.String())

	return nil
}

func (p *Printer) cast(buf *strings.Builder, n *pattern.Node) error {
	if p.dialect == DialectJava {
		buf.WriteString("(" + n.Token + ") ")

		return p.expr(buf, n.Children[0], precUnary)
	}

	if strings.HasPrefix(n.Token, "*") || strings.HasPrefix(n.Token, "<-") || strings.HasPrefix(n.Token, "func") {
		buf.WriteString("(" + n.Token + ")")
	} else {
		buf.WriteString(n.Token)
	}

	return p.list(buf, "(", n.Children, ")")
}

func (p *Printer) ternary(buf *strings.Builder, n *pattern.Node) error {
	if p.dialect != DialectJava || n.Token != pattern.CondExpr || len(n.Children) != 3 {
		return p.unprintable(n)
	}

	err := p.expr(buf, n.Children[0], precCond+1)
	if err != nil {
		return err
	}

	buf.WriteString(" ? ")

	err = p.expr(buf, n.Children[1], precCond+1)
	if err != nil {
		return err
	}

	buf.WriteString(" : ")

	return p.expr(buf, n.Children[2], precCond)
}

func (p *Printer) lambda(buf *strings.Builder, n *pattern.Node) error {
	if p.dialect != DialectJava {
		return p.unprintable(n)
	}

	params := n.Children[:len(n.Children)-1]
	body := n.Children[len(n.Children)-1]

	names := make([]string, 0, len(params))
	for _, param := range params {
		names = append(names, param.Token)
	}

	if len(names) == 1 {
		buf.WriteString(names[0])
	} else {
		buf.WriteString("(" + strings.Join(names, ", ") + ")")
	}

	buf.WriteString(" -> ")

	if body.Kind == pattern.KindBlock {
		return p.block(buf, body, 0)
	}

	return p.expr(buf, body, precLambda)
}

func (p *Printer) pair(buf *strings.Builder, n *pattern.Node, sep string) error {
	err := p.expr(buf, n.Children[0], precAssign+1)
	if err != nil {
		return err
	}

	buf.WriteString(sep)

	return p.expr(buf, n.Children[1], precAssign)
}

func (p *Printer) terminator() string {
	if p.dialect == DialectJava {
		return ";"
	}

	return ""
}

func (p *Printer) statements(buf *strings.Builder, stmts []*pattern.Node, depth int) error {
	for idx, stmt := range stmts {
		if idx > 0 {
			buf.WriteString("\n" + strings.Repeat(p.indent, depth))
		}

		err := p.stmt(buf, stmt, depth)
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Printer) block(buf *strings.Builder, n *pattern.Node, depth int) error {
	if p.hasText(n) {
		buf.WriteString(p.text(n))

		return nil
	}

	stmts := n.Children
	if n.Kind != pattern.KindBlock {
		stmts = []*pattern.Node{n}
	}

	if len(stmts) == 0 {
		buf.WriteString("{}")

		return nil
	}

	buf.WriteString("{\n" + strings.Repeat(p.indent, depth+1))

	err := p.statements(buf, stmts, depth+1)
	if err != nil {
		return err
	}

	buf.WriteString("\n" + strings.Repeat(p.indent, depth) + "}")

	return nil
}

func (p *Printer) stmt(buf *strings.Builder, n *pattern.Node, depth int) error {
	if n == nil {
		return fmt.Errorf("%w: nil statement", ErrUnprintable)
	}

	if p.hasText(n) {
		buf.WriteString(p.text(n))

		return nil
	}

	switch n.Kind {
	case pattern.KindBlock:
		return p.block(buf, n, depth)
	case pattern.KindReturn:
		buf.WriteString("return")

		for idx, value := range n.Children {
			if idx > 0 {
				buf.WriteByte(',')
			}

			buf.WriteByte(' ')

			err := p.expr(buf, value, precAssign)
			if err != nil {
				return err
			}
		}

		buf.WriteString(p.terminator())

		return nil
	case pattern.KindLet:
		return p.let(buf, n)
	case pattern.KindConditional:
		if n.Token == pattern.CondStmt {
			return p.ifStmt(buf, n, depth)
		}
	case pattern.KindOpaque:
		return p.unprintable(n)
	default:
	}

	err := p.expr(buf, n, precAssign)
	if err != nil {
		return err
	}

	buf.WriteString(p.terminator())

	return nil
}

func (p *Printer) let(buf *strings.Builder, n *pattern.Node) error {
	if p.dialect == DialectJava {
		typ := n.Type
		if typ == "" {
			typ = "var"
		}

		buf.WriteString(typ + " " + n.Token + " = ")
	} else {
		buf.WriteString(n.Token + " := ")
	}

	err := p.expr(buf, n.Children[0], precAssign)
	if err != nil {
		return err
	}

	buf.WriteString(p.terminator())

	return nil
}

func (p *Printer) ifStmt(buf *strings.Builder, n *pattern.Node, depth int) error {
	buf.WriteString("if ")

	if p.dialect == DialectJava {
		buf.WriteByte('(')
	}

	err := p.expr(buf, n.Children[0], precAssign)
	if err != nil {
		return err
	}

	if p.dialect == DialectJava {
		buf.WriteByte(')')
	}

	buf.WriteByte(' ')

	err = p.block(buf, n.Children[1], depth)
	if err != nil {
		return err
	}

	if len(n.Children) < 3 {
		return nil
	}

	buf.WriteString(" else ")

	otherwise := n.Children[2]
	if otherwise.Kind == pattern.KindConditional && otherwise.Token == pattern.CondStmt {
		return p.stmt(buf, otherwise, depth)
	}

	return p.block(buf, otherwise, depth)
}
