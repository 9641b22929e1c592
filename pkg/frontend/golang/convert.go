// Package golang is the Go host front end: it converts type-checked Go syntax
// into the engine's arena trees, reads template examples from annotated Go
// functions and answers subtype queries with go/types.
package golang

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// Language is the unit language name of Go units.
const Language = "go"

// converter turns one file's syntax into pattern nodes. Spans are byte
// offsets into the file source.
type converter struct {
	file      *token.File
	info      *types.Info
	hierarchy *Hierarchy

	// positions controls whether nodes carry spans; example bodies do not.
	positions bool

	// holes replaces references to example parameters by explicit typed
	// placeholders.
	holes map[types.Object]*pattern.Node
	// variadic lists example parameters whose "xs..." spread is a run.
	variadic map[types.Object]bool
	// packages collects the import paths the converted code refers to.
	packages map[string]bool
}

func newConverter(fset *token.FileSet, file *ast.File, info *types.Info, h *Hierarchy) *converter {
	return &converter{
		file:      fset.File(file.Pos()),
		info:      info,
		hierarchy: h,
		positions: true,
		packages:  make(map[string]bool),
	}
}

func (c *converter) at(n *pattern.Node, node ast.Node) *pattern.Node {
	if !c.positions || c.file == nil || !node.Pos().IsValid() || !node.End().IsValid() {
		return n
	}

	return n.At(c.file.Offset(node.Pos()), c.file.Offset(node.End()))
}

func (c *converter) qualifier(pkg *types.Package) string {
	return pkg.Name()
}

// typeString renders t the way templates spell types: package-qualified by
// name, untyped constants defaulted.
func (c *converter) typeString(t types.Type) string {
	if t == nil {
		return ""
	}

	if basic, ok := t.(*types.Basic); ok && basic.Info()&types.IsUntyped != 0 {
		if basic.Kind() == types.UntypedNil {
			return ""
		}

		t = types.Default(t)
	}

	name := types.TypeString(t, c.qualifier)
	c.hierarchy.record(name, t)

	return name
}

func (c *converter) typeOf(e ast.Expr) string {
	if c.info == nil {
		return ""
	}

	return c.typeString(c.info.TypeOf(e))
}

func (c *converter) isType(e ast.Expr) bool {
	if c.info == nil {
		return false
	}

	tv, ok := c.info.Types[e]

	return ok && tv.IsType()
}

func (c *converter) object(id *ast.Ident) types.Object {
	if c.info == nil {
		return nil
	}

	if obj := c.info.Uses[id]; obj != nil {
		return obj
	}

	return c.info.Defs[id]
}

// ref gives package members and imported packages a qualified identity.
// Locals and universe objects have none and compare by name.
func (c *converter) ref(id *ast.Ident) string {
	obj := c.object(id)
	if obj == nil {
		return ""
	}

	if pkgName, ok := obj.(*types.PkgName); ok {
		c.packages[pkgName.Imported().Path()] = true

		return "pkg:" + pkgName.Imported().Path()
	}

	if obj.Pkg() == nil || obj.Parent() != obj.Pkg().Scope() {
		return ""
	}

	return obj.Pkg().Path() + "." + obj.Name()
}

func (c *converter) expr(e ast.Expr) *pattern.Node {
	if e == nil {
		return nil
	}

	if paren, ok := e.(*ast.ParenExpr); ok {
		return c.expr(paren.X)
	}

	if c.isType(e) {
		name := c.typeOf(e)

		return c.at(&pattern.Node{Kind: pattern.KindIdent, Token: name, Type: name}, e)
	}

	n := c.exprNode(e)
	if n.Type == "" && n.Kind != pattern.KindPlaceholder {
		n.Type = c.typeOf(e)
	}

	return c.at(n, e)
}

//nolint:cyclop,funlen // one case per expression form
func (c *converter) exprNode(e ast.Expr) *pattern.Node {
	switch e := e.(type) {
	case *ast.BasicLit:
		return pattern.Lit(e.Value, c.typeOf(e))
	case *ast.Ident:
		if hole := c.hole(e); hole != nil {
			return hole
		}

		return pattern.Symbol(e.Name, c.ref(e))
	case *ast.SelectorExpr:
		return pattern.Field(c.expr(e.X), e.Sel.Name)
	case *ast.CallExpr:
		return c.call(e)
	case *ast.BinaryExpr:
		return pattern.Bin(e.Op.String(), c.expr(e.X), c.expr(e.Y))
	case *ast.UnaryExpr:
		return pattern.Un(e.Op.String(), c.expr(e.X))
	case *ast.StarExpr:
		return pattern.Un("*", c.expr(e.X))
	case *ast.IndexExpr:
		return pattern.Index(c.expr(e.X), c.expr(e.Index))
	case *ast.KeyValueExpr:
		return pattern.KeyValue(c.expr(e.Key), c.expr(e.Value))
	case *ast.CompositeLit:
		return c.composite(e)
	case *ast.FuncLit:
		return c.funcLit(e)
	case *ast.SliceExpr:
		return c.opaque("slice", e.X, e.Low, e.High, e.Max)
	case *ast.TypeAssertExpr:
		return c.opaque("typeassert", e.X)
	default:
		return &pattern.Node{Kind: pattern.KindOpaque, Token: "expr"}
	}
}

func (c *converter) hole(id *ast.Ident) *pattern.Node {
	obj := c.object(id)
	if obj == nil || c.holes[obj] == nil {
		return nil
	}

	return c.holes[obj].Clone()
}

func (c *converter) call(e *ast.CallExpr) *pattern.Node {
	if c.isType(e.Fun) && len(e.Args) == 1 {
		return pattern.Cast(c.typeOf(e.Fun), c.expr(e.Args[0]))
	}

	args := make([]*pattern.Node, 0, len(e.Args))
	for _, arg := range e.Args {
		args = append(args, c.expr(arg))
	}

	if e.Ellipsis.IsValid() && !c.spreadsVariadic(e.Args[len(e.Args)-1]) {
		// f(xs...) passes one slice, not a run of arguments.
		return &pattern.Node{Kind: pattern.KindOpaque, Token: "spread", Children: append([]*pattern.Node{c.expr(e.Fun)}, args...)}
	}

	return pattern.Call(c.expr(e.Fun), args...)
}

func (c *converter) spreadsVariadic(arg ast.Expr) bool {
	id, ok := arg.(*ast.Ident)

	return ok && c.variadic[c.object(id)]
}

func (c *converter) composite(e *ast.CompositeLit) *pattern.Node {
	elems := make([]*pattern.Node, 0, len(e.Elts))
	for _, elt := range e.Elts {
		elems = append(elems, c.element(elt))
	}

	t := c.info.TypeOf(e)
	if t != nil {
		if slice, ok := t.Underlying().(*types.Slice); ok {
			return pattern.Array(c.typeString(slice.Elem()), elems...)
		}
	}

	return pattern.New(c.typeString(t), elems...)
}

// element converts a composite literal element. Struct field keys are plain
// names, not references.
func (c *converter) element(e ast.Expr) *pattern.Node {
	kv, ok := e.(*ast.KeyValueExpr)
	if !ok {
		return c.expr(e)
	}

	key := c.expr(kv.Key)
	if id, isIdent := kv.Key.(*ast.Ident); isIdent && c.info.Uses[id] == nil {
		key = c.at(pattern.Ident(id.Name), id)
	}

	return c.at(pattern.KeyValue(key, c.expr(kv.Value)), kv)
}

func (c *converter) funcLit(e *ast.FuncLit) *pattern.Node {
	var children []*pattern.Node

	for _, field := range e.Type.Params.List {
		for _, name := range field.Names {
			children = append(children, c.at(pattern.Ident(name.Name), name))
		}
	}

	return &pattern.Node{Kind: pattern.KindLambda, Children: append(children, c.block(e.Body))}
}

func (c *converter) opaque(token string, parts ...ast.Node) *pattern.Node {
	n := &pattern.Node{Kind: pattern.KindOpaque, Token: token}

	for _, part := range parts {
		child := c.part(part)
		if child != nil {
			n.Children = append(n.Children, child)
		}
	}

	return n
}

// part converts an expression or statement; absent optional parts are nil
// interfaces and convert to nothing.
func (c *converter) part(part ast.Node) *pattern.Node {
	switch part := part.(type) {
	case ast.Expr:
		return c.expr(part)
	case ast.Stmt:
		return c.stmt(part)
	default:
		return nil
	}
}

func (c *converter) block(b *ast.BlockStmt) *pattern.Node {
	n := pattern.Block()

	for _, stmt := range b.List {
		n.Children = append(n.Children, c.stmt(stmt))
	}

	return c.at(n, b)
}

func (c *converter) stmt(s ast.Stmt) *pattern.Node {
	switch s := s.(type) {
	case *ast.BlockStmt:
		return c.block(s)
	case *ast.ExprStmt:
		return c.expr(s.X)
	default:
		return c.at(c.stmtNode(s), s)
	}
}

//nolint:cyclop // one case per statement form
func (c *converter) stmtNode(s ast.Stmt) *pattern.Node {
	switch s := s.(type) {
	case *ast.ReturnStmt:
		n := pattern.Return(nil)
		for _, result := range s.Results {
			n.Children = append(n.Children, c.expr(result))
		}

		return n
	case *ast.AssignStmt:
		return c.assign(s)
	case *ast.IncDecStmt:
		op := pattern.PostInc
		if s.Tok == token.DEC {
			op = pattern.PostDec
		}

		return pattern.Un(op, c.expr(s.X))
	case *ast.IfStmt:
		if s.Init != nil {
			return c.opaque(pattern.OpaqueStmtPrefix+"if", s.Init, s.Cond, s.Body, s.Else)
		}

		var otherwise *pattern.Node
		if s.Else != nil {
			otherwise = c.stmt(s.Else)
		}

		return pattern.If(c.expr(s.Cond), c.block(s.Body), otherwise)
	case *ast.DeclStmt:
		return c.decl(s)
	case *ast.ForStmt:
		return c.opaque(pattern.OpaqueStmtPrefix+"for", s.Init, s.Cond, s.Post, s.Body)
	case *ast.RangeStmt:
		return c.opaque(pattern.OpaqueStmtPrefix+"range", s.Key, s.Value, s.X, s.Body)
	case *ast.GoStmt:
		return c.opaque(pattern.OpaqueStmtPrefix+"go", s.Call)
	case *ast.DeferStmt:
		return c.opaque(pattern.OpaqueStmtPrefix+"defer", s.Call)
	case *ast.SendStmt:
		return c.opaque(pattern.OpaqueStmtPrefix+"send", s.Chan, s.Value)
	case *ast.LabeledStmt:
		return c.opaque(pattern.OpaqueStmtPrefix+"label", s.Stmt)
	case *ast.SwitchStmt:
		return c.opaque(pattern.OpaqueStmtPrefix+"switch", c.clauses(s.Init, s.Tag, s.Body)...)
	case *ast.TypeSwitchStmt:
		return c.opaque(pattern.OpaqueStmtPrefix+"typeswitch", c.clauses(s.Init, s.Assign, s.Body)...)
	case *ast.SelectStmt:
		return c.opaque(pattern.OpaqueStmtPrefix+"select", c.clauses(nil, nil, s.Body)...)
	default:
		return &pattern.Node{Kind: pattern.KindOpaque, Token: pattern.OpaqueStmtPrefix + "stmt"}
	}
}

// clauses flattens a switch or select into the parts worth searching: the
// header and every clause body statement.
func (c *converter) clauses(init ast.Stmt, header ast.Node, body *ast.BlockStmt) []ast.Node {
	var parts []ast.Node

	if init != nil {
		parts = append(parts, init)
	}

	if header != nil {
		parts = append(parts, header)
	}

	for _, clause := range body.List {
		switch clause := clause.(type) {
		case *ast.CaseClause:
			for _, expr := range clause.List {
				parts = append(parts, expr)
			}

			for _, stmt := range clause.Body {
				parts = append(parts, stmt)
			}
		case *ast.CommClause:
			for _, stmt := range clause.Body {
				parts = append(parts, stmt)
			}
		}
	}

	return parts
}

func (c *converter) assign(s *ast.AssignStmt) *pattern.Node {
	if len(s.Lhs) != 1 || len(s.Rhs) != 1 {
		parts := make([]ast.Node, 0, len(s.Lhs)+len(s.Rhs))
		for _, e := range s.Lhs {
			parts = append(parts, e)
		}

		for _, e := range s.Rhs {
			parts = append(parts, e)
		}

		return c.opaque(pattern.OpaqueStmtPrefix+"assign"+s.Tok.String(), parts...)
	}

	if id, ok := s.Lhs[0].(*ast.Ident); ok && s.Tok == token.DEFINE {
		let := pattern.Let(id.Name, c.expr(s.Rhs[0]))
		if obj := c.object(id); obj != nil {
			let.Type = c.typeString(obj.Type())
		}

		return let
	}

	return pattern.Assign(s.Tok.String(), c.expr(s.Lhs[0]), c.expr(s.Rhs[0]))
}

// decl converts "var x T = v" to a let; other declarations stay opaque.
func (c *converter) decl(s *ast.DeclStmt) *pattern.Node {
	gen, ok := s.Decl.(*ast.GenDecl)
	if ok && gen.Tok == token.VAR && len(gen.Specs) == 1 {
		spec, isValue := gen.Specs[0].(*ast.ValueSpec)
		if isValue && len(spec.Names) == 1 && len(spec.Values) == 1 {
			let := pattern.Let(spec.Names[0].Name, c.expr(spec.Values[0]))
			if obj := c.object(spec.Names[0]); obj != nil {
				let.Type = c.typeString(obj.Type())
			}

			return let
		}
	}

	return &pattern.Node{Kind: pattern.KindOpaque, Token: pattern.OpaqueStmtPrefix + "decl"}
}

// convertFile builds the unit root: an opaque "file" node whose children are
// the bodies of the file's functions and its package-level initializers.
func (c *converter) convertFile(file *ast.File) *pattern.Node {
	root := &pattern.Node{Kind: pattern.KindOpaque, Token: "file"}

	for _, decl := range file.Decls {
		switch decl := decl.(type) {
		case *ast.FuncDecl:
			if decl.Body == nil {
				continue
			}

			fn := &pattern.Node{Kind: pattern.KindOpaque, Token: pattern.OpaqueStmtPrefix + "func " + decl.Name.Name}
			fn.Children = []*pattern.Node{c.block(decl.Body)}
			root.Children = append(root.Children, c.at(fn, decl))
		case *ast.GenDecl:
			for _, spec := range decl.Specs {
				value, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}

				for _, v := range value.Values {
					root.Children = append(root.Children, c.expr(v))
				}
			}
		}
	}

	return c.at(root, file)
}

// importPaths lists the import paths of file.
func importPaths(file *ast.File) []string {
	paths := make([]string, 0, len(file.Imports))

	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err == nil {
			paths = append(paths, path)
		}
	}

	return paths
}
