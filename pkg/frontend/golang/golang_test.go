package golang_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/exfang/pkg/check"
	"github.com/Sumatoshi-tech/exfang/pkg/frontend/golang"
	"github.com/Sumatoshi-tech/exfang/pkg/match"
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/rewrite"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
	"github.com/Sumatoshi-tech/exfang/pkg/typesys"
)

const hasPrefixExamples = `package examples

import "strings"

// Comparing an index with zero scans the whole string.
//
//exfang:before HasPrefix
func hasPrefixBefore(s, prefix string) bool {
	return strings.Index(s, prefix) == 0
}

//exfang:after HasPrefix
func hasPrefixAfter(s, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}
`

const writeStringExamples = `package examples

import (
	"io"
	"strings"
)

//exfang:before WriteString
func writeBefore(w io.Writer, s string) {
	w.Write([]byte(s))
}

//exfang:after WriteString
func writeBuilder(w *strings.Builder, s string) {
	w.WriteString(s)
}

//exfang:after WriteString
func writeAny(w io.Writer, s string) {
	io.WriteString(w, s)
}
`

func compile(t *testing.T, p *golang.Parser, src string) []*pattern.Template {
	t.Helper()

	templates, err := p.CompileExamples("examples.go", []byte(src))
	require.NoError(t, err)

	return templates
}

func engineFor(t *testing.T, p *golang.Parser, templates ...*pattern.Template) *check.Engine {
	t.Helper()

	s, err := store.New(templates...)
	require.NoError(t, err)

	h := typesys.Chain(p.Hierarchy, typesys.DefaultLattice())

	return check.NewEngine(s,
		check.WithMatcher(match.New(match.WithHierarchy(h))),
		check.WithRewriter(rewrite.New(rewrite.WithHierarchy(h))),
	)
}

func TestCompileExamples(t *testing.T) {
	t.Parallel()

	templates := compile(t, golang.NewParser(), hasPrefixExamples)
	require.Len(t, templates, 1)

	tmpl := templates[0]
	assert.Equal(t, "HasPrefix", tmpl.Name)
	assert.Equal(t, []string{"strings"}, tmpl.Imports)
	require.Len(t, tmpl.Placeholders, 2)
	assert.Equal(t, []string{"string"}, tmpl.Placeholders[0].Constraint.Types)

	before := tmpl.Befores[0]
	assert.Equal(t, pattern.KindBinary, before.Kind)
	assert.Equal(t, "==", before.Token)
	assert.ElementsMatch(t, []string{"s", "prefix"}, before.PlaceholderNames())
}

func TestCheck_RewritesGoSource(t *testing.T) {
	t.Parallel()

	p := golang.NewParser()
	engine := engineFor(t, p, compile(t, p, hasPrefixExamples)...)

	src := `package target

import "strings"

func isGo(name string) bool {
	return strings.Index(name, "go") == 0
}
`

	unit, err := p.ParseSource("target.go", []byte(src))
	require.NoError(t, err)

	report, err := engine.CheckUnit(context.Background(), unit)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)

	finding := report.Findings[0]
	assert.Equal(t, `strings.Index(name, "go") == 0`, finding.Text)
	require.True(t, finding.Rewritable())
	assert.Equal(t, `strings.HasPrefix(name, "go")`, finding.Edit.Replacement)
	assert.Empty(t, finding.Edit.Imports)

	out, err := report.Apply(unit.Source)
	require.NoError(t, err)
	assert.Contains(t, string(out), `return strings.HasPrefix(name, "go")`)
}

func TestCheck_AfterSelectedByBoundType(t *testing.T) {
	t.Parallel()

	p := golang.NewParser()
	engine := engineFor(t, p, compile(t, p, writeStringExamples)...)

	src := `package target

import (
	"bytes"
	"strings"
)

func emit(sb *strings.Builder, buf *bytes.Buffer, msg string) {
	sb.Write([]byte(msg))
	buf.Write([]byte(msg))
}
`

	unit, err := p.ParseSource("emit.go", []byte(src))
	require.NoError(t, err)

	report, err := engine.CheckUnit(context.Background(), unit)
	require.NoError(t, err)
	require.Len(t, report.Findings, 2)

	assert.Equal(t, 0, report.Findings[0].Edit.Alternative)
	assert.Equal(t, "sb.WriteString(msg)", report.Findings[0].Edit.Replacement)

	assert.Equal(t, 1, report.Findings[1].Edit.Alternative)
	assert.Equal(t, "io.WriteString(buf, msg)", report.Findings[1].Edit.Replacement)
	assert.Equal(t, []string{"io"}, report.Imports())
}

func TestCheck_IgnoresUnrelatedCode(t *testing.T) {
	t.Parallel()

	p := golang.NewParser()
	engine := engineFor(t, p, compile(t, p, hasPrefixExamples)...)

	src := `package target

import "strings"

func position(name string) int {
	return strings.Index(name, "go")
}
`

	unit, err := p.ParseSource("target.go", []byte(src))
	require.NoError(t, err)

	report, err := engine.CheckUnit(context.Background(), unit)
	require.NoError(t, err)
	assert.Empty(t, report.Findings)
}

func TestParseSource_Structure(t *testing.T) {
	t.Parallel()

	src := `package p

import "fmt"

func sum(a, b int) int {
	c := a + b
	c++
	for i := 0; i < 3; i++ {
		fmt.Println(i)
	}
	return c
}
`

	unit, err := golang.NewParser().ParseSource("sum.go", []byte(src))
	require.NoError(t, err)
	require.NoError(t, tree.Validate(unit.Tree))

	assert.Equal(t, golang.Language, unit.Language)
	assert.Equal(t, []string{"fmt"}, unit.Imports)

	root := tree.Subtree(unit.Tree, unit.Tree.Root())

	lets := root.Find(func(n *pattern.Node) bool { return n.Kind == pattern.KindLet })
	require.Len(t, lets, 2)
	assert.Equal(t, "c", lets[0].Token)
	assert.Equal(t, "i", lets[1].Token)
	assert.Equal(t, "int", lets[0].Type)

	calls := root.Find(func(n *pattern.Node) bool { return n.Kind == pattern.KindCall })
	require.Len(t, calls, 1)
	assert.Equal(t, "pkg:fmt", calls[0].Children[0].Children[0].Ref)

	loops := root.Find(func(n *pattern.Node) bool { return n.Token == pattern.OpaqueStmtPrefix+"for" })
	require.Len(t, loops, 1)

	incs := root.Find(func(n *pattern.Node) bool { return n.Kind == pattern.KindUnary && n.Token == pattern.PostInc })
	assert.Len(t, incs, 2)

	require.NotNil(t, lets[0].Pos)
	assert.Equal(t, "c := a + b", src[lets[0].Pos.Start:lets[0].Pos.End])
}

func TestParseSource_SyntaxError(t *testing.T) {
	t.Parallel()

	_, err := golang.NewParser().ParseSource("bad.go", []byte("package p\nfunc {"))
	require.Error(t, err)
}

func TestLoadExamples_Directives(t *testing.T) {
	t.Parallel()

	src := `package examples

//exfang:before Double
//exfang:exact x
//exfang:import math
//exfang:nonidempotent
func doubleBefore(x int) int { return x + x }

//exfang:after Double
func doubleAfter(x int) int { return x * 2 }
`

	examples, err := golang.NewParser().LoadExamples("double.go", []byte(src))
	require.NoError(t, err)
	require.Len(t, examples, 1)

	ex := examples[0]
	assert.Equal(t, "Double", ex.Name)
	assert.True(t, ex.NonIdempotent)
	assert.Equal(t, []string{"math"}, ex.Imports)
	require.Len(t, ex.Params, 1)
	assert.True(t, ex.Params[0].Exact)
	assert.Equal(t, "int", ex.Params[0].Type)
	assert.Len(t, ex.Befores, 1)
	assert.Len(t, ex.Afters, 1)
}

func TestLoadExamples_BadDirective(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"unknown verb", "//exfang:frobnicate X"},
		{"missing name", "//exfang:before"},
		{"orphan flag", "//exfang:nonidempotent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := "package examples\n\n" + tt.doc + "\nfunc f(x int) int { return x }\n"

			_, err := golang.NewParser().LoadExamples("bad.go", []byte(src))
			require.ErrorIs(t, err, golang.ErrDirective)
		})
	}
}

func TestHierarchy(t *testing.T) {
	t.Parallel()

	p := golang.NewParser()

	src := `package p

import (
	"bytes"
	"io"
)

type Celsius float64

func f(buf *bytes.Buffer, w io.Writer, c Celsius) {
	_, _, _ = buf, w, c
}
`

	_, err := p.ParseSource("p.go", []byte(src))
	require.NoError(t, err)

	h := p.Hierarchy
	assert.True(t, h.Assignable("*bytes.Buffer", "io.Writer"))
	assert.False(t, h.Assignable("io.Writer", "*bytes.Buffer"))
	assert.True(t, h.Assignable("*bytes.Buffer", "io.Reader"))
	assert.False(t, h.Assignable("int", "string"))
	assert.True(t, h.Numeric("p.Celsius"))
	assert.True(t, h.Numeric("int64"))
	assert.False(t, h.Numeric("string"))
	assert.False(t, h.Numeric("no.Such"))
}

func TestAddImports(t *testing.T) {
	t.Parallel()

	src := []byte("package p\n\nimport \"fmt\"\n\nfunc f() { fmt.Println(1) }\n")

	out, err := golang.AddImports("p.go", src, []string{"io", "fmt"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"io"`)
	assert.Contains(t, string(out), `"fmt"`)

	same, err := golang.AddImports("p.go", src, []string{"fmt"})
	require.NoError(t, err)
	assert.Equal(t, string(src), string(same))
}
