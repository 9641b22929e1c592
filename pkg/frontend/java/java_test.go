package java_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/exfang/pkg/check"
	"github.com/Sumatoshi-tech/exfang/pkg/frontend/java"
	"github.com/Sumatoshi-tech/exfang/pkg/match"
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/rewrite"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
)

const nullCheckTemplates = `import java.util.Objects;

class NullCheck {
    @BeforeTemplate
    boolean before(Object o) {
        return o == null;
    }

    @AfterTemplate
    boolean after(Object o) {
        return Objects.isNull(o);
    }
}
`

const asListTemplates = `import java.util.Arrays;
import java.util.List;

class AsList {
    @BeforeTemplate
    List<String> before(String... xs) {
        return Arrays.asList(xs);
    }

    @AfterTemplate
    List<String> after(String... xs) {
        return List.of(xs);
    }
}
`

func newParser(t *testing.T) *java.Parser {
	t.Helper()

	p, err := java.NewParser()
	require.NoError(t, err)

	return p
}

func compile(t *testing.T, p *java.Parser, src string) []*pattern.Template {
	t.Helper()

	templates, err := p.CompileExamples(context.Background(), "Templates.java", []byte(src))
	require.NoError(t, err)

	return templates
}

func checkSource(t *testing.T, p *java.Parser, src string, templates ...*pattern.Template) (*tree.Unit, *check.Report) {
	t.Helper()

	s, err := store.New(templates...)
	require.NoError(t, err)

	engine := check.NewEngine(s,
		check.WithMatcher(match.New(match.WithHierarchy(p.Hierarchy))),
		check.WithRewriter(rewrite.New(rewrite.WithHierarchy(p.Hierarchy))),
	)

	unit, err := p.ParseSource(context.Background(), "Service.java", []byte(src))
	require.NoError(t, err)

	report, err := engine.CheckUnit(context.Background(), unit)
	require.NoError(t, err)

	return unit, report
}

func TestCompileExamples(t *testing.T) {
	t.Parallel()

	templates := compile(t, newParser(t), nullCheckTemplates)
	require.Len(t, templates, 1)

	tmpl := templates[0]
	assert.Equal(t, "NullCheck", tmpl.Name)
	assert.Equal(t, []string{"java.util.Objects"}, tmpl.Imports)
	require.Len(t, tmpl.Placeholders, 1)
	assert.Equal(t, []string{"Object"}, tmpl.Placeholders[0].Constraint.Types)
	assert.Equal(t, pattern.KindBinary, tmpl.Befores[0].Kind)
}

func TestCheck_RewritesJavaSource(t *testing.T) {
	t.Parallel()

	p := newParser(t)

	src := `import java.util.Objects;

class Service {
    boolean missing(String name) {
        return name == null;
    }
}
`

	unit, report := checkSource(t, p, src, compile(t, p, nullCheckTemplates)...)
	require.Len(t, report.Findings, 1)

	finding := report.Findings[0]
	assert.Equal(t, "name == null", finding.Text)
	require.True(t, finding.Rewritable())
	assert.Equal(t, "Objects.isNull(name)", finding.Edit.Replacement)
	assert.Empty(t, finding.Edit.Imports)

	out, err := report.Apply(unit.Source)
	require.NoError(t, err)
	assert.Contains(t, string(out), "return Objects.isNull(name);")
}

func TestCheck_RepeatedArguments(t *testing.T) {
	t.Parallel()

	p := newParser(t)
	templates := compile(t, p, asListTemplates)
	require.True(t, templates[0].Placeholders[0].Variadic)

	src := `import java.util.Arrays;
import java.util.List;

class Service {
    List<String> names() {
        return Arrays.asList("a", "b");
    }
}
`

	_, report := checkSource(t, p, src, templates...)
	require.Len(t, report.Findings, 1)
	require.True(t, report.Findings[0].Rewritable())
	assert.Equal(t, `List.of("a", "b")`, report.Findings[0].Edit.Replacement)
}

func TestParseSource_InfersTypes(t *testing.T) {
	t.Parallel()

	src := `class Calc {
    int total;

    int run(int[] xs, String s) {
        int n = xs.length;
        var m = s.length();
        long big = 1L;
        for (String part : s.split(",")) {
            total += part.length();
        }
        return n + m;
    }
}
`

	unit, err := newParser(t).ParseSource(context.Background(), "Calc.java", []byte(src))
	require.NoError(t, err)
	require.NoError(t, tree.Validate(unit.Tree))
	assert.Equal(t, java.Language, unit.Language)

	root := tree.Subtree(unit.Tree, unit.Tree.Root())

	lets := root.Find(func(n *pattern.Node) bool { return n.Kind == pattern.KindLet })
	require.Len(t, lets, 3)
	assert.Equal(t, "int", lets[0].Type)
	assert.Equal(t, "int", lets[0].Children[0].Type)
	assert.Equal(t, "var", lets[1].Type)
	assert.Equal(t, "int", lets[1].Children[0].Type)
	assert.Equal(t, "long", lets[2].Children[0].Type)

	assigns := root.Find(func(n *pattern.Node) bool { return n.Kind == pattern.KindAssign })
	require.Len(t, assigns, 1)
	assert.Equal(t, "+=", assigns[0].Token)
	assert.Equal(t, "int", assigns[0].Type)
	assert.Equal(t, "int", assigns[0].Children[1].Type)

	sums := root.Find(func(n *pattern.Node) bool { return n.Kind == pattern.KindBinary && n.Token == "+" })
	require.Len(t, sums, 1)
	assert.Equal(t, "int", sums[0].Type)

	require.NotNil(t, lets[0].Pos)
	assert.Equal(t, "int n = xs.length;", src[lets[0].Pos.Start:lets[0].Pos.End])
}

func TestParseSource_SyntaxError(t *testing.T) {
	t.Parallel()

	_, err := newParser(t).ParseSource(context.Background(), "Bad.java", []byte("class A { ) ) ) }"))
	require.ErrorIs(t, err, java.ErrSyntax)
}

func TestHierarchy(t *testing.T) {
	t.Parallel()

	p := newParser(t)

	src := `class Base {}
interface Shape {}
class Square extends Base implements Shape {}
`

	_, err := p.ParseSource(context.Background(), "Shapes.java", []byte(src))
	require.NoError(t, err)

	h := p.Hierarchy
	assert.True(t, h.Assignable("Square", "Base"))
	assert.True(t, h.Assignable("Square", "Shape"))
	assert.True(t, h.Assignable("Square", "Object"))
	assert.False(t, h.Assignable("Base", "Square"))
	assert.True(t, h.Assignable("int", "Integer"))
	assert.True(t, h.Assignable("int", "Number"))
	assert.True(t, h.Assignable("ArrayList", "Collection"))
	assert.True(t, h.Numeric("long"))
	assert.False(t, h.Numeric("String"))
}

func TestAddImports(t *testing.T) {
	t.Parallel()

	p := newParser(t)
	ctx := context.Background()

	src := []byte("package demo;\n\nclass A {}\n")

	out, err := p.AddImports(ctx, "A.java", src, []string{"java.util.Objects", "java.lang.Math"})
	require.NoError(t, err)
	assert.Equal(t, "package demo;\n\nimport java.util.Objects;\n\nclass A {}\n", string(out))

	wildcard := []byte("import java.util.*;\n\nclass A {}\n")

	out, err = p.AddImports(ctx, "A.java", wildcard, []string{"java.util.Objects"})
	require.NoError(t, err)
	assert.Equal(t, string(wildcard), string(out))

	imported := []byte("import java.util.List;\n\nclass A {}\n")

	out, err = p.AddImports(ctx, "A.java", imported, []string{"java.util.Objects"})
	require.NoError(t, err)
	assert.Equal(t, "import java.util.List;\nimport java.util.Objects;\n\nclass A {}\n", string(out))
}
