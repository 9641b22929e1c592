package rewrite_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/exfang/pkg/match"
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/rewrite"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
)

func addToSum() *pattern.Template {
	return &pattern.Template{
		Name:    "AddToSum",
		Befores: []*pattern.Node{pattern.Method(pattern.Hole("x", "T"), "add", pattern.Hole("y", "T"))},
		Afters: []*pattern.Node{
			pattern.Call(pattern.Field(pattern.Ident("T"), "sum"), pattern.Hole("x", "T"), pattern.Hole("y", "T")),
		},
		Placeholders: []pattern.Placeholder{
			{Name: "x", Constraint: pattern.Constraint{Types: []string{"T"}}},
			{Name: "y", Constraint: pattern.Constraint{Types: []string{"T"}}},
		},
	}
}

// addUnit is "int c = a.add(b);" with the call as the tree root.
func addUnit() *tree.Unit {
	target := pattern.Call(
		pattern.Field(pattern.Ident("a").Typed("T").At(8, 9), "add").At(8, 13),
		pattern.Ident("b").Typed("T").At(14, 15),
	).At(8, 16)

	return &tree.Unit{
		Name:     "Calc.java",
		Language: "java",
		Tree:     tree.FromPattern(target),
		Source:   []byte("int c = a.add(b);"),
	}
}

func onlyMatch(t *testing.T, tmpl *pattern.Template, unit *tree.Unit) pattern.MatchResult {
	t.Helper()

	results, err := match.New().MatchTemplate(tmpl, unit.Tree)
	require.NoError(t, err)
	require.Len(t, results, 1)

	return results[0]
}

func TestRewrite_AddToSum(t *testing.T) {
	t.Parallel()

	tmpl, unit := addToSum(), addUnit()
	result := onlyMatch(t, tmpl, unit)

	edit, err := rewrite.New().Rewrite(unit, tmpl, result)
	require.NoError(t, err)

	assert.Equal(t, "a.add(b)", edit.Original)
	assert.Equal(t, "T.sum(a, b)", edit.Replacement)
	assert.Equal(t, pattern.Span{Start: 8, End: 16}, edit.Span)
	assert.Equal(t, 0, edit.Alternative)

	for _, text := range edit.TextEdits {
		assert.GreaterOrEqual(t, text.Start, 8)
		assert.LessOrEqual(t, text.End, 16)
	}

	out, err := rewrite.ApplyEdits(unit.Source, edit.TextEdits)
	require.NoError(t, err)
	assert.Equal(t, "int c = T.sum(a, b);", string(out))
}

func TestRewrite_ConsumesItsOwnTrigger(t *testing.T) {
	t.Parallel()

	tmpl, unit := addToSum(), addUnit()
	result := onlyMatch(t, tmpl, unit)

	instance, err := rewrite.Instantiate(tmpl.Afters[0], result.Bindings, unit.Tree)
	require.NoError(t, err)

	again, err := match.New().MatchTemplate(tmpl, tree.FromPattern(instance))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestInstantiate_BeforeReproducesTarget(t *testing.T) {
	t.Parallel()

	tmpl, unit := addToSum(), addUnit()
	result := onlyMatch(t, tmpl, unit)

	instance, err := rewrite.Instantiate(tmpl.Befores[0], result.Bindings, unit.Tree)
	require.NoError(t, err)

	assert.Equal(t, tree.Subtree(unit.Tree, result.Root).String(), instance.String())
}

func TestInstantiate_SplicesRunsAndDoesNotAlias(t *testing.T) {
	t.Parallel()

	before := pattern.Call(pattern.Ident("f"), pattern.Holes("args"))
	target := pattern.Call(pattern.Ident("f"), pattern.Ident("a"), pattern.Ident("b"))
	arena := tree.FromPattern(target)

	found, err := match.New().Match(before, arena, arena.Root())
	require.NoError(t, err)
	require.NotEmpty(t, found)

	after := pattern.Call(pattern.Ident("g"), pattern.Lit("0", "int"), pattern.Holes("args"))

	instance, err := rewrite.Instantiate(after, found[0], arena)
	require.NoError(t, err)
	assert.Equal(t, "(Call g 0 a b)", instance.String())

	instance.Children[2].Token = "changed"
	assert.Equal(t, "a", arena.Token(arena.Children(arena.Root())[1]))

	_, err = rewrite.Instantiate(pattern.Hole("missing"), found[0], arena)
	require.ErrorIs(t, err, rewrite.ErrUnbound)
}

func TestRewrite_PreservesPrecedenceOfVerbatimText(t *testing.T) {
	t.Parallel()

	tmpl := &pattern.Template{
		Name:    "double",
		Befores: []*pattern.Node{pattern.Call(pattern.Ident("double"), pattern.Hole("x"))},
		Afters:  []*pattern.Node{pattern.Bin("*", pattern.Hole("x"), pattern.Lit("2", "int"))},
	}

	target := pattern.Call(
		pattern.Ident("double").At(0, 6),
		pattern.Bin("+", pattern.Ident("a").At(7, 8), pattern.Ident("b").At(11, 12)).At(7, 12),
	).At(0, 13)

	unit := &tree.Unit{Language: "go", Tree: tree.FromPattern(target), Source: []byte("double(a + b)")}

	edit, err := rewrite.New().Rewrite(unit, tmpl, onlyMatch(t, tmpl, unit))
	require.NoError(t, err)
	assert.Equal(t, "(a + b) * 2", edit.Replacement)
}

func TestRewrite_ParenthesizesForEnclosingOperator(t *testing.T) {
	t.Parallel()

	tmpl := &pattern.Template{
		Name:    "plus",
		Befores: []*pattern.Node{pattern.Method(pattern.Hole("x"), "plus", pattern.Hole("y"))},
		Afters:  []*pattern.Node{pattern.Bin("+", pattern.Hole("x"), pattern.Hole("y"))},
	}

	tests := []struct {
		name   string
		source string
		target func() *pattern.Node
		want   string
	}{
		{
			name:   "left operand",
			source: "int c = a.plus(b) * 2;",
			target: func() *pattern.Node {
				call := pattern.Call(
					pattern.Field(pattern.Ident("a").At(8, 9), "plus").At(8, 14),
					pattern.Ident("b").At(15, 16),
				).At(8, 17)

				return pattern.Bin("*", call, pattern.Lit("2", "int").At(20, 21)).At(8, 21)
			},
			want: "int c = (a + b) * 2;",
		},
		{
			name:   "right operand of same level",
			source: "int c = 2 - a.plus(b);",
			target: func() *pattern.Node {
				call := pattern.Call(
					pattern.Field(pattern.Ident("a").At(12, 13), "plus").At(12, 18),
					pattern.Ident("b").At(19, 20),
				).At(12, 21)

				return pattern.Bin("-", pattern.Lit("2", "int").At(8, 9), call).At(8, 21)
			},
			want: "int c = 2 - (a + b);",
		},
		{
			name:   "lower precedence parent",
			source: "int c = a.plus(b) == 2;",
			target: func() *pattern.Node {
				call := pattern.Call(
					pattern.Field(pattern.Ident("a").At(8, 9), "plus").At(8, 14),
					pattern.Ident("b").At(15, 16),
				).At(8, 17)

				return pattern.Bin("==", call, pattern.Lit("2", "int").At(21, 22)).At(8, 22)
			},
			want: "int c = a + b == 2;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			unit := &tree.Unit{Language: "java", Tree: tree.FromPattern(tt.target()), Source: []byte(tt.source)}

			edit, err := rewrite.New().Rewrite(unit, tmpl, onlyMatch(t, tmpl, unit))
			require.NoError(t, err)

			out, err := rewrite.ApplyEdits(unit.Source, edit.TextEdits)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestRewrite_SideEffects(t *testing.T) {
	t.Parallel()

	// Source "f(next(), n)": the call at 0..12, next() at 2..8, n at 10..11.
	unit := func() *tree.Unit {
		target := pattern.Call(
			pattern.Ident("f").At(0, 1),
			pattern.Call(pattern.Ident("next").At(2, 6)).At(2, 8),
			pattern.Ident("n").At(10, 11),
		).At(0, 12)

		return &tree.Unit{Language: "go", Tree: tree.FromPattern(target), Source: []byte("f(next(), n)")}
	}

	before := pattern.Call(pattern.Ident("f"), pattern.Hole("x"), pattern.Hole("y"))

	tests := []struct {
		name  string
		after *pattern.Node
		kind  rewrite.SideEffectKind
		want  string
	}{
		{"duplicated", pattern.Bin("*", pattern.Hole("x"), pattern.Hole("x")), rewrite.SideEffectDuplicated, ""},
		{"dropped", pattern.Call(pattern.Ident("g"), pattern.Hole("y")), rewrite.SideEffectDropped, ""},
		{"pure placeholder may repeat", pattern.Call(pattern.Ident("g"), pattern.Hole("x"), pattern.Hole("y"), pattern.Hole("y")), 0, "g(next(), n, n)"},
		{"pure placeholder may drop", pattern.Call(pattern.Ident("g"), pattern.Hole("x")), 0, "g(next())"},
		{
			"hoisted",
			pattern.Block(
				pattern.Let("t", pattern.Hole("x")),
				pattern.Call(pattern.Ident("g"), pattern.Ident("t"), pattern.Ident("t"), pattern.Hole("y")),
			),
			0, "t := next()\ng(t, t, n)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tmpl := &pattern.Template{Name: tt.name, Befores: []*pattern.Node{before}, Afters: []*pattern.Node{tt.after}}
			u := unit()

			edit, err := rewrite.New().Rewrite(u, tmpl, onlyMatch(t, tmpl, u))
			if tt.kind != 0 {
				var conflict *rewrite.SideEffectError

				require.ErrorAs(t, err, &conflict)
				require.ErrorIs(t, err, rewrite.ErrSideEffect)
				assert.Equal(t, tt.kind, conflict.Kind)
				assert.Equal(t, "x", conflict.Placeholder)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, edit.Replacement)
		})
	}
}

func TestRewrite_ReorderedSideEffects(t *testing.T) {
	t.Parallel()

	// Source "pair(x(), y())".
	target := pattern.Call(
		pattern.Ident("pair").At(0, 4),
		pattern.Call(pattern.Ident("x").At(5, 6)).At(5, 8),
		pattern.Call(pattern.Ident("y").At(10, 11)).At(10, 13),
	).At(0, 14)
	unit := &tree.Unit{Language: "java", Tree: tree.FromPattern(target), Source: []byte("pair(x(), y())")}

	tmpl := &pattern.Template{
		Name:    "swap",
		Befores: []*pattern.Node{pattern.Call(pattern.Ident("pair"), pattern.Hole("a"), pattern.Hole("b"))},
		Afters:  []*pattern.Node{pattern.Call(pattern.Ident("pairOf"), pattern.Hole("b"), pattern.Hole("a"))},
	}

	_, err := rewrite.New().Rewrite(unit, tmpl, onlyMatch(t, tmpl, unit))

	var conflict *rewrite.SideEffectError

	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, rewrite.SideEffectReordered, conflict.Kind)
}

// sameUnit is "same(f(), f())": both arguments evaluate f.
func sameUnit() *tree.Unit {
	target := pattern.Call(
		pattern.Ident("same").At(0, 4),
		pattern.Call(pattern.Ident("f").At(5, 6)).At(5, 8),
		pattern.Call(pattern.Ident("f").At(10, 11)).At(10, 13),
	).At(0, 14)

	return &tree.Unit{Language: "go", Tree: tree.FromPattern(target), Source: []byte("same(f(), f())")}
}

func TestRewrite_SideEffectCountFollowsBefore(t *testing.T) {
	t.Parallel()

	before := pattern.Call(pattern.Ident("same"), pattern.Hole("x"), pattern.Hole("x"))

	t.Run("fewer evaluations than the target", func(t *testing.T) {
		t.Parallel()

		tmpl := &pattern.Template{
			Name:    "once",
			Befores: []*pattern.Node{before},
			Afters:  []*pattern.Node{pattern.Call(pattern.Ident("once"), pattern.Hole("x"))},
		}
		unit := sameUnit()

		_, err := rewrite.New().Rewrite(unit, tmpl, onlyMatch(t, tmpl, unit))

		var conflict *rewrite.SideEffectError

		require.ErrorAs(t, err, &conflict)
		require.ErrorIs(t, err, rewrite.ErrSideEffect)
		assert.Equal(t, rewrite.SideEffectDropped, conflict.Kind)
		assert.Equal(t, "x", conflict.Placeholder)
	})

	t.Run("same number of evaluations", func(t *testing.T) {
		t.Parallel()

		tmpl := &pattern.Template{
			Name:    "pair",
			Befores: []*pattern.Node{before},
			Afters:  []*pattern.Node{pattern.Call(pattern.Ident("pair"), pattern.Hole("x"), pattern.Hole("x"))},
		}
		unit := sameUnit()

		edit, err := rewrite.New().Rewrite(unit, tmpl, onlyMatch(t, tmpl, unit))
		require.NoError(t, err)
		assert.Equal(t, "pair(f(), f())", edit.Replacement)
	})
}

func TestSelectAfter(t *testing.T) {
	t.Parallel()

	target := pattern.Call(pattern.Ident("box").At(0, 3), pattern.Ident("i").Typed("Integer").At(4, 5)).At(0, 6)
	unit := &tree.Unit{Language: "java", Tree: tree.FromPattern(target), Source: []byte("box(i)")}

	before := pattern.Call(pattern.Ident("box"), pattern.Hole("v", "Number"))
	stringOnly := pattern.Call(pattern.Ident("fromString"), pattern.Hole("v", "String"))
	numeric := pattern.Call(pattern.Ident("fromNumber"), pattern.Hole("v", "Number"))

	tmpl := &pattern.Template{Name: "box", Befores: []*pattern.Node{before}, Afters: []*pattern.Node{stringOnly, numeric}}
	result := onlyMatch(t, tmpl, unit)

	edit, err := rewrite.New().Rewrite(unit, tmpl, result)
	require.NoError(t, err)
	assert.Equal(t, 1, edit.Alternative)
	assert.Equal(t, "fromNumber(i)", edit.Replacement)

	tmpl.Afters = tmpl.Afters[:1]

	_, err = rewrite.New().Rewrite(unit, tmpl, result)
	require.ErrorIs(t, err, rewrite.ErrNoApplicableAfter)

	tmpl.Afters = nil

	_, err = rewrite.New().SelectAfter(tmpl, result.Bindings)
	require.ErrorIs(t, err, rewrite.ErrNoApplicableAfter)
}

func TestRewrite_ReportsMissingImports(t *testing.T) {
	t.Parallel()

	tmpl, unit := addToSum(), addUnit()
	tmpl.Imports = []string{"com.example.T", "java.util.List"}
	unit.Imports = []string{"java.util.List"}

	edit, err := rewrite.New().Rewrite(unit, tmpl, onlyMatch(t, tmpl, unit))
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.T"}, edit.Imports)
}

func TestRewrite_StatementWindowKeepsIndentation(t *testing.T) {
	t.Parallel()

	// "{\n    int t = f();\n    return t;\n}"
	source := "{\n    int t = f();\n    return t;\n}"
	target := pattern.Block(
		pattern.Let("t", pattern.Call(pattern.Ident("f").At(14, 15)).At(14, 17)).At(6, 18),
		pattern.Return(pattern.Ident("t").At(30, 31)).At(23, 32),
	).At(0, 34)
	unit := &tree.Unit{Language: "java", Tree: tree.FromPattern(target), Source: []byte(source)}

	tmpl := &pattern.Template{
		Name:    "inline",
		Befores: []*pattern.Node{pattern.Block(pattern.Let("t", pattern.Hole("v")), pattern.Return(pattern.Ident("t")))},
		Afters: []*pattern.Node{pattern.Block(
			pattern.Call(pattern.Ident("log")),
			pattern.Return(pattern.Hole("v")),
		)},
	}

	result := onlyMatch(t, tmpl, unit)
	require.Equal(t, pattern.Window{From: 0, To: 2}, result.Window)

	edit, err := rewrite.New().Rewrite(unit, tmpl, result)
	require.NoError(t, err)

	out, err := rewrite.ApplyEdits(unit.Source, edit.TextEdits)
	require.NoError(t, err)
	assert.Equal(t, "{\n    log();\n    return f();\n}", string(out))
}

func TestRewrite_UnknownLanguage(t *testing.T) {
	t.Parallel()

	tmpl, unit := addToSum(), addUnit()
	unit.Language = "cobol"

	_, err := rewrite.New().Rewrite(unit, tmpl, onlyMatch(t, tmpl, unit))
	require.ErrorIs(t, err, rewrite.ErrUnknownDialect)
}
