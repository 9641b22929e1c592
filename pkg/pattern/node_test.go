package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

func addPattern() *pattern.Node {
	return pattern.Method(pattern.Hole("x", "T"), "add", pattern.Hole("y", "T"))
}

func TestNode_String(t *testing.T) {
	t.Parallel()

	got := pattern.Call(pattern.Ident("f"), pattern.Hole("first"), pattern.Holes("rest")).String()
	assert.Equal(t, "(Call f $first $rest...)", got)

	assert.Equal(t, "(Call (Field add $x) $y)", addPattern().String())
}

func TestEqual_IgnoresPositions(t *testing.T) {
	t.Parallel()

	left := pattern.Bin("+", pattern.Ident("a").At(0, 1), pattern.Lit("1", "int").At(4, 5))
	right := pattern.Bin("+", pattern.Ident("a"), pattern.Lit("1", "int"))

	assert.True(t, pattern.Equal(left, right))
}

func TestEqual_DetectsDifferences(t *testing.T) {
	t.Parallel()

	base := addPattern()

	tests := []struct {
		name  string
		other *pattern.Node
	}{
		{"operator", pattern.Method(pattern.Hole("x", "T"), "sub", pattern.Hole("y", "T"))},
		{"constraint", pattern.Method(pattern.Hole("x", "U"), "add", pattern.Hole("y", "T"))},
		{"exactness", pattern.Method(pattern.ExactHole("x", "T"), "add", pattern.Hole("y", "T"))},
		{"arity", pattern.Method(pattern.Hole("x", "T"), "add")},
		{"multiplicity", pattern.Method(pattern.Hole("x", "T"), "add", pattern.Holes("y", "T"))},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.False(t, pattern.Equal(base, tt.other))
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	t.Parallel()

	original := pattern.Call(pattern.Ident("f"), pattern.Lit("1", "int").At(2, 3))
	clone := original.Clone()

	require.True(t, pattern.Equal(original, clone))

	clone.Children[1].Token = "2"
	clone.Children[1].Pos.Start = 9

	assert.Equal(t, "1", original.Children[1].Token)
	assert.Equal(t, 2, original.Children[1].Pos.Start)
}

func TestStripPositions(t *testing.T) {
	t.Parallel()

	stripped := pattern.Un("-", pattern.Ident("x").At(1, 2)).At(0, 2).StripPositions()

	stripped.Walk(func(n *pattern.Node) bool {
		assert.Nil(t, n.Pos)

		return true
	})
}

func TestWalk_PreOrderAndSkip(t *testing.T) {
	t.Parallel()

	tree := pattern.Block(
		pattern.Let("v", pattern.Call(pattern.Ident("f"))),
		pattern.Return(pattern.Ident("v")),
	)

	var kinds []pattern.Kind

	tree.Walk(func(n *pattern.Node) bool {
		kinds = append(kinds, n.Kind)

		return n.Kind != pattern.KindLet
	})

	assert.Equal(t, []pattern.Kind{
		pattern.KindBlock, pattern.KindLet, pattern.KindReturn, pattern.KindIdent,
	}, kinds)
}

func TestPlaceholderNamesAndOccurrences(t *testing.T) {
	t.Parallel()

	same := pattern.Call(pattern.Ident("same"), pattern.Hole("x"), pattern.Hole("y"), pattern.Hole("x"))

	assert.Equal(t, []string{"x", "y"}, same.PlaceholderNames())
	assert.Equal(t, map[string]int{"x": 2, "y": 1}, same.Occurrences())
}

func TestIsStatement(t *testing.T) {
	t.Parallel()

	assert.True(t, pattern.If(pattern.Ident("c"), pattern.Block(), nil).IsStatement())
	assert.False(t, pattern.Cond(pattern.Ident("c"), pattern.Ident("a"), pattern.Ident("b")).IsStatement())
	assert.True(t, pattern.Return(nil).IsStatement())
	assert.True(t, (&pattern.Node{Kind: pattern.KindOpaque, Token: "stmt:for"}).IsStatement())
	assert.False(t, (&pattern.Node{Kind: pattern.KindOpaque, Token: "slice"}).IsStatement())
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	kind, ok := pattern.ParseKind("MethodRef")
	require.True(t, ok)
	assert.Equal(t, pattern.KindMethodRef, kind)

	_, ok = pattern.ParseKind("Invalid")
	assert.False(t, ok)

	assert.Equal(t, "Kind(200)", pattern.Kind(200).String())
}
