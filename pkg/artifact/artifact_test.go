package artifact_test

import (
	"encoding/binary"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/exfang/pkg/artifact"
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// headerLen is magic + version + fingerprint.
const headerLen = 4 + 2 + 32

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
		Imports:       []string{"com.example.T"},
		NonIdempotent: true,
	}
}

// everyKind builds a template that exercises each node kind and flag.
func everyKind() *pattern.Template {
	body := pattern.Block(
		pattern.Let("v", pattern.New("Foo", pattern.Lit("\"s\"", "String"), pattern.Holes("rest", "int"))),
		pattern.If(
			pattern.Bin("==", pattern.Symbol("v", "local:v"), pattern.Lit("null", "")),
			pattern.Block(pattern.Return(pattern.Un("-", pattern.ExactHole("n", "int")))),
			pattern.Block(pattern.Assign("+=", pattern.Index(pattern.Ident("arr"), pattern.Lit("0", "int")), pattern.Hole("n"))),
		),
		pattern.Call(pattern.Ident("run"),
			pattern.Lambda([]string{"a"}, pattern.Cast("long", pattern.Ident("a"))),
			pattern.MethodRef(pattern.Ident("String"), "valueOf"),
			pattern.Array("int", pattern.KeyValue(pattern.Ident("k"), pattern.Cond(pattern.Ident("c"), pattern.Lit("1", "int"), pattern.Lit("2", "int")))),
		),
		&pattern.Node{Kind: pattern.KindOpaque, Token: "stmt:for", Children: []*pattern.Node{pattern.Block()}},
		pattern.Return(nil),
	)

	return &pattern.Template{
		Name:    "EveryKind",
		Befores: []*pattern.Node{body, pattern.Method(pattern.Hole("n"), "intValue").Typed("int")},
		Afters:  []*pattern.Node{pattern.Hole("n")},
		Placeholders: []pattern.Placeholder{
			{Name: "n", Constraint: pattern.Constraint{Types: []string{"int"}, Exact: true}},
			{Name: "rest", Constraint: pattern.Constraint{Types: []string{"int"}}, Variadic: true},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, tmpl := range []*pattern.Template{addToSum(), everyKind()} {
		t.Run(tmpl.Name, func(t *testing.T) {
			t.Parallel()

			decoded, err := artifact.Unmarshal(artifact.Marshal(tmpl))
			require.NoError(t, err)

			assert.Equal(t, artifact.CurrentVersion, decoded.Version)
			assert.True(t, tmpl.Equal(decoded.Template))
			assert.Equal(t, artifact.FingerprintOf(tmpl), decoded.Fingerprint)
		})
	}
}

func TestRoundTrip_DropsPositions(t *testing.T) {
	t.Parallel()

	tmpl := addToSum()
	tmpl.Befores[0].Pos = &pattern.Span{Start: 3, End: 12}

	decoded, err := artifact.Unmarshal(artifact.Marshal(tmpl))
	require.NoError(t, err)

	assert.Nil(t, decoded.Template.Befores[0].Pos)
	assert.True(t, tmpl.Equal(decoded.Template))
}

func TestMarshal_IsDeterministic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, artifact.Marshal(everyKind()), artifact.Marshal(everyKind()))
}

func TestUnmarshal_UnknownVersion(t *testing.T) {
	t.Parallel()

	data := artifact.Marshal(addToSum())
	binary.BigEndian.PutUint16(data[4:6], 99)

	decoded, err := artifact.Unmarshal(data)
	require.Error(t, err)
	assert.Nil(t, decoded)
	require.ErrorIs(t, err, artifact.ErrVersionSkew)

	var skew *artifact.VersionSkewError
	require.ErrorAs(t, err, &skew)
	assert.Equal(t, uint16(99), skew.Version)
	assert.Equal(t, uint16(1), skew.Min)
	assert.Equal(t, uint16(3), skew.Max)
}

func TestUnmarshal_VersionCheckedBeforeBody(t *testing.T) {
	t.Parallel()

	data := []byte{'E', 'X', 'F', 'T', 0, 0}

	_, err := artifact.Unmarshal(data)
	require.ErrorIs(t, err, artifact.ErrVersionSkew)
}

func TestOlderVersions(t *testing.T) {
	t.Parallel()

	t.Run("v2 keeps imports and flags", func(t *testing.T) {
		t.Parallel()

		data, err := artifact.MarshalVersion(addToSum(), 2)
		require.NoError(t, err)

		decoded, err := artifact.Unmarshal(data)
		require.NoError(t, err)
		assert.Equal(t, uint16(2), decoded.Version)
		assert.True(t, addToSum().Equal(decoded.Template))
	})

	t.Run("v1 drops imports and flags", func(t *testing.T) {
		t.Parallel()

		data, err := artifact.MarshalVersion(addToSum(), 1)
		require.NoError(t, err)

		decoded, err := artifact.Unmarshal(data)
		require.NoError(t, err)

		assert.Empty(t, decoded.Template.Imports)
		assert.False(t, decoded.Template.NonIdempotent)
		assert.True(t, pattern.Equal(addToSum().Befores[0], decoded.Template.Befores[0]))
	})

	t.Run("unsupported write version", func(t *testing.T) {
		t.Parallel()

		_, err := artifact.MarshalVersion(addToSum(), 4)
		require.ErrorIs(t, err, artifact.ErrVersionSkew)
	})
}

func TestUnmarshal_Malformed(t *testing.T) {
	t.Parallel()

	valid := artifact.Marshal(addToSum())

	v1, err := artifact.MarshalVersion(addToSum(), 1)
	require.NoError(t, err)

	tests := []struct {
		name string
		data func() []byte
	}{
		{"empty", func() []byte { return nil }},
		{"bad magic", func() []byte {
			data := append([]byte(nil), valid...)
			data[0] = 'X'

			return data
		}},
		{"truncated header", func() []byte { return valid[:headerLen-1] }},
		{"truncated payload", func() []byte { return valid[:len(valid)-1] }},
		{"flipped payload byte", func() []byte {
			data := append([]byte(nil), v1...)
			data[len(data)-3] ^= 0xff

			return data
		}},
		{"flipped fingerprint", func() []byte {
			data := append([]byte(nil), valid...)
			data[10] ^= 0xff

			return data
		}},
		{"trailing bytes", func() []byte { return append(append([]byte(nil), v1...), 0) }},
		{"unknown payload mode", func() []byte {
			data := append([]byte(nil), valid...)
			data[headerLen] = 7

			return data
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			decoded, decodeErr := artifact.Unmarshal(tt.data())
			require.ErrorIs(t, decodeErr, artifact.ErrMalformed)
			assert.Nil(t, decoded)
		})
	}
}

func TestMarshal_CompressesLargeTemplates(t *testing.T) {
	t.Parallel()

	args := make([]*pattern.Node, 0, 200)
	for i := range 200 {
		args = append(args, pattern.Lit(strconv.Itoa(i%4), "int"))
	}

	tmpl := &pattern.Template{
		Name:         "Big",
		Befores:      []*pattern.Node{pattern.Call(pattern.Ident("f"), append(args, pattern.Hole("x"))...)},
		Afters:       []*pattern.Node{pattern.Hole("x")},
		Placeholders: []pattern.Placeholder{{Name: "x"}},
	}

	data := artifact.Marshal(tmpl)
	assert.Equal(t, byte(1), data[headerLen], "payload should be lz4-compressed")

	decoded, err := artifact.Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, tmpl.Equal(decoded.Template))
}

func TestVersion(t *testing.T) {
	t.Parallel()

	version, err := artifact.Version(artifact.Marshal(addToSum()))
	require.NoError(t, err)
	assert.Equal(t, artifact.CurrentVersion, version)

	_, err = artifact.Version([]byte("EX"))
	require.ErrorIs(t, err, artifact.ErrMalformed)
}

func TestFingerprint_Short(t *testing.T) {
	t.Parallel()

	fp := artifact.FingerprintOf(addToSum())

	assert.Len(t, fp.String(), 64)
	assert.Equal(t, fp.String()[:12], fp.Short())
}
