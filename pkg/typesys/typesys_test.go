package typesys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/typesys"
)

func TestLattice_Assignable(t *testing.T) {
	t.Parallel()

	lattice := typesys.DefaultLattice().Declare("Child", "Parent").Declare("Parent", "Grand")

	tests := []struct {
		from, to string
		want     bool
	}{
		{"Child", "Child", true},
		{"Child", "Parent", true},
		{"Child", "Grand", true},
		{"Parent", "Child", false},
		{"int", "double", true},
		{"double", "int", false},
		{"ArrayList", "Iterable", true},
		{"Child", "Object", true},
		{"Child", "Unrelated", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, lattice.Assignable(tt.from, tt.to))
		})
	}
}

func TestLattice_Numeric(t *testing.T) {
	t.Parallel()

	lattice := typesys.DefaultLattice()

	assert.True(t, lattice.Numeric("int"))
	assert.True(t, lattice.Numeric("float64"))
	assert.True(t, lattice.Numeric("java.lang.Long"))
	assert.False(t, lattice.Numeric("string"))
	assert.False(t, lattice.Numeric("String"))

	assert.True(t, typesys.NewLattice().DeclareNumeric("Money").Numeric("Money"))
}

func TestSatisfies(t *testing.T) {
	t.Parallel()

	lattice := typesys.DefaultLattice().Declare("Child", "Parent")

	widened := pattern.Constraint{Types: []string{"Parent"}}
	pinned := pattern.Constraint{Types: []string{"Parent"}, Exact: true}

	assert.True(t, typesys.Satisfies(lattice, "Child", widened))
	assert.False(t, typesys.Satisfies(lattice, "Child", pinned))
	assert.True(t, typesys.Satisfies(lattice, "Parent", pinned))
	assert.True(t, typesys.Satisfies(lattice, "", pattern.Constraint{}))
	assert.False(t, typesys.Satisfies(lattice, "", widened))
}

func TestChain(t *testing.T) {
	t.Parallel()

	first := typesys.NewLattice().Declare("A", "B")
	second := typesys.NewLattice().Declare("B", "C").DeclareNumeric("N")

	chained := typesys.Chain(first, second)

	assert.True(t, chained.Assignable("A", "B"))
	assert.True(t, chained.Assignable("B", "C"))
	assert.False(t, chained.Assignable("A", "C"))
	assert.True(t, chained.Numeric("N"))
}
