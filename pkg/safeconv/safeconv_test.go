package safeconv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint64ToInt(t *testing.T) {
	t.Parallel()

	t.Run("normal_value", func(t *testing.T) {
		t.Parallel()

		got, ok := Uint64ToInt(42)
		assert.True(t, ok)
		assert.Equal(t, 42, got)
	})

	t.Run("max_int", func(t *testing.T) {
		t.Parallel()

		got, ok := Uint64ToInt(uint64(MaxInt))
		assert.True(t, ok)
		assert.Equal(t, MaxInt, got)
	})

	t.Run("overflow", func(t *testing.T) {
		t.Parallel()

		_, ok := Uint64ToInt(math.MaxUint64)
		assert.False(t, ok)
	})
}

func TestMustIntToUint64(t *testing.T) {
	t.Parallel()

	t.Run("normal_value", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, uint64(7), MustIntToUint64(7))
	})

	t.Run("negative_panics", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "safeconv: negative int to uint64 conversion", func() {
			MustIntToUint64(-1)
		})
	})
}

func TestMustIntToUint16(t *testing.T) {
	t.Parallel()

	t.Run("max_uint16", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, uint16(math.MaxUint16), MustIntToUint16(math.MaxUint16))
	})

	t.Run("overflow_panics", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "safeconv: int to uint16 out of bounds", func() {
			MustIntToUint16(math.MaxUint16 + 1)
		})
	})
}
