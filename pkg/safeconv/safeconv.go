// Package safeconv provides checked integer conversions. The Must variants
// panic and are for values whose range is guaranteed by construction; the
// checked variants are for values read from untrusted input.
package safeconv

import "math"

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// Uint64ToInt converts v to int, reporting false when it does not fit.
func Uint64ToInt(v uint64) (int, bool) {
	if v > uint64(MaxInt) {
		return 0, false
	}

	return int(v), true
}

// MustIntToUint64 converts v to uint64, panics if negative.
// Use for lengths and counts.
func MustIntToUint64(v int) uint64 {
	if v < 0 {
		panic("safeconv: negative int to uint64 conversion")
	}

	return uint64(v)
}

// MustIntToUint16 converts v to uint16, panics on bounds violation.
func MustIntToUint16(v int) uint16 {
	if v < 0 || v > math.MaxUint16 {
		panic("safeconv: int to uint16 out of bounds")
	}

	return uint16(v)
}

// MustUintToInt converts v to int, panics on overflow.
// Use for byte offsets reported by parsers.
func MustUintToInt(v uint) int {
	if v > uint(MaxInt) {
		panic("safeconv: uint to int overflow")
	}

	return int(v)
}
