package pattern

import "errors"

// ErrInvariant is the sentinel matched by every [InvariantViolation].
var ErrInvariant = errors.New("invariant violation")

// InvariantViolation reports malformed engine input: a cyclic or dangling
// target tree, or a template without alternatives. It is a programming error
// in the caller and aborts the analysis of the current unit.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Reason
}

// Is matches [ErrInvariant].
func (e *InvariantViolation) Is(target error) bool {
	return target == ErrInvariant
}
