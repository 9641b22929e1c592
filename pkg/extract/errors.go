package extract

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by the typed extraction errors.
var (
	// ErrUnusedPlaceholder is matched by [UnusedPlaceholderError].
	ErrUnusedPlaceholder = errors.New("unused placeholder")
	// ErrInconsistentAlternatives is matched by [InconsistentAlternativesError].
	ErrInconsistentAlternatives = errors.New("inconsistent before alternatives")
	// ErrMalformedExample is matched by [MalformedExampleError].
	ErrMalformedExample = errors.New("malformed example")
)

// UnusedPlaceholderError reports a declared free variable that no before
// alternative references.
type UnusedPlaceholderError struct {
	Template    string
	Placeholder string
}

func (e *UnusedPlaceholderError) Error() string {
	return fmt.Sprintf("template %s: placeholder %q is never referenced in a before body", e.Template, e.Placeholder)
}

// Is matches [ErrUnusedPlaceholder].
func (e *UnusedPlaceholderError) Is(target error) bool {
	return target == ErrUnusedPlaceholder
}

// InconsistentAlternativesError reports a before alternative that does not
// reference every placeholder.
type InconsistentAlternativesError struct {
	Template    string
	Alternative int
	Missing     []string
}

func (e *InconsistentAlternativesError) Error() string {
	return fmt.Sprintf("template %s: before alternative %d does not reference %s",
		e.Template, e.Alternative, strings.Join(e.Missing, ", "))
}

// Is matches [ErrInconsistentAlternatives].
func (e *InconsistentAlternativesError) Is(target error) bool {
	return target == ErrInconsistentAlternatives
}

// MalformedExampleError reports an example body the model cannot represent.
type MalformedExampleError struct {
	Template string
	Reason   string
}

func (e *MalformedExampleError) Error() string {
	return fmt.Sprintf("template %s: malformed example: %s", e.Template, e.Reason)
}

// Is matches [ErrMalformedExample].
func (e *MalformedExampleError) Is(target error) bool {
	return target == ErrMalformedExample
}
