package rewrite

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed rewrite errors.
var (
	// ErrNoApplicableAfter is matched by [NoApplicableAfterError].
	ErrNoApplicableAfter = errors.New("no applicable after alternative")
	// ErrSideEffect is matched by [SideEffectError].
	ErrSideEffect = errors.New("side effect conflict")
	// ErrUnprintable reports a node the target dialect cannot express.
	ErrUnprintable = errors.New("unprintable node")
	// ErrUnknownDialect reports a unit language without a printer.
	ErrUnknownDialect = errors.New("unknown dialect")
	// ErrUnbound reports a placeholder with no binding during instantiation.
	ErrUnbound = errors.New("unbound placeholder")
	// ErrNoSpan reports a match root without a usable source span.
	ErrNoSpan = errors.New("match root has no source span")
	// ErrOverlappingEdits reports text edits that cannot be applied together.
	ErrOverlappingEdits = errors.New("overlapping text edits")
)

// NoApplicableAfterError reports that no after alternative of a template
// accepts the bound types. The match stays reportable as detection-only.
type NoApplicableAfterError struct {
	Template string
	// Reasons holds why each alternative was rejected, in order.
	Reasons []string
}

func (e *NoApplicableAfterError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("template %s: no after alternative", e.Template)
	}

	return fmt.Sprintf("template %s: no after alternative applies: %v", e.Template, e.Reasons)
}

// Is matches [ErrNoApplicableAfter].
func (e *NoApplicableAfterError) Is(target error) bool {
	return target == ErrNoApplicableAfter
}

// SideEffectKind classifies a side effect conflict.
type SideEffectKind uint8

// Side effect conflicts.
const (
	// SideEffectDuplicated means a side-effecting expression would run more than once.
	SideEffectDuplicated SideEffectKind = iota + 1
	// SideEffectDropped means a side-effecting expression would no longer run.
	SideEffectDropped
	// SideEffectReordered means side-effecting expressions would run in a different order.
	SideEffectReordered
)

func (k SideEffectKind) String() string {
	switch k {
	case SideEffectDuplicated:
		return "duplicated"
	case SideEffectDropped:
		return "dropped"
	case SideEffectReordered:
		return "reordered"
	default:
		return "unknown"
	}
}

// SideEffectError reports a rewrite that would change when or how often a
// side-effecting bound expression runs.
type SideEffectError struct {
	Template    string
	Placeholder string
	Kind        SideEffectKind
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("template %s: side-effecting placeholder %q would be %s", e.Template, e.Placeholder, e.Kind)
}

// Is matches [ErrSideEffect].
func (e *SideEffectError) Is(target error) bool {
	return target == ErrSideEffect
}
