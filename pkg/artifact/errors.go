package artifact

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed artifact errors.
var (
	// ErrVersionSkew is matched by [VersionSkewError].
	ErrVersionSkew = errors.New("unsupported artifact schema version")
	// ErrMalformed is matched by [MalformedArtifactError].
	ErrMalformed = errors.New("malformed artifact")
)

// VersionSkewError reports an artifact written with a schema version this
// reader does not support. Nothing past the version tag is read.
type VersionSkewError struct {
	Version uint16
	Min     uint16
	Max     uint16
}

func (e *VersionSkewError) Error() string {
	return fmt.Sprintf("artifact schema version %d not supported (reader supports %d..%d)", e.Version, e.Min, e.Max)
}

// Is matches [ErrVersionSkew].
func (e *VersionSkewError) Is(target error) bool {
	return target == ErrVersionSkew
}

// MalformedArtifactError reports corrupted or truncated artifact bytes.
type MalformedArtifactError struct {
	Reason string
	Err    error
}

func (e *MalformedArtifactError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed artifact: %s: %v", e.Reason, e.Err)
	}

	return "malformed artifact: " + e.Reason
}

// Is matches [ErrMalformed].
func (e *MalformedArtifactError) Is(target error) bool {
	return target == ErrMalformed
}

// Unwrap returns the underlying cause, if any.
func (e *MalformedArtifactError) Unwrap() error {
	return e.Err
}

func malformed(reason string) error {
	return &MalformedArtifactError{Reason: reason}
}
