package version_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/exfang/pkg/version"
)

func TestString(t *testing.T) {
	t.Parallel()

	s := version.String()
	assert.Contains(t, s, "exfang "+version.Version)
	assert.Contains(t, s, version.BinaryGitHash)
	assert.Contains(t, s, runtime.Version())
}
