// Package version carries the build identity of the exfang binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the release of the exfang binary. Set with -ldflags at build time.
var Version = "dev"

// BinaryGitHash is the Git hash of the exfang binary which is executing.
var BinaryGitHash = "<unknown>"

// BuildDate is the build timestamp. Set with -ldflags at build time.
var BuildDate = "<unknown>"

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if BinaryGitHash == "<unknown>" {
				BinaryGitHash = setting.Value
			}
		case "vcs.time":
			if BuildDate == "<unknown>" {
				BuildDate = setting.Value
			}
		}
	}
}

// String renders the build identity on one line.
func String() string {
	return fmt.Sprintf("exfang %s (commit %s, built %s, %s)", Version, BinaryGitHash, BuildDate, runtime.Version())
}
