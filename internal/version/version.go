package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// Name of the application
	AppName = "VaultSync"

	// Version of the application, overridable with ldflags
	Version = "0.3.0-dev"

	// Git commit hash of the application
	Revision = "HEAD"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return
	}

	if Version == "0.3.0-dev" || Version == "" {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			Version = strings.TrimPrefix(v, "v")
		}
	}

	if Revision == "HEAD" || Revision == "" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				Revision = s.Value
			}
			if s.Key == "vcs.modified" && s.Value == "true" {
				Revision += "-dirty"
			}
		}
	}
}

// Detailed returns a human readable version string with revision and platform.
func Detailed() string {
	rev := Revision
	if len(rev) > 8 {
		rev = rev[:8]
	}
	return fmt.Sprintf("%s (%s; %s/%s; %s)", Version, rev, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
