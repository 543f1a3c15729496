package version

import (
	"runtime"
	"time"
)

var (
	Version   = "dev"                           // ex: v0.1.0
	Commit    = "none"                          // ex: abcd123
	BuildDate = time.Now().Format(time.RFC3339) // ex: 2026-10-18T09:12:00Z
	GoVersion = runtime.Version()               // go version
)

// UserAgent identifies pimon components in outgoing requests.
func UserAgent(component string) string {
	return "pimon-" + component + "/" + Version
}
