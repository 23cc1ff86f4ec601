// Package version holds build-time version metadata, injected via
// `-ldflags "-X github.com/fancai/orchestrator/internal/version.GitRelease=..."`.
package version

import "runtime"

// These are overridden at build time via -ldflags; the zero values below
// are what a `go run`/`go test` invocation sees.
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo reports the Go toolchain version used to build the binary.
var GoInfo = runtime.Version()
