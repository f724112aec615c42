// Package version exposes build metadata injected at link time.
package version

import "runtime"

// Set via -ldflags at build time, e.g.
//
//	-X github.com/jackzampolin/folio/version.GitRelease=v0.2.0
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo is the Go toolchain the binary was built with.
var GoInfo = runtime.Version()
