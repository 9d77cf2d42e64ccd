// Package version holds build metadata of the proxy binary, injected via ldflags:
//
//	-X github.com/kailas-cloud/rerank-proxy/internal/version.Version=v1.2.3
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
