// Package version holds build information injected at link time.
//
//	go build -ldflags "-X github.com/kubestellar/deploy-launcher/internal/version.GitCommit=$(git rev-parse --short HEAD)"
package version

var (
	// Version is the released version of deploy-launcher
	Version = "dev"
	// GitCommit is the commit the binary was built from
	GitCommit = "unknown"
	// BuildDate is the RFC3339 build timestamp
	BuildDate = "unknown"
)
