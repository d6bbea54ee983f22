// Package buildinfo provides build information for webhost-server.
//
// Values come from ldflags when set, otherwise from the module build
// information embedded by the Go toolchain:
//
//	go build -ldflags "-X github.com/yndnr/webhost-go/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
