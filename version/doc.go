// Package version reports the build identity of a resilkit binary.
//
// Version and BuildTime are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/resilkit/version.Version=1.2.0"
//
// The VCS revision and dirty flag come from the module build info.
package version
