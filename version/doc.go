// Package version reports the scalestore build.
//
// Version and Commit are stamped at link time; anything left empty is read
// from the module build info:
//
//	go build -ldflags "-X github.com/kbukum/scalestore/version.Version=1.4.0" ./cmd/scalestore
package version
