// Package buildinfo exposes build-time version information.
//
// Values are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/walletauth/internal/infra/buildinfo.Version=v1.0.0"
//
// When they are not, the module version and VCS revision recorded by the
// Go toolchain are used.
package buildinfo
