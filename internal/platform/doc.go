// Package platform maps the running OS and CPU architecture to the
// maple-proxy release artifact published for it.
//
// Resolution is a pure function of runtime.GOOS and runtime.GOARCH. The
// supported set is a fixed enumeration; anything outside it is a fatal
// configuration error with no degraded mode. The package also provides
// best-effort host details (Linux distribution, version) via gopsutil for
// startup diagnostics.
package platform
