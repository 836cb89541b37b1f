//go:build !windows

package supervisor

import (
	"errors"
	"os"
	"syscall"
)

// terminate asks the child to shut down gracefully.
func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}

// isAddrInUse reports whether a listen failure means the address already
// has a listener, as opposed to e.g. a permission error.
func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
