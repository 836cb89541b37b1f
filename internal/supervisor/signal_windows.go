//go:build windows

package supervisor

import (
	"errors"
	"os"
	"syscall"
)

// terminate kills the child outright. Windows has no graceful process
// signal to send.
func terminate(p *os.Process) error {
	return p.Kill()
}

// isAddrInUse reports whether a listen failure means the address already
// has a listener. Winsock surfaces this as WSAEADDRINUSE.
func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE) || errors.Is(err, syscall.WSAEADDRINUSE)
}
