//go:build !windows

package child

import (
	"fmt"
	"os"
	"syscall"
)

// signalProcess sends a signal to a Unix process.
func signalProcess(pid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unsupported signal %v", sig)
	}
	return syscall.Kill(pid, s)
}
