//go:build !windows

package daemonize

import (
	"os/exec"
	"syscall"
)

// configureSessionAttrs makes the detached copy a session leader, removing
// any controlling terminal.
func configureSessionAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
