//go:build !windows

package child

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr puts the child in its own process group so signals
// aimed at it do not bounce back at the supervisor.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
