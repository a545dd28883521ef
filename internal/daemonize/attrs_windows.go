//go:build windows

package daemonize

import "os/exec"

func configureSessionAttrs(_ *exec.Cmd) {}
