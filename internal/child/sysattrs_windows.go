//go:build windows

package child

import "os/exec"

func configureSysProcAttr(_ *exec.Cmd) {}
