//go:build windows

package child

import (
	"os"
)

func signalProcess(pid int, _ os.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
