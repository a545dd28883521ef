package child

import (
	"os"
	"os/exec"
)

// RunHelper runs the post-renewal token helper program through the shell
// and returns its exit status. The helper inherits the environment,
// including the working cache export, and renewd's stdio.
func RunHelper(prog string) (int, error) {
	// #nosec G204 -- the helper is operator-configured via environment
	cmd := exec.Command("/bin/sh", "-c", prog)
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode(), nil
	}
	return -1, err
}
