// Package daemonize detaches renewd from its controlling terminal. Go
// cannot fork and continue in the child, so detachment re-executes the
// current binary in a new session with the original arguments and an
// environment marker; the original process then exits 0 so the invoking
// shell returns immediately.
//
// Ordering contract: Reexec must run before any wake timer is armed, so no
// timer fires between detachment steps.
package daemonize

import (
	"fmt"
	"os"
	"os/exec"
)

const envMarker = "RENEWD_DAEMON"

// Active reports whether this process is the detached copy.
func Active() bool { return os.Getenv(envMarker) == "1" }

// Options controls which detachment steps are skipped.
type Options struct {
	SkipChdir        bool // keep the working directory instead of /
	SkipCloseStreams bool // keep stdio instead of the null device
}

// Reexec spawns the detached copy and returns its PID. Each step that can
// fail returns immediately without attempting further steps; on success the
// caller is expected to exit 0.
func Reexec(opts Options) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("cannot locate executable: %w", err)
	}
	// #nosec G204 -- re-executing ourselves with our own arguments
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), envMarker+"=1")
	if !opts.SkipChdir {
		// Run from / so the daemon does not hold a mount busy.
		cmd.Dir = "/"
	}
	if !opts.SkipCloseStreams {
		devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if err != nil {
			return 0, fmt.Errorf("cannot open %s: %w", os.DevNull, err)
		}
		defer func() { _ = devnull.Close() }()
		cmd.Stdin = devnull
		cmd.Stdout = devnull
		cmd.Stderr = devnull
	} else {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	configureSessionAttrs(cmd)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("cannot background: %w", err)
	}
	return cmd.Process.Pid, nil
}
