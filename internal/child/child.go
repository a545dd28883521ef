// Package child starts and supervises the single optional command renewd
// wraps. Exactly one wait reaps the child; the result is cached so later
// observations never block.
package child

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

// ExitStatus is the reaped outcome of the child.
type ExitStatus struct {
	Code int
	Err  error // non-exit errors from wait, nil otherwise
}

// Child is a running supervised command.
type Child struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	pid     int
	pidFile string
	exited  bool
	exit    ExitStatus
	done    chan ExitStatus
}

// Start spawns argv with the OS environment plus extraEnv (which carries
// the duplicated cache export). The child inherits stdio; it owns the
// terminal while renewd stays quiet in the background. If pidFile is not
// empty the child PID is written there before Start returns.
func Start(argv []string, extraEnv []string, pidFile string) (*Child, error) {
	if len(argv) == 0 {
		return nil, errors.New("no command to run")
	}
	// #nosec G204 -- the command is the operator-supplied trailing argv
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to run command %s: %w", argv[0], err)
	}
	c := &Child{
		cmd:     cmd,
		pid:     cmd.Process.Pid,
		pidFile: pidFile,
		done:    make(chan ExitStatus, 1),
	}
	if pidFile != "" {
		if err := WritePIDFile(pidFile, c.pid); err != nil {
			// Reported but not fatal, matching PID file handling elsewhere.
			fmt.Fprintf(os.Stderr, "cannot write child PID file %s: %v\n", pidFile, err)
		}
	}
	go c.reap()
	return c, nil
}

// reap performs the single wait call and caches its result.
func (c *Child) reap() {
	err := c.cmd.Wait()
	st := ExitStatus{}
	var ee *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &ee):
		st.Code = ee.ExitCode()
	default:
		st.Code = 1
		st.Err = err
	}
	c.mu.Lock()
	c.exited = true
	c.exit = st
	c.mu.Unlock()
	c.done <- st
}

// PID returns the child's process ID.
func (c *Child) PID() int { return c.pid }

// ExitCh delivers the exit status once, when the child is reaped.
func (c *Child) ExitCh() <-chan ExitStatus { return c.done }

// Exited returns the cached exit status if the child has been reaped.
func (c *Child) Exited() (ExitStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exit, c.exited
}

// Signal delivers sig to the child if it is still running.
func (c *Child) Signal(sig os.Signal) error {
	c.mu.Lock()
	exited := c.exited
	c.mu.Unlock()
	if exited {
		return nil
	}
	return signalProcess(c.pid, sig)
}

// RemovePIDFile deletes the child PID file, if one was written.
func (c *Child) RemovePIDFile() {
	if c.pidFile != "" {
		_ = os.Remove(c.pidFile)
	}
}

// WritePIDFile writes pid to path, newline terminated.
func WritePIDFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}
