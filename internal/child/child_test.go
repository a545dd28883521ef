package child

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a unix shell")
	}
}

func TestStartReportsExitCode(t *testing.T) {
	requireUnix(t)
	c, err := Start([]string{"/bin/sh", "-c", "exit 2"}, nil, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case st := <-c.ExitCh():
		if st.Code != 2 || st.Err != nil {
			t.Fatalf("exit status: %+v", st)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}
	st, ok := c.Exited()
	if !ok || st.Code != 2 {
		t.Fatalf("cached exit status: %+v ok=%v", st, ok)
	}
}

func TestStartPassesExtraEnv(t *testing.T) {
	requireUnix(t)
	out := filepath.Join(t.TempDir(), "env")
	c, err := Start(
		[]string{"/bin/sh", "-c", "printf %s \"$RENEWD_CCACHE\" > " + out},
		[]string{"RENEWD_CCACHE=/tmp/renewd_cc_test"},
		"",
	)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-c.ExitCh()
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read env capture: %v", err)
	}
	if got := strings.TrimSpace(string(b)); got != "/tmp/renewd_cc_test" {
		t.Fatalf("child environment: %q", got)
	}
}

func TestStartWritesAndRemovesPIDFile(t *testing.T) {
	requireUnix(t)
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	c, err := Start([]string{"/bin/sh", "-c", "sleep 5"}, nil, pidFile)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = c.Signal(syscall.SIGKILL) }()
	b, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read PID file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid != c.PID() {
		t.Fatalf("PID file contents %q, child pid %d", b, c.PID())
	}
	c.RemovePIDFile()
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Fatalf("PID file still present: %v", err)
	}
}

func TestSignalTerminatesChild(t *testing.T) {
	requireUnix(t)
	c, err := Start([]string{"/bin/sh", "-c", "sleep 30"}, nil, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	select {
	case <-c.ExitCh():
	case <-time.After(5 * time.Second):
		t.Fatal("child survived SIGTERM")
	}
	// Signalling after exit is a no-op.
	if err := c.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal after exit: %v", err)
	}
}

func TestStartRejectsEmptyCommand(t *testing.T) {
	if _, err := Start(nil, nil, ""); err == nil {
		t.Fatal("Start accepted an empty argv")
	}
}

func TestRunHelper(t *testing.T) {
	requireUnix(t)
	code, err := RunHelper("exit 3")
	if err != nil || code != 3 {
		t.Fatalf("helper exit: got %d (%v), want 3", code, err)
	}
	code, err = RunHelper("true")
	if err != nil || code != 0 {
		t.Fatalf("helper exit: got %d (%v), want 0", code, err)
	}
}
