//go:build !windows

package scheduler

import (
	"os"
	"os/signal"
	"syscall"
)

// wakeSignal forces an immediate renewal attempt when delivered.
var wakeSignal os.Signal = syscall.SIGUSR1

// notifySignals subscribes the loop's signal channel. The channel must be
// buffered; signal delivery does not block.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
}
