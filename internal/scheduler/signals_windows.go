//go:build windows

package scheduler

import (
	"os"
	"os/signal"
)

// No per-signal wake facility on Windows; only interrupt is observed.
var wakeSignal os.Signal

func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
