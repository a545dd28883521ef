package scheduler

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/renewd/internal/child"
	"github.com/loykin/renewd/internal/creds"
	"github.com/loykin/renewd/internal/daemonize"
	"github.com/loykin/renewd/internal/history"
	"github.com/loykin/renewd/internal/history/factory"
	"github.com/loykin/renewd/internal/metrics"
	"github.com/loykin/renewd/internal/renew"
	"github.com/loykin/renewd/internal/server"
)

// Run executes the whole lifecycle and returns the process exit status:
// 0 for a clean shutdown or child success, 1 for renewal or setup failure
// under the active error policy, otherwise the supervised child's own exit
// code.
func (s *Scheduler) Run(ctx context.Context) int {
	if s.cfg.RunTokenProg {
		s.tokenProg = lookupTokenProg()
		if s.tokenProg == "" {
			s.logger.Error("set " + EnvTokenProg + " to specify the token helper program")
			return 1
		}
	}

	// Resolve the working cache; duplicate it into an isolated temporary
	// cache when a child command is supervised.
	origEnvCache := os.Getenv(creds.EnvCache)
	cache, err := creds.Resolve(s.cfg.Cache)
	if err != nil {
		s.logger.Error("error opening ticket cache", "err", err)
		return 1
	}
	name := cache.Name()
	if len(s.cfg.Command) > 0 {
		dupName, dup, err := cache.Copy()
		if err != nil {
			_ = cache.Close()
			s.logger.Error("error copying ticket cache", "err", err)
			return 1
		}
		name = dupName
		cache = dup
		s.cleanCache = true
	}
	principal, _ := cache.Principal()
	if err := cache.Close(); err != nil {
		s.logger.Warn("error closing ticket cache", "err", err)
	}
	s.cfg.Cache = name
	s.engine.Cache = name
	// Export the working cache so the token helper and any child tools
	// locate it.
	if err := os.Setenv(creds.EnvCache, name); err != nil {
		s.logger.Error("cannot set "+creds.EnvCache, "err", err)
		return s.cleanup(1, false)
	}
	s.setStatus(func(st *Status) {
		st.Cache = name
		st.Principal = principal
		st.Running = true
	})

	// Initial attempt, while standard error is still attached. With a
	// happy-ticket threshold the attempt is skipped when the existing
	// ticket outlives it.
	status := 0
	var res renew.Result
	if s.cfg.Happy > 0 {
		st, _ := renew.Check(name, s.cfg.Interval, s.cfg.Happy)
		if st == renew.CheckOK {
			res = renew.Result{Outcome: renew.Success}
		} else {
			res = s.attempt(ctx, st)
		}
	} else {
		res = s.attempt(ctx, renew.CheckExpiring)
	}
	if res.Failed() {
		status = 1
		if !s.cfg.IgnoreErrors {
			return s.cleanup(status, false)
		}
	} else if s.cfg.RunTokenProg {
		s.runTokenProg()
	}

	// One-shot mode: no interval and no command means we are done.
	if s.cfg.Interval == 0 && len(s.cfg.Command) == 0 {
		return s.cleanup(status, false)
	}

	// Detach before any timer is armed. The original process hands the run
	// to the re-executed copy, which resolves and duplicates the cache
	// again on its own, so ours is removed first.
	if s.cfg.Background && !daemonize.Active() {
		if s.cleanCache {
			if err := creds.DestroyByName(name); err != nil {
				s.logger.Warn("cannot destroy ticket cache", "err", err)
			}
		}
		restoreEnvCache(origEnvCache)
		pid, err := daemonize.Reexec(daemonize.Options{})
		if err != nil {
			s.logger.Error("cannot background", "err", err)
			return 1
		}
		s.logger.Debug("running detached", "pid", pid)
		return 0
	}
	if s.cfg.PIDFile != "" {
		if err := child.WritePIDFile(s.cfg.PIDFile, os.Getpid()); err != nil {
			s.logger.Warn("cannot write PID file", "path", s.cfg.PIDFile, "err", err)
		}
	}

	// Observability surfaces live in the (possibly detached) daemon only.
	if s.cfg.HistoryDSN != "" {
		sink, err := factory.NewSinkFromDSN(s.cfg.HistoryDSN)
		if err != nil {
			s.logger.Warn("cannot open history sink", "dsn", s.cfg.HistoryDSN, "err", err)
		} else {
			s.sink = sink
		}
	}
	if s.cfg.Listen != "" {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			s.logger.Warn("cannot register metrics", "err", err)
		}
		s.srv = server.NewServer(s.cfg.Listen, s)
	}

	// Under ignore-errors, keep retrying the initial attempt so a child is
	// never started without valid credentials.
	if res.Failed() {
		var ok bool
		res, ok = s.retryInitial(ctx)
		if !ok {
			return s.cleanup(1, false)
		}
		status = 0
		if s.cfg.RunTokenProg {
			s.runTokenProg()
		}
	}

	// Spawn the supervised command, then enter the wake loop.
	if len(s.cfg.Command) > 0 {
		ch, err := child.Start(s.cfg.Command, []string{creds.EnvCache + "=" + name}, s.cfg.ChildPIDFile)
		if err != nil {
			s.logger.Error("unable to run command", "command", s.cfg.Command[0], "err", err)
			return s.cleanup(1, false)
		}
		s.child = ch
		s.setStatus(func(st *Status) { st.ChildPID = ch.PID() })
		s.logger.Debug("command started", "command", s.cfg.Command[0], "pid", ch.PID())
	}

	return s.runLoop(ctx, status, !res.Failed())
}

// retryInitial retries a failed initial attempt with exponential backoff
// (1s doubling, capped at a minute) until it succeeds or the context ends.
func (s *Scheduler) retryInitial(ctx context.Context) (renew.Result, bool) {
	delay := s.retryBase
	for {
		select {
		case <-ctx.Done():
			return renew.Result{}, false
		case <-time.After(delay):
		}
		delay = nextRetryDelay(delay)
		res := s.attempt(ctx, renew.CheckExpiring)
		if !res.Failed() {
			return res, true
		}
	}
}

// nextRetryDelay doubles the retry delay up to a one minute cap.
func nextRetryDelay(d time.Duration) time.Duration {
	return min(2*d, 60*time.Second)
}

// runLoop is the daemon's single suspension point: it wakes on whichever of
// {interval timer, child exit, signal} occurs first and dispatches at most
// one renewal attempt per wake.
func (s *Scheduler) runLoop(ctx context.Context, status int, lastOK bool) int {
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer signal.Stop(sigCh)

	var childCh <-chan child.ExitStatus
	if s.child != nil {
		childCh = s.child.ExitCh()
	}

	timer := time.NewTimer(s.waitFor(lastOK))
	defer timer.Stop()
	s.noteNextWake(s.waitFor(lastOK))

	for {
		renewNow := false
		select {
		case <-ctx.Done():
			return s.cleanup(status, false)

		case st := <-childCh:
			// The run ends with the child, whatever the renewal state.
			// A clean child exit is not abnormal, so no hang-up signal.
			metrics.IncChildExit(st.Code == 0 && st.Err == nil)
			s.record(ctx, history.Event{Type: history.EventChildExit, Outcome: exitOutcome(st), Detail: errText(st.Err)})
			if st.Err != nil {
				s.logger.Warn("wait for command failed", "err", st.Err)
			}
			final := st.Code
			if final == 0 {
				final = status
			}
			return s.cleanup(final, true)

		case sig := <-sigCh:
			if sig == wakeSignal {
				s.logger.Debug("received wake signal, renewing now")
				renewNow = true
				break
			}
			if s.child != nil {
				// The child owns shutdown semantics while it runs; pass
				// the signal through and keep waiting for its exit.
				_ = s.child.Signal(sig)
				continue
			}
			return s.cleanup(0, false)

		case <-timer.C:
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}

		st, _ := renew.Check(s.cfg.Cache, s.cfg.Interval, s.cfg.Happy)
		s.observeRemaining()
		lastOK = true
		if renewNow || s.cfg.AlwaysRenew || st != renew.CheckOK {
			res := s.attempt(ctx, st)
			if res.Failed() {
				status = 1
				lastOK = false
				if s.cfg.ExitOnError {
					return s.cleanup(1, false)
				}
				if res.Outcome != renew.TransientFailure && !s.cfg.IgnoreErrors {
					return s.cleanup(1, false)
				}
			} else {
				status = 0
				if s.cfg.RunTokenProg {
					s.runTokenProg()
				}
			}
		}

		wait := s.waitFor(lastOK)
		timer.Reset(wait)
		s.noteNextWake(wait)
	}
}

// cleanup releases everything the run owns and returns the final status.
// childExited distinguishes the child's own exit from an abnormal end; only
// the latter signals a still-running child.
func (s *Scheduler) cleanup(status int, childExited bool) int {
	if s.child != nil && !childExited && status != 0 && s.cfg.SignalChild {
		if err := s.child.Signal(syscall.SIGHUP); err != nil {
			s.logger.Warn("cannot signal command", "err", err)
		}
	}
	if s.cleanCache {
		if err := creds.DestroyByName(s.cfg.Cache); err != nil {
			s.logger.Warn("cannot destroy ticket cache", "err", err)
		}
	}
	if s.cfg.PIDFile != "" {
		_ = os.Remove(s.cfg.PIDFile)
	}
	if s.child != nil {
		s.child.RemovePIDFile()
	}
	if s.srv != nil {
		_ = s.srv.Close()
	}
	if s.sink != nil {
		_ = s.sink.Close()
	}
	s.setStatus(func(st *Status) { st.Running = false })
	return status
}

func (s *Scheduler) waitFor(lastOK bool) time.Duration {
	if lastOK {
		return s.cfg.Interval
	}
	return s.cfg.RetryWait
}

func (s *Scheduler) noteNextWake(wait time.Duration) {
	next := time.Now().Add(wait)
	s.setStatus(func(st *Status) { st.NextWake = next })
}

// observeRemaining exports the primary ticket's remaining lifetime.
func (s *Scheduler) observeRemaining() {
	c, err := creds.Resolve(s.cfg.Cache)
	if err != nil {
		return
	}
	defer func() { _ = c.Close() }()
	cr, err := c.Primary()
	if err != nil {
		return
	}
	metrics.SetTicketRemaining(cr.Remaining(time.Now()).Seconds())
}

func exitOutcome(st child.ExitStatus) string {
	if st.Code == 0 && st.Err == nil {
		return "clean"
	}
	return "nonzero"
}

func restoreEnvCache(orig string) {
	if orig == "" {
		_ = os.Unsetenv(creds.EnvCache)
		return
	}
	_ = os.Setenv(creds.EnvCache, orig)
}
