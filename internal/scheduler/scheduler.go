// Package scheduler drives renewd's top-level control loop: one-shot or
// daemon mode selection, the wake timer, dispatching renewal attempts,
// applying the error policy, supervising the optional child command, and
// crash-safe cleanup of temporary caches.
package scheduler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/loykin/renewd/internal/child"
	"github.com/loykin/renewd/internal/config"
	"github.com/loykin/renewd/internal/history"
	"github.com/loykin/renewd/internal/metrics"
	"github.com/loykin/renewd/internal/renew"
)

// EnvTokenProg names the post-renewal token helper program; EnvTokenProgAlt
// is honored for compatibility with older deployments.
const (
	EnvTokenProg    = "RENEWD_TOKEN_PROG"
	EnvTokenProgAlt = "TOKEN_PROG"
)

// Status is a read-only snapshot served by the HTTP status endpoint.
type Status struct {
	Cache       string    `json:"cache"`
	Principal   string    `json:"principal,omitempty"`
	Running     bool      `json:"running"`
	ChildPID    int       `json:"child_pid,omitempty"`
	Attempts    int       `json:"attempts"`
	LastOutcome string    `json:"last_outcome,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitzero"`
	NextWake    time.Time `json:"next_wake,omitzero"`
}

// Scheduler owns one run: one cache, at most one child, one control loop.
// It is single-threaded except for the status snapshot, which the HTTP
// surface reads concurrently.
type Scheduler struct {
	cfg    config.Config
	logger *slog.Logger
	engine *renew.Engine

	sink      history.Sink
	srv       *http.Server
	child     *child.Child
	tokenProg string

	// cleanCache marks the working cache as a temporary duplicate owned by
	// this run; it must not exist after exit on any path.
	cleanCache bool

	// retryBase is the first delay used when retrying a failed initial
	// attempt; it doubles up to a minute.
	retryBase time.Duration

	mu sync.Mutex
	st Status
}

// New builds a scheduler for the given configuration. The renewer is the
// credential-service boundary; production wiring passes the HTTP ticket
// service client.
func New(cfg config.Config, lg *slog.Logger, r renew.Renewer) *Scheduler {
	cfg.Normalize()
	return &Scheduler{
		cfg:       cfg,
		logger:    lg,
		retryBase: time.Second,
		engine: &renew.Engine{
			Cache:   cfg.Cache,
			Renewer: r,
			Logger:  lg,
			Verbose: cfg.Verbose,
		},
	}
}

// Snapshot implements server.StatusProvider.
func (s *Scheduler) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

func (s *Scheduler) setStatus(update func(*Status)) {
	s.mu.Lock()
	update(&s.st)
	s.mu.Unlock()
}

// attempt dispatches one renewal attempt and records its outcome in
// metrics, history, and the status snapshot.
func (s *Scheduler) attempt(ctx context.Context, prior renew.CheckStatus) renew.Result {
	start := time.Now()
	res := s.engine.Attempt(ctx, prior)
	metrics.IncAttempt(res.Outcome.String())
	metrics.ObserveAttemptDuration(time.Since(start).Seconds())
	if !res.Failed() {
		metrics.SetLastSuccess(float64(start.Unix()))
	}
	s.setStatus(func(st *Status) {
		st.Attempts++
		st.LastAttempt = start
		st.LastOutcome = res.Outcome.String()
		st.LastError = ""
		if res.Err != nil {
			st.LastError = res.Err.Error()
		}
	})
	s.record(ctx, history.Event{
		Type:    history.EventAttempt,
		Outcome: res.Outcome.String(),
		Detail:  errText(res.Err),
	})
	return res
}

func (s *Scheduler) record(ctx context.Context, e history.Event) {
	if s.sink == nil {
		return
	}
	e.OccurredAt = time.Now().UTC()
	e.Cache = s.cfg.Cache
	s.mu.Lock()
	e.Principal = s.st.Principal
	s.mu.Unlock()
	if err := s.sink.Send(ctx, e); err != nil {
		s.logger.Warn("cannot record history event", "type", e.Type, "err", err)
	}
}

// runTokenProg runs the configured post-renewal helper, if any.
func (s *Scheduler) runTokenProg() {
	if s.tokenProg == "" {
		return
	}
	code, err := child.RunHelper(s.tokenProg)
	if err != nil {
		s.logger.Warn("token helper failed", "prog", s.tokenProg, "err", err)
		return
	}
	if s.cfg.Verbose {
		s.logger.Info("token helper finished", "prog", s.tokenProg, "status", code)
	}
}

func lookupTokenProg() string {
	if p := os.Getenv(EnvTokenProg); p != "" {
		return p
	}
	return os.Getenv(EnvTokenProgAlt)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
