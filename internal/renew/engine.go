package renew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loykin/renewd/internal/creds"
)

// ErrNotRenewable is returned by a Renewer when the credential's renewable
// lifetime is exhausted. The engine classifies it as PermanentFailure.
var ErrNotRenewable = errors.New("credentials cannot be renewed for long enough")

// Renewer is the credential-service boundary: it exchanges a still-valid
// credential for a renewed one, without re-authentication.
type Renewer interface {
	Renew(ctx context.Context, principal string, current creds.Credential) (creds.Credential, error)
}

// Engine performs one renewal attempt against a named cache.
type Engine struct {
	Cache   string
	Renewer Renewer
	Logger  *slog.Logger
	Verbose bool
}

// Attempt runs one renewal cycle. prior is the check status carried over
// from the previous cycle; a non-retryable prior state short-circuits
// without touching the cache and lets the caller's error policy decide.
func (e *Engine) Attempt(ctx context.Context, prior CheckStatus) Result {
	switch prior {
	case CheckNotRenewable:
		e.Logger.Warn("ticket cannot be renewed for long enough")
		return Result{Outcome: PermanentFailure, Err: ErrNotRenewable}
	case CheckUnavailable:
		e.Logger.Warn("error reading ticket cache")
		return Result{Outcome: CacheUnavailable, Err: creds.ErrCacheUnavailable}
	}

	cache, err := creds.Resolve(e.Cache)
	if err != nil {
		e.Logger.Warn("error opening ticket cache", "cache", e.Cache, "err", err)
		return Result{Outcome: CacheUnavailable, Err: err}
	}
	// The handle is released on every branch below, exactly once.
	open := true
	closeCache := func() {
		if open {
			open = false
			_ = cache.Close()
		}
	}
	defer closeCache()

	principal, err := cache.Principal()
	if err != nil {
		e.Logger.Warn("error reading ticket cache", "cache", e.Cache, "err", err)
		return Result{Outcome: CacheUnavailable, Err: err}
	}
	current, err := cache.Primary()
	if err != nil {
		e.Logger.Warn("error reading ticket cache", "cache", e.Cache, "err", err)
		return Result{Outcome: CacheUnavailable, Err: err}
	}
	if e.Verbose {
		e.Logger.Info("renewing credentials", "principal", principal)
	}

	renewed, err := e.Renewer.Renew(ctx, principal, current)
	if err != nil {
		if errors.Is(err, ErrNotRenewable) {
			e.Logger.Warn("ticket cannot be renewed for long enough", "principal", principal)
			return Result{Outcome: PermanentFailure, Err: err}
		}
		e.Logger.Warn("error renewing credentials", "principal", principal, "err", err)
		return Result{Outcome: TransientFailure, Err: err}
	}
	if renewed.Principal != principal {
		err := fmt.Errorf("renewed credentials are for %q, cache belongs to %q", renewed.Principal, principal)
		e.Logger.Warn("identity mismatch after renewal", "err", err)
		return Result{Outcome: PermanentFailure, Err: err}
	}

	// Reinitializing truncates the cache before the renewed credential is
	// stored, so there is a brief window with no valid credentials. A
	// storage failure past this point is the one genuinely destructive
	// transient failure.
	if err := cache.Initialize(principal); err != nil {
		e.Logger.Warn("error reinitializing cache", "cache", e.Cache, "err", err)
		return Result{Outcome: TransientFailure, Err: err}
	}
	if err := cache.Store(renewed); err != nil {
		e.Logger.Warn("error storing credentials", "cache", e.Cache, "err", err)
		return Result{Outcome: TransientFailure, Err: err}
	}
	closeCache()
	return Result{Outcome: Success}
}
