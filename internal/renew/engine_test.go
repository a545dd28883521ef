package renew

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loykin/renewd/internal/creds"
)

// fakeRenewer scripts one response per call and counts calls.
type fakeRenewer struct {
	calls int
	renew func(call int, principal string, current creds.Credential) (creds.Credential, error)
}

func (f *fakeRenewer) Renew(_ context.Context, principal string, current creds.Credential) (creds.Credential, error) {
	f.calls++
	return f.renew(f.calls, principal, current)
}

func renewedCopy(current creds.Credential) creds.Credential {
	out := current
	out.IssuedAt = time.Now()
	out.ExpiresAt = time.Now().Add(time.Hour)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(cache string, r Renewer) *Engine {
	return &Engine{Cache: cache, Renewer: r, Logger: discardLogger()}
}

func TestAttemptSuccessReplacesCredential(t *testing.T) {
	name := writeCache(t, time.Minute, 24*time.Hour)
	fr := &fakeRenewer{renew: func(_ int, _ string, cur creds.Credential) (creds.Credential, error) {
		return renewedCopy(cur), nil
	}}
	res := newEngine(name, fr).Attempt(context.Background(), CheckExpiring)
	if res.Outcome != Success || res.Err != nil {
		t.Fatalf("Attempt: got %v (%v), want success", res.Outcome, res.Err)
	}
	if fr.calls != 1 {
		t.Fatalf("renewer calls: got %d, want 1", fr.calls)
	}
	c, err := creds.Resolve(name)
	if err != nil {
		t.Fatalf("Resolve after renewal: %v", err)
	}
	defer func() { _ = c.Close() }()
	cr, err := c.Primary()
	if err != nil {
		t.Fatalf("Primary after renewal: %v", err)
	}
	if cr.Principal != "alice@EXAMPLE.ORG" {
		t.Fatalf("principal changed: %q", cr.Principal)
	}
	if !cr.ExpiresAt.After(time.Now().Add(30 * time.Minute)) {
		t.Fatalf("credential was not replaced, expires %v", cr.ExpiresAt)
	}
}

func TestAttemptRenewerErrorIsTransient(t *testing.T) {
	name := writeCache(t, time.Minute, 24*time.Hour)
	boom := errors.New("service unreachable")
	fr := &fakeRenewer{renew: func(int, string, creds.Credential) (creds.Credential, error) {
		return creds.Credential{}, boom
	}}
	res := newEngine(name, fr).Attempt(context.Background(), CheckExpiring)
	if res.Outcome != TransientFailure {
		t.Fatalf("outcome: got %v, want transient_failure", res.Outcome)
	}
	if !errors.Is(res.Err, boom) {
		t.Fatalf("error not preserved: %v", res.Err)
	}
}

func TestAttemptNotRenewableIsPermanent(t *testing.T) {
	name := writeCache(t, time.Minute, 24*time.Hour)
	fr := &fakeRenewer{renew: func(int, string, creds.Credential) (creds.Credential, error) {
		return creds.Credential{}, ErrNotRenewable
	}}
	res := newEngine(name, fr).Attempt(context.Background(), CheckExpiring)
	if res.Outcome != PermanentFailure {
		t.Fatalf("outcome: got %v, want permanent_failure", res.Outcome)
	}
}

func TestAttemptPriorStatusShortCircuits(t *testing.T) {
	name := writeCache(t, time.Minute, 24*time.Hour)
	fr := &fakeRenewer{renew: func(int, string, creds.Credential) (creds.Credential, error) {
		t.Fatal("renewer called despite prior status")
		return creds.Credential{}, nil
	}}
	e := newEngine(name, fr)
	if res := e.Attempt(context.Background(), CheckNotRenewable); res.Outcome != PermanentFailure {
		t.Fatalf("prior not_renewable: got %v, want permanent_failure", res.Outcome)
	}
	res := e.Attempt(context.Background(), CheckUnavailable)
	if res.Outcome != CacheUnavailable {
		t.Fatalf("prior unavailable: got %v, want cache_unavailable", res.Outcome)
	}
	if !errors.Is(res.Err, creds.ErrCacheUnavailable) {
		t.Fatalf("error: got %v, want ErrCacheUnavailable", res.Err)
	}
	if fr.calls != 0 {
		t.Fatalf("renewer calls: got %d, want 0", fr.calls)
	}
}

func TestAttemptMissingCacheIsUnavailable(t *testing.T) {
	fr := &fakeRenewer{renew: func(int, string, creds.Credential) (creds.Credential, error) {
		return creds.Credential{}, nil
	}}
	res := newEngine("/nonexistent/renewd-test-cc", fr).Attempt(context.Background(), CheckExpiring)
	if res.Outcome != CacheUnavailable {
		t.Fatalf("outcome: got %v, want cache_unavailable", res.Outcome)
	}
	if fr.calls != 0 {
		t.Fatalf("renewer calls: got %d, want 0", fr.calls)
	}
}

func TestAttemptIdentityMismatchIsPermanent(t *testing.T) {
	name := writeCache(t, time.Minute, 24*time.Hour)
	fr := &fakeRenewer{renew: func(_ int, _ string, cur creds.Credential) (creds.Credential, error) {
		out := renewedCopy(cur)
		out.Principal = "mallory@EXAMPLE.ORG"
		return out, nil
	}}
	res := newEngine(name, fr).Attempt(context.Background(), CheckExpiring)
	if res.Outcome != PermanentFailure {
		t.Fatalf("outcome: got %v, want permanent_failure", res.Outcome)
	}
	// The cache must be untouched on a mismatch.
	c, err := creds.Resolve(name)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	defer func() { _ = c.Close() }()
	cr, err := c.Primary()
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	if cr.Principal != "alice@EXAMPLE.ORG" {
		t.Fatalf("cache corrupted by rejected renewal: %q", cr.Principal)
	}
}
