package renewd

import (
	"io"
	"log/slog"
	"testing"
)

func TestOutcomeNames(t *testing.T) {
	cases := map[Outcome]string{
		Success:          "success",
		TransientFailure: "transient_failure",
		PermanentFailure: "permanent_failure",
		CacheUnavailable: "cache_unavailable",
	}
	for o, want := range cases {
		if got := o.String(); got != want {
			t.Fatalf("outcome %d: got %q, want %q", o, got, want)
		}
	}
}

func TestNewScheduler(t *testing.T) {
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(Config{ServiceURL: "http://127.0.0.1:9000"}, lg, NewHTTPRenewer("http://127.0.0.1:9000"))
	if s == nil {
		t.Fatal("New returned nil")
	}
	if s.Snapshot() == nil {
		t.Fatal("snapshot not available")
	}
}
