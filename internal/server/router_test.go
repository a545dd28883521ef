package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stubStatus struct {
	snapshot any
}

func (s *stubStatus) Snapshot() any { return s.snapshot }

func TestRouterHealthz(t *testing.T) {
	h := NewRouter(&stubStatus{}).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var resp okResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK {
		t.Fatal("healthz reported not ok")
	}
}

func TestRouterStatus(t *testing.T) {
	snap := map[string]any{"principal": "alice@EXAMPLE.ORG", "running": true}
	h := NewRouter(&stubStatus{snapshot: snap}).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["principal"] != "alice@EXAMPLE.ORG" || got["running"] != true {
		t.Fatalf("snapshot: %+v", got)
	}
}

func TestRouterMetrics(t *testing.T) {
	h := NewRouter(&stubStatus{}).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics body missing default collectors: %.120s", rec.Body.String())
	}
}

func TestRouterUnknownPath(t *testing.T) {
	h := NewRouter(&stubStatus{}).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: %d", rec.Code)
	}
}
