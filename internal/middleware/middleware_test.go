package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCallerIdentity(t *testing.T) {
	var got string
	handler := CallerIdentity(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = GetCaller(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	req.Header.Set(CallerHeader, "tz1alice")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "tz1alice" {
		t.Fatalf("caller = %q, want tz1alice", got)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/balance", nil))
	if got != UnknownCaller {
		t.Fatalf("caller without header = %q, want %q", got, UnknownCaller)
	}
}

func TestGetCallerMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if caller := GetCaller(req.Context()); caller != UnknownCaller {
		t.Fatalf("caller = %q, want %q", caller, UnknownCaller)
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(1, 2, nil)
	handler := CallerIdentity(limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	status := func(caller string) int {
		req := httptest.NewRequest(http.MethodGet, "/balance", nil)
		req.Header.Set(CallerHeader, caller)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := status("tz1alice"); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	if code := status("tz1alice"); code != http.StatusOK {
		t.Fatalf("second request status = %d", code)
	}
	if code := status("tz1alice"); code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", code)
	}

	// A different caller gets its own bucket.
	if code := status("tz1bob"); code != http.StatusOK {
		t.Fatalf("other caller status = %d", code)
	}
}
