package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, rate float64, burst int) (*RateLimiter, *time.Time) {
	t.Helper()
	rl := NewRateLimiter(rate, burst)
	t.Cleanup(rl.Stop)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	rl, now := newTestLimiter(t, 1, 2)

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("burst should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("expected limit after burst")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("other clients keep their own bucket")
	}

	*now = now.Add(1500 * time.Millisecond)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("expected a token after refill")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("only one token should have refilled")
	}
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	rl, now := newTestLimiter(t, 1, 1)
	rl.Allow("10.0.0.1")

	*now = now.Add(rateLimitIdleAfter + time.Second)
	rl.evictIdle()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.buckets) != 0 {
		t.Fatalf("expected idle bucket evicted, have %d", len(rl.buckets))
	}
}

func TestRateLimitMiddlewareKeysByHost(t *testing.T) {
	rl, _ := newTestLimiter(t, 0, 1)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payos", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("203.0.113.7:5000"); code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", code)
	}
	// A new source port is the same client.
	if code := send("203.0.113.7:5001"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("198.51.100.2:5000"); code != http.StatusOK {
		t.Fatalf("expected other host allowed, got %d", code)
	}
}

func TestClientIPPrefersRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	if got := clientIP(req); got != "10.0.0.9" {
		t.Fatalf("expected host only, got %q", got)
	}
	req.Header.Set("X-Real-Ip", "203.0.113.5")
	if got := clientIP(req); got != "203.0.113.5" {
		t.Fatalf("expected real ip, got %q", got)
	}
}

func TestRateLimiterStopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Stop()
	rl.Stop()
}
