package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterRefills(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{Burst: 2, PerSecond: 1, Now: func() time.Time { return now }})

	for i := 0; i < 2; i++ {
		if ok, _, _ := l.take("a", now); !ok {
			t.Fatalf("request %d should pass", i)
		}
	}
	ok, _, retry := l.take("a", now)
	if ok {
		t.Fatal("third request should be limited")
	}
	if retry != time.Second {
		t.Errorf("retry = %v, want 1s", retry)
	}
	if ok, _, _ := l.take("b", now); !ok {
		t.Error("other clients have their own bucket")
	}
	if ok, _, _ := l.take("a", now.Add(time.Second)); !ok {
		t.Error("bucket should refill after a second")
	}
}

func TestLimiterSweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{Burst: 1, PerSecond: 1, SweepInterval: time.Minute, IdleTTL: time.Minute, Now: func() time.Time { return now }})

	l.take("a", now)
	l.take("b", now.Add(2*time.Minute))

	if _, ok := l.buckets["a"]; ok {
		t.Error("idle bucket should have been swept")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimit(RateLimitConfig{Burst: 1, PerSecond: 0.5})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/power/reboot", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/power/reboot", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
}
