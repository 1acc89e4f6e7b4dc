package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-agenda/pkg/logging"
)

func TestRateLimiterBurstThenRefill(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 1, 2)
	rl.now = func() time.Time { return now }

	allow := func(ip string) bool {
		ok, err := rl.Allow(ctx, ip)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		return ok
	}

	if !allow("1.2.3.4") || !allow("1.2.3.4") {
		t.Fatalf("expected burst of 2 to be allowed")
	}
	if allow("1.2.3.4") {
		t.Fatalf("expected third request to be limited")
	}
	if !allow("5.6.7.8") {
		t.Fatalf("expected other IPs to have their own bucket")
	}

	now = now.Add(1500 * time.Millisecond)
	if !allow("1.2.3.4") {
		t.Fatalf("expected a token after refill")
	}
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, 1)
	_, _ = rl.Allow(ctx, "1.2.3.4")
	rl.evictBefore(time.Now().Add(time.Minute))
	if len(rl.visitors) != 0 {
		t.Fatalf("expected idle visitor to be evicted")
	}
}

func TestRedisRateLimiterSharesWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first := NewRedisRateLimiter(client, "test", 1, 2)
	second := NewRedisRateLimiter(client, "test", 1, 2)
	first.now = func() time.Time { return now }
	second.now = first.now

	ctx := context.Background()
	for i, rl := range []*RedisRateLimiter{first, second} {
		ok, err := rl.Allow(ctx, "10.0.0.1")
		if err != nil || !ok {
			t.Fatalf("request %d: expected allowed, got %v (%v)", i, ok, err)
		}
	}
	if ok, _ := first.Allow(ctx, "10.0.0.1"); ok {
		t.Fatalf("expected replicas to share the budget")
	}
	keys := mr.Keys()
	if len(keys) != 1 || mr.TTL(keys[0]) != first.window {
		t.Fatalf("expected one expiring window counter, got %v", keys)
	}

	now = now.Add(first.window)
	if ok, _ := first.Allow(ctx, "10.0.0.1"); !ok {
		t.Fatalf("expected a fresh window to admit the client again")
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimitMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(NewRateLimiter(ctx, 0.001, 1), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/appointments/abc", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if rec := run(t, h, req); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	req.RemoteAddr = "10.0.0.1:6666"
	rec := run(t, h, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON error body, got %q", ct)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	logger := logging.NewWithWriter("error", io.Discard)
	h := RateLimit(failingLimiter{}, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/appointments/abc", nil)
	if rec := run(t, h, req); rec.Code != http.StatusOK {
		t.Fatalf("expected request through when the limiter fails, got %d", rec.Code)
	}
}
