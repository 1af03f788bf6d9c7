package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func TestInMemoryRateLimiter_AllowsUpToLimit(t *testing.T) {
	limiter := NewInMemoryRateLimiter(RateLimitConfig{Requests: 2, Window: time.Minute})

	allowed, remaining, limit, _, err := limiter.Allow(context.Background(), "k1")
	if err != nil || !allowed || remaining != 1 || limit != 2 {
		t.Fatalf("first request: allowed=%v remaining=%d limit=%d err=%v", allowed, remaining, limit, err)
	}

	allowed, remaining, _, _, err = limiter.Allow(context.Background(), "k1")
	if err != nil || !allowed || remaining != 0 {
		t.Fatalf("second request: allowed=%v remaining=%d err=%v", allowed, remaining, err)
	}

	allowed, _, _, _, err = limiter.Allow(context.Background(), "k1")
	if err != nil || allowed {
		t.Fatalf("third request should be rejected, got allowed=%v err=%v", allowed, err)
	}
}

func TestInMemoryRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewInMemoryRateLimiter(RateLimitConfig{Requests: 1, Window: time.Minute})

	if allowed, _, _, _, _ := limiter.Allow(context.Background(), "a"); !allowed {
		t.Fatal("expected key a's first request to be allowed")
	}
	if allowed, _, _, _, _ := limiter.Allow(context.Background(), "b"); !allowed {
		t.Fatal("expected key b's first request to be allowed independently of key a")
	}
	if allowed, _, _, _, _ := limiter.Allow(context.Background(), "a"); allowed {
		t.Fatal("expected key a's second request to be rejected")
	}
}

func TestInMemoryRateLimiter_ResetsAfterWindow(t *testing.T) {
	limiter := NewInMemoryRateLimiter(RateLimitConfig{Requests: 1, Window: 10 * time.Millisecond})

	if allowed, _, _, _, _ := limiter.Allow(context.Background(), "k1"); !allowed {
		t.Fatal("expected first request to be allowed")
	}
	if allowed, _, _, _, _ := limiter.Allow(context.Background(), "k1"); allowed {
		t.Fatal("expected second request within the window to be rejected")
	}

	time.Sleep(15 * time.Millisecond)

	if allowed, _, _, _, _ := limiter.Allow(context.Background(), "k1"); !allowed {
		t.Fatal("expected request after window expiry to be allowed again")
	}
}

func TestDefaultKeyFunc_UsesRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	if got := DefaultKeyFunc(req); got != "10.0.0.1:1234" {
		t.Fatalf("expected remote addr as key, got %q", got)
	}
}
