package server

import (
	"testing"
	"time"
)

func TestRateLimiter_FixedWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(2, time.Minute, func() time.Time { return now })

	if !limiter.allow("user-1") || !limiter.allow("user-1") {
		t.Fatal("expected first two requests to pass")
	}
	if limiter.allow("user-1") {
		t.Fatal("expected third request in window to be rejected")
	}
	// Other keys have their own budget.
	if !limiter.allow("user-2") {
		t.Fatal("expected separate key to pass")
	}

	now = now.Add(time.Minute)
	if !limiter.allow("user-1") {
		t.Fatal("expected budget to reset after the window")
	}
}

func TestRateLimiter_ZeroLimitDisables(t *testing.T) {
	t.Parallel()

	limiter := newRateLimiter(0, time.Minute, nil)
	for i := 0; i < 10; i++ {
		if !limiter.allow("user-1") {
			t.Fatal("expected zero limit to disable enforcement")
		}
	}
}
