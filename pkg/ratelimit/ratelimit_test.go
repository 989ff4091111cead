package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiter_Window(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	base := time.Now()
	l.now = func() time.Time { return base }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		if err != nil || !ok {
			t.Fatalf("Request %d rejected: ok=%v err=%v", i+1, ok, err)
		}
	}
	if ok, _ := l.Allow(ctx, "10.0.0.1"); ok {
		t.Error("Request past the limit must be rejected")
	}

	// A different client has its own window.
	if ok, _ := l.Allow(ctx, "10.0.0.2"); !ok {
		t.Error("Independent client must not share the window")
	}

	// The window resets after the period.
	l.now = func() time.Time { return base.Add(2 * time.Minute) }
	if ok, _ := l.Allow(ctx, "10.0.0.1"); !ok {
		t.Error("Expired window must reset the counter")
	}
}

func TestRedisLimiter_Window(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLimiter(client, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !ok {
			t.Fatalf("Request %d rejected", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, "10.0.0.1"); ok {
		t.Error("Request past the limit must be rejected")
	}

	// Advancing the clock past the window resets the counter.
	mr.FastForward(2 * time.Minute)
	if ok, err := l.Allow(ctx, "10.0.0.1"); err != nil || !ok {
		t.Errorf("Expired window must reset: ok=%v err=%v", ok, err)
	}
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	l := NewRedisLimiter(client, 3, time.Minute)
	ok, err := l.Allow(context.Background(), "10.0.0.1")
	if err == nil {
		t.Error("Expected an error with Redis down")
	}
	if !ok {
		t.Error("Limiter must fail open when Redis is unreachable")
	}
}
