package mq

import (
	"context"
	"testing"
	"time"
)

func TestTokenLimiterBoundsConcurrency(t *testing.T) {
	t.Parallel()
	limiter := NewTokenLimiter(2)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := limiter.Acquire(ctx); err == nil {
		t.Fatalf("expected acquire to block at capacity")
	}

	limiter.Release()
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestTokenLimiterReleaseWithoutAcquire(t *testing.T) {
	t.Parallel()
	limiter := NewTokenLimiter(1)
	// A redundant release must not grow capacity past the fixed size.
	limiter.Release()
	limiter.Release()

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := limiter.Acquire(ctx); err == nil {
		t.Fatalf("capacity grew past fixed size")
	}
}

func TestTokenLimiterMinimumSize(t *testing.T) {
	t.Parallel()
	limiter := NewTokenLimiter(0)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("zero-size limiter must default to one slot: %v", err)
	}
}
