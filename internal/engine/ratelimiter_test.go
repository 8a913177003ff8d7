package engine

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRL(t *testing.T) *RateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRateLimiter(client, testLogger())
}

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !rl.Allow(ctx, "relay", 3) {
			t.Fatalf("send %d should fit in the window", i+1)
		}
	}
	if rl.Allow(ctx, "relay", 3) {
		t.Error("fourth send should be limited")
	}
}

func TestRateLimiter_ZeroLimitDisables(t *testing.T) {
	rl := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if !rl.Allow(ctx, "relay", 0) {
			t.Fatalf("send %d should not be limited", i+1)
		}
	}
}

func TestRateLimiter_RelaysAreIndependent(t *testing.T) {
	rl := setupTestRL(t)
	ctx := context.Background()

	rl.Allow(ctx, "relay-a", 1)
	if rl.Allow(ctx, "relay-a", 1) {
		t.Error("relay-a should be limited")
	}
	if !rl.Allow(ctx, "relay-b", 1) {
		t.Error("relay-b should not be limited")
	}
}
