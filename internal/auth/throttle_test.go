package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dabir-id/dabir-id/internal/auth"
	_ "github.com/dabir-id/dabir-id/testing"
)

func newThrottle(t *testing.T, limit int) (*auth.LoginThrottle, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return auth.NewLoginThrottle(client, limit, time.Minute, nil), mr
}

func TestThrottleBlocksAfterLimit(t *testing.T) {
	throttle, _ := newThrottle(t, 3)
	ctx := context.Background()
	key := throttle.Key("Reza@Example.COM", "10.0.0.9:55555")

	for i := 0; i < 3; i++ {
		if !throttle.Allow(ctx, key) {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		throttle.RecordFailure(ctx, key)
	}
	if throttle.Allow(ctx, key) {
		t.Fatal("expected throttle to block after reaching the limit")
	}
}

func TestThrottleResetClearsCounter(t *testing.T) {
	throttle, _ := newThrottle(t, 1)
	ctx := context.Background()
	key := throttle.Key("reza@example.com", "10.0.0.9:55555")

	throttle.RecordFailure(ctx, key)
	if throttle.Allow(ctx, key) {
		t.Fatal("expected block after one failure at limit 1")
	}
	throttle.Reset(ctx, key)
	if !throttle.Allow(ctx, key) {
		t.Fatal("expected reset to clear the counter")
	}
}

func TestThrottleWindowExpires(t *testing.T) {
	throttle, mr := newThrottle(t, 1)
	ctx := context.Background()
	key := throttle.Key("reza@example.com", "10.0.0.9:55555")

	throttle.RecordFailure(ctx, key)
	if throttle.Allow(ctx, key) {
		t.Fatal("expected block inside the window")
	}
	mr.FastForward(2 * time.Minute)
	if !throttle.Allow(ctx, key) {
		t.Fatal("expected the window to expire")
	}
}

func TestThrottleKeyNormalisesEmail(t *testing.T) {
	throttle, _ := newThrottle(t, 1)
	if throttle.Key(" Reza@Example.COM ", "addr") != throttle.Key("reza@example.com", "addr") {
		t.Fatal("keys for equivalent emails must match")
	}
}

func TestThrottleFailsOpenWithoutRedis(t *testing.T) {
	throttle := auth.NewLoginThrottle(nil, 1, time.Minute, nil)
	ctx := context.Background()
	throttle.RecordFailure(ctx, "k")
	if !throttle.Allow(ctx, "k") {
		t.Fatal("a disabled throttle must always allow")
	}
}
