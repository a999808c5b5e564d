package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const throttleKeyPrefix = "dabir:loginfail:"

// LoginThrottle counts failed logins per email+address in a fixed Redis
// window. It fails open: a Redis outage never locks anyone out.
type LoginThrottle struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewLoginThrottle builds a throttle. A nil client disables it.
func NewLoginThrottle(client *redis.Client, limit int, window time.Duration, logger *slog.Logger) *LoginThrottle {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LoginThrottle{client: client, limit: limit, window: window, logger: logger}
}

// Key derives the throttle key from the attempted email and remote address.
func (t *LoginThrottle) Key(email, addr string) string {
	return strings.ToLower(strings.TrimSpace(email)) + ":" + addr
}

// Allow reports whether another attempt is permitted for the key.
func (t *LoginThrottle) Allow(ctx context.Context, key string) bool {
	if t == nil || t.client == nil || t.limit <= 0 {
		return true
	}
	count, err := t.client.Get(ctx, throttleKeyPrefix+key).Int()
	if err != nil {
		if err != redis.Nil && t.logger != nil {
			t.logger.Warn("login throttle read", slog.Any("error", err))
		}
		return true
	}
	return count < t.limit
}

// RecordFailure bumps the failure counter, starting the window on first hit.
func (t *LoginThrottle) RecordFailure(ctx context.Context, key string) {
	if t == nil || t.client == nil {
		return
	}
	count, err := t.client.Incr(ctx, throttleKeyPrefix+key).Result()
	if err != nil {
		if t.logger != nil {
			t.logger.Warn("login throttle incr", slog.Any("error", err))
		}
		return
	}
	if count == 1 {
		if err := t.client.Expire(ctx, throttleKeyPrefix+key, t.window).Err(); err != nil && t.logger != nil {
			t.logger.Warn("login throttle expire", slog.Any("error", err))
		}
	}
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, key string) {
	if t == nil || t.client == nil {
		return
	}
	if err := t.client.Del(ctx, throttleKeyPrefix+key).Err(); err != nil && t.logger != nil {
		t.logger.Warn("login throttle reset", slog.Any("error", err))
	}
}
