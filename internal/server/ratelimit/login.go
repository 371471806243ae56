// Package ratelimit counts failed login attempts in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/expensebook/expensebook/internal/common"
	"github.com/redis/go-redis/v9"
)

// LoginLimiter locks a login identifier after too many failed attempts within
// a fixed window. The window starts at the first failure.
type LoginLimiter struct {
	client      redis.Cmdable
	keyPrefix   string
	maxAttempts int64
	window      time.Duration
}

func NewLoginLimiter(client redis.Cmdable, maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		client:      client,
		keyPrefix:   "login:fail:",
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

func (l *LoginLimiter) key(login string) string {
	return l.keyPrefix + login
}

// Check returns common.ErrTooManyAttempts when login is locked.
func (l *LoginLimiter) Check(ctx context.Context, login string) error {
	count, err := l.client.Get(ctx, l.key(login)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("login limiter: %w", err)
	}
	if count >= l.maxAttempts {
		return common.ErrTooManyAttempts
	}
	return nil
}

// recordFailure increments the counter and starts the window on the first
// failure, atomically.
var recordFailure = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return n
`)

// RecordFailure counts one failed attempt and returns
// common.ErrTooManyAttempts once the limit is reached.
func (l *LoginLimiter) RecordFailure(ctx context.Context, login string) error {
	n, err := recordFailure.Run(ctx, l.client, []string{l.key(login)}, l.window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("login limiter: %w", err)
	}
	if n >= l.maxAttempts {
		return common.ErrTooManyAttempts
	}
	return nil
}

// Reset forgets the failures recorded for login.
func (l *LoginLimiter) Reset(ctx context.Context, login string) error {
	if err := l.client.Del(ctx, l.key(login)).Err(); err != nil {
		return fmt.Errorf("login limiter: %w", err)
	}
	return nil
}
