package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutConfig contains lockout policy configuration.
type LockoutConfig struct {
	MaxAttempts     int           // Failed attempts within Window that trigger a lockout
	Window          time.Duration // Time window for counting attempts
	LockoutDuration time.Duration // How long a triggered lockout lasts
}

// LockoutTracker counts failed authentication attempts per identity in Redis
// and locks the identity once MaxAttempts is reached. A tracker without a
// client never locks anyone.
type LockoutTracker struct {
	client *redis.Client
	cfg    LockoutConfig
	prefix string
}

// NewLockoutTracker creates a lockout tracker. client may be nil.
func NewLockoutTracker(client *redis.Client, cfg LockoutConfig) *LockoutTracker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 15 * time.Minute
	}
	return &LockoutTracker{client: client, cfg: cfg, prefix: "lockout"}
}

func (t *LockoutTracker) attemptsKey(identity string) string {
	return fmt.Sprintf("%s:attempts:%s", t.prefix, identity)
}

func (t *LockoutTracker) lockKey(identity string) string {
	return fmt.Sprintf("%s:locked:%s", t.prefix, identity)
}

// IsLocked reports whether identity is currently locked out.
func (t *LockoutTracker) IsLocked(ctx context.Context, identity string) (bool, error) {
	if t == nil || t.client == nil {
		return false, nil
	}
	n, err := t.client.Exists(ctx, t.lockKey(identity)).Result()
	if err != nil {
		return false, fmt.Errorf("lockout tracker: check lock: %w", err)
	}
	return n > 0, nil
}

// RegisterFailure increments the failed attempt counter for identity and sets
// the lock when the threshold is reached. It returns the current count and
// whether the identity is now locked.
func (t *LockoutTracker) RegisterFailure(ctx context.Context, identity string) (int, bool, error) {
	if t == nil || t.client == nil {
		return 0, false, nil
	}

	key := t.attemptsKey(identity)
	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, fmt.Errorf("lockout tracker: increment counter: %w", err)
	}

	count := incr.Val()
	if count < int64(t.cfg.MaxAttempts) {
		return int(count), false, nil
	}
	if err := t.client.Set(ctx, t.lockKey(identity), count, t.cfg.LockoutDuration).Err(); err != nil {
		return int(count), false, fmt.Errorf("lockout tracker: set lock: %w", err)
	}
	return int(count), true, nil
}

// FailedAttempts returns the current failed attempt count for identity.
func (t *LockoutTracker) FailedAttempts(ctx context.Context, identity string) (int, error) {
	if t == nil || t.client == nil {
		return 0, nil
	}
	count, err := t.client.Get(ctx, t.attemptsKey(identity)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lockout tracker: get count: %w", err)
	}
	return count, nil
}

// Reset clears the counter for identity after a successful authentication.
// An active lock is left to expire on its own.
func (t *LockoutTracker) Reset(ctx context.Context, identity string) error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Del(ctx, t.attemptsKey(identity)).Err()
}
