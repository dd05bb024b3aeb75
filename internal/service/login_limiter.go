package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"ku-polls/pkg/logger"
	"ku-polls/pkg/redis"
)

// LoginLimiter locks a (username, client IP) pair out after repeated
// failed logins. With a nil Redis client it never locks anyone out.
type LoginLimiter struct {
	redisClient *redis.Client
	limit       int64
	cooloff     time.Duration
	logger      *logger.Logger
}

// NewLoginLimiter creates a limiter allowing limit failures per cooloff window
func NewLoginLimiter(redisClient *redis.Client, limit int, cooloff time.Duration, logger *logger.Logger) *LoginLimiter {
	if redisClient == nil {
		logger.Warn("Redis not configured, login lockout disabled")
	}
	return &LoginLimiter{
		redisClient: redisClient,
		limit:       int64(limit),
		cooloff:     cooloff,
		logger:      logger,
	}
}

// IsLocked reports whether the pair is locked and for how much longer.
// Redis failures are logged and treated as not locked.
func (l *LoginLimiter) IsLocked(ctx context.Context, username, ipAddress string) (bool, time.Duration) {
	if l.redisClient == nil {
		return false, 0
	}

	key := l.key(username, ipAddress)
	val, err := l.redisClient.Get(ctx, key)
	if redis.IsNil(err) {
		return false, 0
	}
	if err != nil {
		l.logger.WithError(err).Error("Failed to read login failure counter")
		return false, 0
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil || count < l.limit {
		return false, 0
	}

	remaining, err := l.redisClient.TTL(ctx, key)
	if err != nil || remaining < 0 {
		remaining = l.cooloff
	}
	return true, remaining
}

// RecordFailure counts a failed login and returns the number of failures
// in the current window
func (l *LoginLimiter) RecordFailure(ctx context.Context, username, ipAddress string) int64 {
	if l.redisClient == nil {
		return 0
	}

	key := l.key(username, ipAddress)
	count, err := l.redisClient.Incr(ctx, key)
	if err != nil {
		l.logger.WithError(err).Error("Failed to increment login failure counter")
		return 0
	}

	// Set expiry on first failure
	if count == 1 {
		if err := l.redisClient.Expire(ctx, key, l.cooloff); err != nil {
			l.logger.WithError(err).Warn("Failed to set login failure key expiry")
		}
	}

	if count >= l.limit {
		l.logger.WithFields(map[string]interface{}{
			"username": username,
			"failures": count,
		}).Warn("Login locked out")
	}
	return count
}

// Reset clears the failure counter after a successful login
func (l *LoginLimiter) Reset(ctx context.Context, username, ipAddress string) {
	if l.redisClient == nil {
		return
	}
	if err := l.redisClient.Delete(ctx, l.key(username, ipAddress)); err != nil {
		l.logger.WithError(err).Warn("Failed to reset login failure counter")
	}
}

// key uses the exact username; usernames are case-sensitive
func (l *LoginLimiter) key(username, ipAddress string) string {
	return l.redisClient.KeyBuilder.KeyLoginFailures(username, hashIP(ipAddress))
}

// hashIP keeps raw client addresses out of Redis keys
func hashIP(ipAddress string) string {
	sum := sha256.Sum256([]byte(ipAddress))
	return hex.EncodeToString(sum[:])[:16]
}
