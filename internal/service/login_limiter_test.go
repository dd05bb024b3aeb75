package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ku-polls/pkg/logger"
)

func TestLoginLimiter_LocksAtLimit(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewLoginLimiter(client, 3, 10*time.Minute, logger.NewNop())
	ctx := context.Background()

	for i := int64(1); i <= 2; i++ {
		assert.Equal(t, i, l.RecordFailure(ctx, "alice", "1.2.3.4"))
		locked, _ := l.IsLocked(ctx, "alice", "1.2.3.4")
		assert.False(t, locked)
	}

	l.RecordFailure(ctx, "alice", "1.2.3.4")
	locked, retryAfter := l.IsLocked(ctx, "alice", "1.2.3.4")
	assert.True(t, locked)
	assert.Equal(t, 10*time.Minute, retryAfter)

	key := client.KeyBuilder.KeyLoginFailures("alice", hashIP("1.2.3.4"))
	assert.True(t, mr.Exists(key))
	assert.NotContains(t, key, "1.2.3.4")

	l.Reset(ctx, "alice", "1.2.3.4")
	locked, _ = l.IsLocked(ctx, "alice", "1.2.3.4")
	assert.False(t, locked)
}

func TestLoginLimiter_UsernamesAreCaseSensitive(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewLoginLimiter(client, 2, 10*time.Minute, logger.NewNop())
	ctx := context.Background()

	l.RecordFailure(ctx, "Alice", "1.2.3.4")
	l.RecordFailure(ctx, "Alice", "1.2.3.4")

	locked, _ := l.IsLocked(ctx, "Alice", "1.2.3.4")
	assert.True(t, locked)
	locked, _ = l.IsLocked(ctx, "alice", "1.2.3.4")
	assert.False(t, locked, "a different account must not share the lockout")

	l.Reset(ctx, "alice", "1.2.3.4")
	locked, _ = l.IsLocked(ctx, "Alice", "1.2.3.4")
	assert.True(t, locked)
}

func TestLoginLimiter_FailsOpenOnRedisError(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewLoginLimiter(client, 1, time.Minute, logger.NewNop())
	ctx := context.Background()

	l.RecordFailure(ctx, "alice", "1.2.3.4")
	mr.SetError("server down")

	locked, _ := l.IsLocked(ctx, "alice", "1.2.3.4")
	assert.False(t, locked)
	assert.Zero(t, l.RecordFailure(ctx, "alice", "1.2.3.4"))
}

func TestLoginLimiter_DisabledWithoutRedis(t *testing.T) {
	l := NewLoginLimiter(nil, 1, time.Minute, logger.NewNop())
	ctx := context.Background()

	assert.Zero(t, l.RecordFailure(ctx, "alice", "1.2.3.4"))
	locked, _ := l.IsLocked(ctx, "alice", "1.2.3.4")
	assert.False(t, locked)
	l.Reset(ctx, "alice", "1.2.3.4")
}

func TestHashIP(t *testing.T) {
	assert.Len(t, hashIP("10.0.0.1"), 16)
	assert.Equal(t, hashIP("10.0.0.1"), hashIP("10.0.0.1"))
	assert.NotEqual(t, hashIP("10.0.0.1"), hashIP("10.0.0.2"))
}
