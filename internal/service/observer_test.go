package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ku-polls/internal/domain"
	"ku-polls/internal/metrics"
)

func TestLoggingObserver(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	o := NewLoggingObserver(zap.New(core))
	ctx := context.Background()
	u := &domain.User{Username: "alice"}

	o.OnLogin(ctx, u, "10.0.0.1")
	o.OnLogout(ctx, u, "10.0.0.1")
	o.OnLoginFailed(ctx, "mallory", "10.0.0.9")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "User logged in", entries[0].Message)
	assert.Equal(t, "User logged out", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "mallory", entries[2].ContextMap()["username"])
}

func TestMetricsObserver(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	o := NewMetricsObserver(m)
	ctx := context.Background()

	o.OnLogin(ctx, &domain.User{}, "")
	o.OnLoginFailed(ctx, "x", "")
	o.OnLoginFailed(ctx, "y", "")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("failure")))
}
