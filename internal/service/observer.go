package service

import (
	"context"

	"go.uber.org/zap"

	"ku-polls/internal/domain"
	"ku-polls/internal/metrics"
)

// AuthObserver is notified after authentication events. Observers run
// synchronously in registration order and must not block for long.
type AuthObserver interface {
	OnLogin(ctx context.Context, user *domain.User, ipAddress string)
	OnLogout(ctx context.Context, user *domain.User, ipAddress string)
	OnLoginFailed(ctx context.Context, username, ipAddress string)
}

// LoggingObserver writes an audit line for every authentication event
type LoggingObserver struct {
	logger *zap.Logger
}

func NewLoggingObserver(logger *zap.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) OnLogin(_ context.Context, user *domain.User, ipAddress string) {
	o.logger.Info("User logged in",
		zap.String("username", user.Username),
		zap.String("ip", ipAddress))
}

func (o *LoggingObserver) OnLogout(_ context.Context, user *domain.User, ipAddress string) {
	o.logger.Info("User logged out",
		zap.String("username", user.Username),
		zap.String("ip", ipAddress))
}

func (o *LoggingObserver) OnLoginFailed(_ context.Context, username, ipAddress string) {
	o.logger.Warn("Failed login attempt",
		zap.String("username", username),
		zap.String("ip", ipAddress))
}

// MetricsObserver counts authentication events
type MetricsObserver struct {
	metrics *metrics.Metrics
}

func NewMetricsObserver(m *metrics.Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) OnLogin(context.Context, *domain.User, string) {
	o.metrics.LoginAttempt("success")
}

func (o *MetricsObserver) OnLogout(context.Context, *domain.User, string) {
	o.metrics.LoginAttempt("logout")
}

func (o *MetricsObserver) OnLoginFailed(context.Context, string, string) {
	o.metrics.LoginAttempt("failure")
}
