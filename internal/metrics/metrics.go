package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kupolls"

// Metrics groups the service's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	BallotsRecorded    *prometheus.CounterVec
	PasswordRejections *prometheus.CounterVec
	BreachLookup       *prometheus.HistogramVec
	LoginAttempts      *prometheus.CounterVec
	ResultsCache       *prometheus.CounterVec
	HTTPRequests       *prometheus.HistogramVec
}

// New registers every collector on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BallotsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ballots_recorded_total",
				Help:      "Ballots written, by outcome (created or updated)",
			},
			[]string{"outcome"},
		),
		PasswordRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "password_rejections_total",
				Help:      "Passwords rejected by the policy checker, by reason",
			},
			[]string{"reason"},
		),
		BreachLookup: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "breach_lookup_duration_seconds",
				Help:      "Latency of the compromised-password range lookup",
				Buckets:   prometheus.ExponentialBuckets(0.025, 2, 10),
			},
			[]string{"result"},
		),
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Login attempts, by result",
			},
			[]string{"result"},
		),
		ResultsCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "results_cache_total",
				Help:      "Results cache lookups, by result (hit or miss)",
			},
			[]string{"result"},
		),
		HTTPRequests: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency, by route pattern and status",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (m *Metrics) BallotRecorded(created bool) {
	if m == nil {
		return
	}
	outcome := "updated"
	if created {
		outcome = "created"
	}
	m.BallotsRecorded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PasswordRejected(reason string) {
	if m == nil {
		return
	}
	m.PasswordRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveBreachLookup(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.BreachLookup.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ResultsCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ResultsCache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
