package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"ku-polls/internal/domain"
	"ku-polls/internal/metrics"
	"ku-polls/internal/middleware"
	"ku-polls/internal/service"
	"ku-polls/pkg/logger"
)

// Sessions issues and verifies session tokens
type Sessions interface {
	SessionIssuer
	Verify(ctx context.Context, token string) (*domain.SessionClaims, error)
}

// RouterConfig holds everything the HTTP surface is built from
type RouterConfig struct {
	Polls          service.PollService
	Accounts       service.AccountManager
	Sessions       Sessions
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	HealthChecks   map[string]func(ctx context.Context) error
	CORS           *middleware.CORSConfig
	SecureCookies  bool
	Version        string
	Logger         *logger.Logger
}

// NewRouter wires middleware and mounts every endpoint
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(chimw.RealIP)
	r.Use(middleware.LogPanics(cfg.Logger))
	r.Use(middleware.Instrument(cfg.Metrics))
	r.Use(middleware.CORS(cfg.CORS, cfg.Logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))

	health := NewHealthHandler(cfg.HealthChecks, cfg.Version, cfg.Logger)
	r.Get("/health", health.Check)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	polls := NewPollHandler(cfg.Polls, cfg.Logger)
	accounts := NewAccountHandler(cfg.Accounts, cfg.Sessions, cfg.SecureCookies, cfg.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/polls", polls.Routes(cfg.Sessions))
		r.Mount("/accounts", accounts.Routes(cfg.Sessions))
	})

	return r
}
