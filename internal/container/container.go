package container

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ku-polls/internal/config"
	"ku-polls/internal/event"
	"ku-polls/internal/metrics"
	"ku-polls/internal/repository"
	"ku-polls/internal/repository/memory"
	"ku-polls/internal/service"
	"ku-polls/internal/service/auth"
	"ku-polls/internal/service/password"
	"ku-polls/pkg/database"
	"ku-polls/pkg/logger"
	"ku-polls/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          *database.PostgresDB
	RedisClient *redis.Client
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	Publisher   event.BallotPublisher
	Sessions    *auth.SessionManager
	Repos       *repository.Repositories
	Services    *service.Services
}

// New creates a new dependency injection container. db is required for the
// postgres storage driver and ignored for the memory driver.
func New(cfg *config.Config, logger *logger.Logger, db *database.PostgresDB) (*Container, error) {
	var repos *repository.Repositories
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		repos = memory.NewStore().Repositories()
		db = nil
	case config.StorageDriverPostgres:
		if db == nil {
			return nil, fmt.Errorf("storage driver %q needs a database connection", cfg.StorageDriver)
		}
		repos = repository.NewPostgresRepositories(db)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	// Initialize Redis client if Redis URL is configured
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, logger.Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, proceeding without caching and lockout")
		} else {
			redisClient = client
			logger.Info("Redis client initialized successfully")
		}
	} else {
		logger.Info("Redis URL not configured, proceeding without caching and lockout")
	}

	var publisher event.BallotPublisher = event.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("failed to create ballot publisher: %w", err)
		}
		publisher = kp
		logger.WithField("topic", cfg.KafkaTopic).Info("Publishing ballot events to Kafka")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	validator := password.NewValidator(
		password.NewBreachClient(cfg.BreachAPIURL, cfg.BreachAPITimeout, logger.Logger),
		logger.Logger,
		m,
	)
	limiter := service.NewLoginLimiter(redisClient, cfg.LoginFailureLimit, cfg.LoginCooloff, logger)

	accounts := service.NewAccountService(repos.User, repos.Ballot, validator, limiter, logger)
	accounts.RegisterObserver(service.NewLoggingObserver(logger.Logger))
	accounts.RegisterObserver(service.NewMetricsObserver(m))

	polls := service.NewVotingService(
		repos,
		service.NewCacheService(redisClient, logger.Logger, m),
		publisher,
		m,
		logger.Logger,
		cfg.IndexLimit,
	)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		RedisClient: redisClient,
		Registry:    registry,
		Metrics:     m,
		Publisher:   publisher,
		Sessions:    auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, repos.User, logger),
		Repos:       repos,
		Services: &service.Services{
			Polls:    polls,
			Accounts: accounts,
		},
	}, nil
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// HealthChecks returns a probe per connected backing service
func (c *Container) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if c.DB != nil {
		checks["database"] = c.DB.Health
	}
	if c.RedisClient != nil {
		checks["redis"] = c.RedisClient.Health
	}
	return checks
}

// Close releases the ballot publisher, Redis and the database in that order
func (c *Container) Close() {
	if err := c.Publisher.Close(); err != nil {
		c.Logger.WithError(err).Error("Failed to close ballot publisher")
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.WithError(err).Error("Failed to close Redis client")
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
