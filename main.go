package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ku-polls/internal/config"
	"ku-polls/internal/container"
	"ku-polls/internal/event"
	"ku-polls/internal/handler"
	"ku-polls/internal/middleware"
	"ku-polls/pkg/database"
	"ku-polls/pkg/logger"
	"ku-polls/pkg/redis"
)

const version = "1.0.0"

// Resources holds all resources that need cleanup
type Resources struct {
	server      *http.Server
	publisher   event.BallotPublisher
	redisClient *redis.Client
	db          *database.PostgresDB
	log         *logger.Logger
	mu          sync.Mutex
	closed      bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errors []error

	r.log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first to stop accepting new requests
	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errors = append(errors, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	// Flush pending ballot events
	if r.publisher != nil {
		if err := r.publisher.Close(); err != nil {
			r.log.WithError(err).Error("Failed to close ballot publisher")
			errors = append(errors, fmt.Errorf("ballot publisher close: %w", err))
		} else {
			r.log.Info("Ballot publisher closed")
		}
	}

	if r.redisClient != nil {
		r.log.Info("Closing Redis connection...")
		if err := r.redisClient.Close(); err != nil {
			r.log.WithError(err).Error("Failed to close Redis connection")
			errors = append(errors, fmt.Errorf("Redis close: %w", err))
		} else {
			r.log.Info("Redis connection closed successfully")
		}
	}

	if r.db != nil {
		r.log.Info("Closing database connection pool...")
		r.db.Close()
		r.log.Info("Database connection pool closed successfully")
	}

	if len(errors) > 0 {
		r.log.WithField("error_count", len(errors)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errors), errors)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":           cfg.Port,
		"log_level":      cfg.LogLevel,
		"environment":    cfg.Environment,
		"storage_driver": cfg.StorageDriver,
	}).Info("Starting ku-polls server")

	var db *database.PostgresDB
	if cfg.StorageDriver == config.StorageDriverPostgres {
		db, err = connectDB(context.Background(), cfg.DatabaseURL, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
	}

	// Create dependency injection container
	c, err := container.New(cfg, log, db)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.AllowedOrigins

	router := handler.NewRouter(handler.RouterConfig{
		Polls:          c.Services.Polls,
		Accounts:       c.Services.Accounts,
		Sessions:       c.Sessions,
		Metrics:        c.Metrics,
		MetricsHandler: promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}),
		HealthChecks:   c.HealthChecks(),
		CORS:           cors,
		SecureCookies:  !cfg.IsDevelopment(),
		Version:        version,
		Logger:         log,
	})

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	resources := &Resources{
		server:      server,
		publisher:   c.Publisher,
		redisClient: c.RedisClient,
		db:          c.DB,
		log:         log,
	}

	// Setup graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	// Wait for interrupt signal or server error
	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// connectDB opens the pool, retrying while the database comes up
func connectDB(ctx context.Context, databaseURL string, log *logger.Logger) (*database.PostgresDB, error) {
	return retry.DoWithData(
		func() (*database.PostgresDB, error) {
			return database.NewPostgresDB(ctx, databaseURL)
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(400*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithField("attempt", n+1).Warn("Database not ready, retrying")
		}),
	)
}
