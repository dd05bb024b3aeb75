package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string

	StorageDriver string
	DatabaseURL   string
	RedisURL      string

	SessionSecret string
	SessionTTL    time.Duration

	BreachAPIURL     string
	BreachAPITimeout time.Duration

	LoginFailureLimit int
	LoginCooloff      time.Duration

	IndexLimit int

	KafkaBrokers []string
	KafkaTopic   string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		AllowedOrigins:    parseList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Environment:       getEnv("ENVIRONMENT", "production"),
		StorageDriver:     strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionTTL:        getDurationEnv("SESSION_TTL", 24*time.Hour),
		BreachAPIURL:      strings.TrimRight(getEnv("BREACH_API_URL", "https://api.pwnedpasswords.com/range"), "/"),
		BreachAPITimeout:  getDurationEnv("BREACH_API_TIMEOUT", 10*time.Second),
		LoginFailureLimit: getIntEnv("LOGIN_FAILURE_LIMIT", 5),
		LoginCooloff:      getDurationEnv("LOGIN_COOLOFF", time.Hour),
		IndexLimit:        getIntEnv("INDEX_LIMIT", 5),
		KafkaBrokers:      parseList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "ballots"),
	}

	if cfg.SessionSecret == "" && cfg.IsDevelopment() {
		cfg.SessionSecret = "dev-insecure-session-secret"
	}

	return cfg, nil
}

// Validate reports the first missing or invalid setting
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=%s", StorageDriverPostgres)
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.LoginFailureLimit < 1 {
		return fmt.Errorf("LOGIN_FAILURE_LIMIT must be at least 1")
	}
	if c.IndexLimit < 1 {
		return fmt.Errorf("INDEX_LIMIT must be at least 1")
	}
	if c.BreachAPIURL == "" {
		return fmt.Errorf("BREACH_API_URL is required")
	}
	return nil
}

// IsDevelopment reports whether the service runs in a development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseList parses a comma-separated value into a slice
func parseList(value string) []string {
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
