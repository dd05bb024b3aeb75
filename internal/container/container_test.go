package container

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ku-polls/internal/config"
	"ku-polls/internal/event"
	"ku-polls/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:       "test",
		StorageDriver:     config.StorageDriverMemory,
		SessionSecret:     "test-secret",
		SessionTTL:        time.Hour,
		BreachAPIURL:      "http://127.0.0.1:1/range",
		BreachAPITimeout:  time.Second,
		LoginFailureLimit: 5,
		LoginCooloff:      time.Hour,
		IndexLimit:        5,
		KafkaTopic:        "ballots",
	}
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name        string
		configure   func(cfg *config.Config)
		expectRedis bool
		expectKafka bool
		expectError bool
	}{
		{
			name:      "memory storage without Redis",
			configure: func(cfg *config.Config) {},
		},
		{
			name:        "memory storage with Redis",
			configure:   func(cfg *config.Config) { cfg.RedisURL = "redis://" + mr.Addr() },
			expectRedis: true,
		},
		{
			name:      "invalid Redis URL proceeds without Redis",
			configure: func(cfg *config.Config) { cfg.RedisURL = "invalid://redis-url" },
		},
		{
			name:        "Kafka brokers enable the ballot publisher",
			configure:   func(cfg *config.Config) { cfg.KafkaBrokers = []string{"127.0.0.1:9092"} },
			expectKafka: true,
		},
		{
			name:        "postgres storage needs a database",
			configure:   func(cfg *config.Config) { cfg.StorageDriver = config.StorageDriverPostgres },
			expectError: true,
		},
		{
			name:        "unknown storage driver",
			configure:   func(cfg *config.Config) { cfg.StorageDriver = "sqlite" },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.configure(cfg)

			c, err := New(cfg, logger.NewNop(), nil)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			t.Cleanup(c.Close)

			assert.Equal(t, tt.expectRedis, c.HasRedis())
			assert.NotNil(t, c.Services.Polls)
			assert.NotNil(t, c.Services.Accounts)
			assert.NotNil(t, c.Sessions)

			_, isKafka := c.Publisher.(*event.KafkaPublisher)
			assert.Equal(t, tt.expectKafka, isKafka)

			_, hasRedisCheck := c.HealthChecks()["redis"]
			assert.Equal(t, tt.expectRedis, hasRedisCheck)
			assert.NotContains(t, c.HealthChecks(), "database")
		})
	}
}

func TestNew_RegistersMetrics(t *testing.T) {
	c, err := New(testConfig(), logger.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	c.Metrics.BallotRecorded(true)

	families, err := c.Registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
	assert.True(t, names["kupolls_ballots_recorded_total"])
}

func TestHealthChecks_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	c, err := New(cfg, logger.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	check := c.HealthChecks()["redis"]
	require.NotNil(t, check)
	assert.NoError(t, check(context.Background()))

	mr.SetError("server down")
	assert.Error(t, check(context.Background()))
}
