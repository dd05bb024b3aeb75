package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"ku-polls/internal/domain"
	"ku-polls/internal/metrics"
	"ku-polls/pkg/redis"
)

// CacheService keeps question results in Redis with a cache-aside pattern.
// Result keys carry the question's write generation, so a tally loaded
// before a ballot commits is stored under a key no later reader uses.
// With a nil Redis client every lookup goes straight to the loader.
type CacheService struct {
	redis   *redis.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCacheService creates a new cache service
func NewCacheService(redisClient *redis.Client, logger *zap.Logger, m *metrics.Metrics) *CacheService {
	return &CacheService{
		redis:   redisClient,
		logger:  logger,
		metrics: m,
	}
}

// GetResultsWithCache returns cached results for questionID or loads and caches them
func (c *CacheService) GetResultsWithCache(ctx context.Context, questionID string, load func(ctx context.Context) (*domain.QuestionResults, error)) (*domain.QuestionResults, error) {
	if c.redis == nil {
		return load(ctx)
	}

	generation, err := c.generation(ctx, questionID)
	if err != nil {
		c.logger.Warn("Results cache error, falling back to database",
			zap.String("question_id", questionID),
			zap.Error(err))
		c.metrics.ResultsCacheLookup(false)
		return load(ctx)
	}
	cacheKey := c.redis.KeyBuilder.KeyQuestionResults(questionID, generation)

	// Try cache first
	cachedData, err := c.redis.Get(ctx, cacheKey)
	if err == nil && cachedData != "" {
		var results domain.QuestionResults
		if unmarshalErr := json.Unmarshal([]byte(cachedData), &results); unmarshalErr == nil {
			c.logger.Debug("Results cache hit", zap.String("question_id", questionID))
			c.metrics.ResultsCacheLookup(true)
			return &results, nil
		} else {
			c.logger.Warn("Results cache corrupted, falling back to database",
				zap.String("question_id", questionID),
				zap.Error(unmarshalErr))
		}
	} else if err != nil && !redis.IsNil(err) {
		c.logger.Warn("Results cache error, falling back to database",
			zap.String("question_id", questionID),
			zap.Error(err))
	}

	c.metrics.ResultsCacheLookup(false)
	results, err := load(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Warn("Failed to marshal results for cache", zap.Error(err))
		return results, nil
	}
	if err := c.redis.Set(ctx, cacheKey, data, redis.TTLResults); err != nil {
		c.logger.Warn("Failed to cache results",
			zap.String("question_id", questionID),
			zap.Error(err))
	}

	return results, nil
}

// InvalidateResults moves questionID to a new generation. It must run
// after the ballot write commits.
func (c *CacheService) InvalidateResults(ctx context.Context, questionID string) error {
	if c.redis == nil {
		return nil
	}

	genKey := c.redis.KeyBuilder.KeyResultsGeneration(questionID)
	generation, err := c.redis.Incr(ctx, genKey)
	if err == nil {
		err = c.redis.Expire(ctx, genKey, redis.TTLResultsGeneration)
	}
	if err != nil {
		c.logger.Error("Failed to invalidate results cache",
			zap.String("question_id", questionID),
			zap.Error(err))
		return fmt.Errorf("failed to invalidate results cache: %w", err)
	}

	c.logger.Debug("Results cache invalidated",
		zap.String("question_id", questionID),
		zap.Int64("generation", generation))
	return nil
}

// generation reads the current write generation; a missing counter is 0
func (c *CacheService) generation(ctx context.Context, questionID string) (int64, error) {
	val, err := c.redis.Get(ctx, c.redis.KeyBuilder.KeyResultsGeneration(questionID))
	if redis.IsNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	generation, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid results generation %q: %w", val, err)
	}
	return generation, nil
}
