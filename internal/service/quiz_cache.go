package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
)

// QuizCache keeps student-facing quiz definitions in Redis. A nil client disables caching.
type QuizCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewQuizCache constructs the cache.
func NewQuizCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *QuizCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QuizCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "quiz_cache").Logger(),
	}
}

func studentQuizKey(quizID uint) string {
	return fmt.Sprintf("quiz:student:%d", quizID)
}

// Get returns the cached student view of a quiz.
func (c *QuizCache) Get(ctx context.Context, quizID uint) (dto.StudentQuizResponse, bool) {
	if c == nil || c.client == nil {
		return dto.StudentQuizResponse{}, false
	}

	cached, err := c.client.Get(ctx, studentQuizKey(quizID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Uint("quiz_id", quizID).Msg("failed to read quiz cache")
		}
		return dto.StudentQuizResponse{}, false
	}

	var response dto.StudentQuizResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		c.logger.Warn().Err(err).Uint("quiz_id", quizID).Msg("discarding malformed quiz cache entry")
		return dto.StudentQuizResponse{}, false
	}
	return response, true
}

// Set stores the student view of a quiz.
func (c *QuizCache) Set(ctx context.Context, quiz dto.StudentQuizResponse) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(quiz)
	if err != nil {
		c.logger.Warn().Err(err).Uint("quiz_id", quiz.ID).Msg("failed to encode quiz cache entry")
		return
	}
	if err := c.client.Set(ctx, studentQuizKey(quiz.ID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("quiz_id", quiz.ID).Msg("failed to store quiz cache")
	}
}

// Invalidate drops the cached student view of a quiz.
func (c *QuizCache) Invalidate(ctx context.Context, quizID uint) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, studentQuizKey(quizID)).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("quiz_id", quizID).Msg("failed to invalidate quiz cache")
	}
}
