package repository

import (
	"context"
	"encoding/json"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/oj/model"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	questionKeyPrefix = "oj:question:"
	defaultCacheTTL   = 10 * time.Minute
)

// cachedProblem keeps the harness, which model.Problem hides from JSON.
type cachedProblem struct {
	model.Problem
	Harness string `json:"harness"`
}

// CachedQuestionRepository reads single questions through Redis. Cache
// failures fall back to the backing repository.
type CachedQuestionRepository struct {
	next  QuestionRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedQuestionRepository wraps next with a read-through cache.
func NewCachedQuestionRepository(next QuestionRepository, c cache.Cache, ttl time.Duration) *CachedQuestionRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedQuestionRepository{next: next, cache: c, ttl: ttl}
}

func questionKey(number string) string {
	return questionKeyPrefix + number
}

func (r *CachedQuestionRepository) GetOneQuestion(ctx context.Context, number string) (*model.Problem, error) {
	key := questionKey(number)
	if raw, err := r.cache.Get(ctx, key); err != nil {
		logger.Warn(ctx, "question cache read failed", zap.String("key", key), zap.Error(err))
	} else if raw != "" {
		var cached cachedProblem
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			p := cached.Problem
			p.Harness = cached.Harness
			return &p, nil
		}
		logger.Warn(ctx, "drop undecodable cached question", zap.String("key", key))
	}

	p, err := r.next.GetOneQuestion(ctx, number)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(cachedProblem{Problem: *p, Harness: p.Harness})
	if err == nil {
		if err := r.cache.Set(ctx, key, payload, r.ttl); err != nil {
			logger.Warn(ctx, "question cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return p, nil
}

// GetAllQuestions is not cached; the list view is cheap on every backend.
func (r *CachedQuestionRepository) GetAllQuestions(ctx context.Context) ([]*model.Problem, error) {
	return r.next.GetAllQuestions(ctx)
}

// Invalidate drops the cached copy of number.
func (r *CachedQuestionRepository) Invalidate(ctx context.Context, number string) error {
	return r.cache.Del(ctx, questionKey(number))
}
