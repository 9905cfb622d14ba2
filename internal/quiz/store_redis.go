package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-quiz/internal/platform/cache"
)

// RedisStore keeps quizzes in Redis/Dragonfly so several server replicas
// can grade the same quiz. A ttl of zero keeps quizzes until evicted.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed quiz store.
func NewRedisStore(client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Save(ctx context.Context, qz Quiz) (string, error) {
	data, err := json.Marshal(qz)
	if err != nil {
		return "", fmt.Errorf("marshal quiz: %w", err)
	}

	// SETNX makes an id collision fail instead of overwriting another quiz.
	for range 3 {
		id := newID()
		ok, err := s.client.SetNX(ctx, cache.Key("quiz", id), data, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("store quiz: %w", err)
		}
		if ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("store quiz: could not allocate a unique id")
}

func (s *RedisStore) Get(ctx context.Context, id string) (Quiz, error) {
	data, err := s.client.Get(ctx, cache.Key("quiz", id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Quiz{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	var qz Quiz
	if err := json.Unmarshal(data, &qz); err != nil {
		return Quiz{}, fmt.Errorf("decode quiz %s: %w", id, err)
	}
	return qz, nil
}
