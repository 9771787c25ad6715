package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"store-assistant/internal/domain"
)

const redisKeyPrefix = "asa_checkout:"

// redisAPI is the subset of *redis.Client used by redisStore.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisStore struct {
	client redisAPI
	ttl    time.Duration
}

func (s *redisStore) key(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *redisStore) Load(ctx context.Context, sessionID string) (*domain.Draft, error) {
	if err := requireSession("load", sessionID); err != nil {
		return nil, err
	}
	val, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: redis get: %w", err)
	}
	var d domain.Draft
	if err := json.Unmarshal(val, &d); err != nil {
		return nil, fmt.Errorf("repository: decode draft: %w", err)
	}
	return &d, nil
}

// Save rewrites the draft and restarts its TTL.
func (s *redisStore) Save(ctx context.Context, draft domain.Draft) error {
	if err := requireSession("save", draft.SessionID); err != nil {
		return err
	}
	val, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("repository: encode draft: %w", err)
	}
	if err := s.client.Set(ctx, s.key(draft.SessionID), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("repository: redis set: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("repository: redis del: %w", err)
	}
	return nil
}
